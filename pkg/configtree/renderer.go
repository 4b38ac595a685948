// Package configtree builds the on-disk configuration directory tree
// for one started emoe: per-component config files rendered from
// waveform/host templates, the host/port/nemid documentation files
// etce and external tools read, and the antenna profile manifest —
// adapted from the original's BuilderImplEtce.
package configtree

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Renderer renders every file under srcDir into dstDir, substituting
// overlays into each. The original used Mako templates with dotted
// ${group.param} interpolation; this repo substitutes Go's
// text/template, keyed by the same flattened "group.param" strings,
// since no pack example imports a Mako-equivalent templating library
// and text/template is the stdlib's own answer to exactly this
// problem (see DESIGN.md's stdlib-justification entry for
// text/template).
type Renderer interface {
	RenderFile(srcPath, dstPath string, overlays map[string]string) error
	RenderTree(srcDir, dstDir string, overlays map[string]string) error
}

// TextTemplateRenderer is the default Renderer, using
// text/template with overlays addressed via {{index . "group.param"}}.
type TextTemplateRenderer struct{}

var _ Renderer = TextTemplateRenderer{}

// RenderFile renders one template file to dstPath. A field-style
// reference ({{.key}}) to an overlay key with no entry fails the
// render with a descriptive error (missingkey=error); a lookup through
// {{index . "group.param"}} of a missing key does not fail and renders
// an empty string.
func (TextTemplateRenderer) RenderFile(srcPath, dstPath string, overlays map[string]string) error {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", srcPath, err)
	}
	tmpl, err := template.New(filepath.Base(srcPath)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", srcPath, err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dstPath, err)
	}
	defer out.Close()
	if err := tmpl.Execute(out, overlays); err != nil {
		return fmt.Errorf("rendering template %s for %q: %w", srcPath, dstPath, err)
	}
	return nil
}

// RenderTree walks every file in srcDir (recursively) and renders it
// into the equivalent path under dstDir, which must already exist.
func (r TextTemplateRenderer) RenderTree(srcDir, dstDir string, overlays map[string]string) error {
	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)
		return r.RenderFile(path, dst, overlays)
	})
}
