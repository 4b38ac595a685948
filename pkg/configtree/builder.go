package configtree

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/adjacentlink/emexd/pkg/runtime"
)

// EmexdConfig is the subset of daemon configuration passed through
// into the container (build_emexd_config in the original): the log
// level the in-container agent runs at.
type EmexdConfig struct {
	LogLevel string `yaml:"log_level"`
}

// Builder renders one emoe's full on-disk configuration tree,
// adapted from BuilderImplEtce.build_config. templateRoot holds one
// subdirectory per component template name (the same layout
// model.Registry.LoadDir reads its YAML templates from, conventionally
// alongside a "rendered/" sibling of file templates per type).
type Builder struct {
	templateRoot string
	renderer     Renderer
}

// NewBuilder builds a Builder rendering templates found under
// templateRoot/<component-type>/ with renderer.
func NewBuilder(templateRoot string, renderer Renderer) *Builder {
	if renderer == nil {
		renderer = TextTemplateRenderer{}
	}
	return &Builder{templateRoot: templateRoot, renderer: renderer}
}

// Build creates rt.Workdir's full directory tree and every
// configuration artifact within it, matching the original's directory
// layout (config/, config/doc, config/helper-lxc, config/localhost,
// data/, lxcroot/) and file set (test.xml, hostfile, portmap,
// per-component rendered configs, antenna manifest, nemid/profileid
// map, emexd config passthrough).
func (b *Builder) Build(rt *runtime.EmoeRuntime, emexdConfig EmexdConfig) error {
	configDir := filepath.Join(rt.Workdir, "config")
	helperDir := filepath.Join(configDir, "helper-lxc")
	localhostDir := filepath.Join(configDir, "localhost")
	docDir := filepath.Join(configDir, "doc")
	dataDir := filepath.Join(rt.Workdir, "data")
	lxcDir := filepath.Join(rt.Workdir, "lxcroot")

	for _, dir := range []string{rt.Workdir, configDir, helperDir, localhostDir, docDir, dataDir, lxcDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := writeTestFile(rt, configDir); err != nil {
		return err
	}
	if err := writeHostFile(rt, docDir); err != nil {
		return err
	}
	if err := writePortMap(rt, docDir); err != nil {
		return err
	}
	if err := b.writePlatformConfigs(rt, configDir); err != nil {
		return err
	}
	profileIDs, err := writeAntennaFiles(rt, configDir)
	if err != nil {
		return err
	}
	if err := writeNemIDProfileIDMap(rt, docDir, profileIDs); err != nil {
		return err
	}
	if err := b.writeEmexdConfig(docDir, emexdConfig); err != nil {
		return err
	}
	return nil
}

// writePlatformConfigs renders every component's template directory
// into config/<platform>-<component>/, overlaying the component's own
// configured params together with the cross-component meta params
// (ota/control addresses, fixed-antenna-gain flags, LTE derived
// values) computed for this emoe.
func (b *Builder) writePlatformConfigs(rt *runtime.EmoeRuntime, configDir string) error {
	metaParams, err := collectMetaParams(rt.Emoe.Platforms(), rt)
	if err != nil {
		return err
	}

	for _, plt := range rt.Emoe.Platforms() {
		for _, c := range plt.Components {
			hostname := plt.Name + "-" + c.Name
			outDir := filepath.Join(configDir, hostname)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", outDir, err)
			}

			overlays := map[string]string{
				"emex.hostname":  hostname,
				"emex.log_path":  "${etce_log_path}",
			}
			for groupName, pg := range c.ParamGroups {
				for name, p := range pg.Params {
					if p.Configured() {
						overlays[groupName+"."+name] = p.First().String()
					}
				}
			}
			for key, v := range metaParams[componentKey{plt.Name, c.Name}] {
				overlays[key] = v.String()
			}

			cr, hasCR := firstContainerRuntime(rt, plt.Name, c.Name)
			if hasCR && cr.Descriptor.TrafficEndpoint {
				for _, flag := range []string{"mgenremote.flag", "mgenmonitor.flag"} {
					f, err := os.Create(filepath.Join(outDir, flag))
					if err != nil {
						return fmt.Errorf("creating %s: %w", flag, err)
					}
					f.Close()
				}
			}

			templateDir := filepath.Join(b.templateRoot, c.EmexType)
			if _, err := os.Stat(templateDir); err != nil {
				continue // component type carries no file templates, only typed params
			}
			if err := b.renderer.RenderTree(templateDir, outDir, overlays); err != nil {
				return fmt.Errorf("rendering %s: %w", hostname, err)
			}
		}
	}
	return nil
}

func firstContainerRuntime(rt *runtime.EmoeRuntime, platform, component string) (*runtime.ContainerRuntime, bool) {
	crs := rt.ContainerRuntimes()
	cr, ok := crs[platform+"."+component]
	return cr, ok
}

// OrchestratorAdapter satisfies pkg/orchestrator.ConfigBuilder's
// single-argument Build signature, closing over the daemon-wide
// EmexdConfig every emoe's config tree is built with.
type OrchestratorAdapter struct {
	Builder     *Builder
	EmexdConfig EmexdConfig
}

// Build implements pkg/orchestrator.ConfigBuilder.
func (a OrchestratorAdapter) Build(rt *runtime.EmoeRuntime) error {
	return a.Builder.Build(rt, a.EmexdConfig)
}

// writeEmexdConfig conveys the subset of daemon configuration the
// in-container agent needs, yaml-encoded (gopkg.in/yaml.v3, matching
// the teacher's own config format rather than the original's ad hoc
// key=value file).
func (b *Builder) writeEmexdConfig(docDir string, cfg EmexdConfig) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling emexd config: %w", err)
	}
	return os.WriteFile(filepath.Join(docDir, "emexd_config.yaml"), raw, 0o644)
}
