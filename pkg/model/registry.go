package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComponentTemplateFile is the on-disk YAML shape of one component
// template: its emex type, labels, descriptor flags, and the param
// groups (with their ParamTypes) it carries.
type ComponentTemplateFile struct {
	EmexType           string              `yaml:"emex_type"`
	Labels             []string            `yaml:"labels"`
	Hostname           string              `yaml:"hostname"`
	TrafficEndpoint    bool                `yaml:"traffic_endpoint"`
	TestpointPublisher bool                `yaml:"testpoint_publisher"`
	EmaneNode          bool                `yaml:"emane_node"`
	ParamGroups        map[string][]struct {
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Default     []string `yaml:"default"`
	} `yaml:"param_groups"`
}

// AntennaTypeFile is the on-disk YAML shape of one antenna type.
type AntennaTypeFile struct {
	MaxHorizontalBeamwidth float64 `yaml:"max_horizontal_beamwidth"`
	MaxGain                float64 `yaml:"max_gain"`
}

// PlatformTemplateFile lists the component template names a platform
// template is built from, plus the platform's cpu requirement.
type PlatformTemplateFile struct {
	Cpus       float64  `yaml:"cpus"`
	Components []string `yaml:"components"`
}

// Registry holds every template loaded from the model directory tree:
// component templates (keyed by template name), platform templates,
// and antenna types. A Registry is built once at daemon startup and
// is read-only thereafter.
type Registry struct {
	ComponentTemplates map[string]*ComponentTemplateFile
	PlatformTemplates  map[string]*PlatformTemplateFile
	AntennaTypes       map[string]*AntennaType
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ComponentTemplates: make(map[string]*ComponentTemplateFile),
		PlatformTemplates:  make(map[string]*PlatformTemplateFile),
		AntennaTypes:       make(map[string]*AntennaType),
	}
}

// LoadDir walks root, decoding every *.yml/*.yaml file into the
// registry's bucket determined by the name of its top-level directory
// under root (component/, platform/, antenna/), mirroring the three-way template
// split the original model tree uses on disk.
func (r *Registry) LoadDir(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			return fmt.Errorf("model file %q is not under a component/platform/antenna subdirectory", rel)
		}
		name := strings.TrimSuffix(filepath.Base(path), ext)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		switch parts[0] {
		case "component":
			var ct ComponentTemplateFile
			if err := yaml.Unmarshal(data, &ct); err != nil {
				return fmt.Errorf("component template %q: %w", rel, err)
			}
			r.ComponentTemplates[name] = &ct
		case "platform":
			var pt PlatformTemplateFile
			if err := yaml.Unmarshal(data, &pt); err != nil {
				return fmt.Errorf("platform template %q: %w", rel, err)
			}
			r.PlatformTemplates[name] = &pt
		case "antenna":
			var at AntennaTypeFile
			if err := yaml.Unmarshal(data, &at); err != nil {
				return fmt.Errorf("antenna type %q: %w", rel, err)
			}
			r.AntennaTypes[name] = &AntennaType{
				Name:                   name,
				MaxHorizontalBeamwidth: at.MaxHorizontalBeamwidth,
				MaxGain:                at.MaxGain,
			}
		default:
			return fmt.Errorf("model file %q: unrecognized template kind %q", rel, parts[0])
		}
		return nil
	})
}

// BuildComponent instantiates a Component from a registered template,
// defaulting every declared param to its template default.
func (r *Registry) BuildComponent(templateName, instanceName string) (*Component, error) {
	tmpl, ok := r.ComponentTemplates[templateName]
	if !ok {
		return nil, fmt.Errorf("no component template %q", templateName)
	}
	desc := Descriptor{
		Hostname:           tmpl.Hostname,
		TrafficEndpoint:    tmpl.TrafficEndpoint,
		TestpointPublisher: tmpl.TestpointPublisher,
		EmaneNode:          tmpl.EmaneNode,
	}
	if desc.Hostname == "" {
		desc.Hostname = instanceName
	}
	c := NewComponent(instanceName, tmpl.EmexType, tmpl.Labels, desc)
	for group, params := range tmpl.ParamGroups {
		pgt := NewParamGroupType(group)
		for _, pd := range params {
			pt, err := NewParamType(pd.Name, pd.Description, pd.Default)
			if err != nil {
				return nil, fmt.Errorf("component %q group %q: %w", instanceName, group, err)
			}
			pgt.Add(pt)
		}
		c.ParamGroups[group] = pgt.DefaultConfig()
	}
	return c, nil
}

// BuildPlatform instantiates a Platform from a registered platform
// template, building one component instance per listed component
// template name. The first instance of a template is named after the
// template; a template listed more than once gets its use count
// appended on the second and later uses (e.g. "radio2").
func (r *Registry) BuildPlatform(templateName, instanceName string) (*Platform, error) {
	tmpl, ok := r.PlatformTemplates[templateName]
	if !ok {
		return nil, fmt.Errorf("no platform template %q", templateName)
	}
	p := NewPlatform(instanceName, tmpl.Cpus)
	seen := make(map[string]int)
	for _, compTemplate := range tmpl.Components {
		seen[compTemplate]++
		instName := compTemplate
		if seen[compTemplate] > 1 {
			instName = fmt.Sprintf("%s%d", compTemplate, seen[compTemplate])
		}
		c, err := r.BuildComponent(compTemplate, instName)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", instanceName, err)
		}
		p.AddComponent(c)
	}
	return p, nil
}

// SortedComponentTemplateNames returns registered component template
// names in sorted order, used by the shell's listmodels command.
func (r *Registry) SortedComponentTemplateNames() []string {
	names := make([]string, 0, len(r.ComponentTemplates))
	for n := range r.ComponentTemplates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
