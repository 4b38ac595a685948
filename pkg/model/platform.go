package model

import (
	"math"
	"sort"
)

// Platform is a named collection of Components sharing a physical
// host (a node in the emulation). Cpus is the fractional cpu
// requirement the platform's components declare; Emoe sums and
// ceil()s these across all of its platforms to compute the total cpu
// request it makes of the daemon's resource tracker.
type Platform struct {
	Name       string
	Cpus       float64
	Components []*Component
}

// NewPlatform builds an empty Platform.
func NewPlatform(name string, cpus float64) *Platform {
	return &Platform{Name: name, Cpus: cpus}
}

// AddComponent appends a component, keeping Components sorted by name
// so downstream iteration (config tree generation, helper
// assignment) is deterministic without a separate sort step at every
// call site.
func (p *Platform) AddComponent(c *Component) {
	p.Components = append(p.Components, c)
	sort.Slice(p.Components, func(i, j int) bool {
		return p.Components[i].Name < p.Components[j].Name
	})
}

// ComponentByName looks up a component by name.
func (p *Platform) ComponentByName(name string) (*Component, bool) {
	for _, c := range p.Components {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ComponentParam is a (component, group, param, values) tuple, the
// platform-level flattening GetParams produces for consumption by
// ConfigHelpers and nemid/portmap collection.
type ComponentParam struct {
	Component *Component
	Group     string
	Name      string
	Values    []Value
}

// GetParams flattens every param across every component on this
// platform.
func (p *Platform) GetParams() []ComponentParam {
	var out []ComponentParam
	for _, c := range p.Components {
		for _, pg := range c.ParamGroups {
			for _, t := range pg.GetParams() {
				out = append(out, ComponentParam{Component: c, Group: t.Group, Name: t.Name, Values: t.Values})
			}
		}
	}
	return out
}

// Configured reports whether every component on this platform is
// fully configured.
func (p *Platform) Configured() bool {
	for _, c := range p.Components {
		if !c.Configured() {
			return false
		}
	}
	return true
}

// Unconfigured lists every unconfigured (group, param) pair across
// every component on this platform, prefixed with the component name
// for error reporting.
func (p *Platform) Unconfigured() map[string][]GroupParamName {
	out := make(map[string][]GroupParamName)
	for _, c := range p.Components {
		if u := c.Unconfigured(); len(u) > 0 {
			out[c.Name] = u
		}
	}
	return out
}

// NemIDs returns the set of nemid values assigned across this
// platform's components, used by Emoe.NemIDs to compute the union
// across all platforms.
func (p *Platform) NemIDs() []int64 {
	var out []int64
	for _, c := range p.Components {
		if param, ok := c.Param("emane", "nemid"); ok && param.Configured() {
			out = append(out, param.First().Int)
		}
	}
	return out
}

// Resources sums a named resource requirement (other than cpu) across
// this platform's components; cpu itself is tracked directly on the
// Platform, not as a per-component param, so this helper is reserved
// for secondary resource kinds a deployment may add (e.g. gpu slots).
func (p *Platform) Resources(name string) float64 {
	total := 0.0
	for _, c := range p.Components {
		if param, ok := c.Param("resource", name); ok && param.Configured() {
			total += param.First().Float
		}
	}
	return math.Ceil(total)
}
