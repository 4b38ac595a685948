package model

import (
	"regexp"
	"sort"
)

// Descriptor carries the fixed, non-parameter facts about a component
// instance: the hostname it runs under, whether it terminates traffic
// (appears in the generated port map), whether it publishes emane
// testpoint telemetry, and whether it represents an emane radio node
// at all (as opposed to a plain host helper component).
type Descriptor struct {
	Hostname           string
	TrafficEndpoint    bool
	TestpointPublisher bool
	EmaneNode          bool
}

// Component is one instantiated piece of a Platform: a waveform radio,
// a host-side service, or similar. EmexType identifies its kind in
// dotted form (e.g. "lte.enb", "rfpipe", "host") and is what
// ConfigHelpers pattern-match against via GetComponents.
type Component struct {
	Name        string
	EmexType    string
	Labels      map[string]struct{}
	ParamGroups map[string]*ParamGroup
	Descriptor  Descriptor
}

// NewComponent builds an empty Component ready to receive param
// groups from its template.
func NewComponent(name, emexType string, labels []string, desc Descriptor) *Component {
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}
	return &Component{
		Name:        name,
		EmexType:    emexType,
		Labels:      labelSet,
		ParamGroups: make(map[string]*ParamGroup),
		Descriptor:  desc,
	}
}

// HasLabel reports whether the component carries the given label.
func (c *Component) HasLabel(label string) bool {
	_, ok := c.Labels[label]
	return ok
}

// LabelSet returns the component's labels as a sorted slice, used as
// part of a grouping key by family helpers (e.g. LTE groups
// components sharing identical label sets into one EPC/eNB/UE cell).
func (c *Component) LabelSet() []string {
	out := make([]string, 0, len(c.Labels))
	for l := range c.Labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Configured reports whether every param group on this component is
// fully configured.
func (c *Component) Configured() bool {
	for _, pg := range c.ParamGroups {
		if !pg.Configured() {
			return false
		}
	}
	return true
}

// Unconfigured lists every unconfigured (group, param) pair across
// all of this component's param groups.
func (c *Component) Unconfigured() []GroupParamName {
	var out []GroupParamName
	for _, g := range c.ParamGroups {
		out = append(out, g.Unconfigured()...)
	}
	return out
}

// Param looks up group.param on this component.
func (c *Component) Param(group, name string) (*Param, bool) {
	pg, ok := c.ParamGroups[group]
	if !ok {
		return nil, false
	}
	p, ok := pg.Params[name]
	return p, ok
}

// emexTypeRe compiles a pattern list into a single alternation for
// GetComponents matching.
func emexTypeRe(patterns []string) (*regexp.Regexp, error) {
	expr := ""
	for i, p := range patterns {
		if i > 0 {
			expr += "|"
		}
		expr += "(?:" + p + ")"
	}
	return regexp.Compile("^(?:" + expr + ")$")
}
