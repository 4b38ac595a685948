package model

import "fmt"

// ParamGroup is one named collection of actual (as opposed to
// template) Params, e.g. the "emane" group of a waveform component
// instance.
type ParamGroup struct {
	Group  string
	Params map[string]*Param
}

// NewParamGroup builds an empty ParamGroup.
func NewParamGroup(group string) *ParamGroup {
	return &ParamGroup{Group: group, Params: make(map[string]*Param)}
}

// Configured reports whether every param in the group currently holds
// a value.
func (g *ParamGroup) Configured() bool {
	for _, p := range g.Params {
		if !p.Configured() {
			return false
		}
	}
	return true
}

// GroupParamName pairs a group name with a param name, identifying an
// unconfigured param for error reporting.
type GroupParamName struct {
	Group string
	Param string
}

// Unconfigured lists every (group, param) pair in this group that is
// not yet configured.
func (g *ParamGroup) Unconfigured() []GroupParamName {
	var out []GroupParamName
	for name, p := range g.Params {
		if !p.Configured() {
			out = append(out, GroupParamName{Group: g.Group, Param: name})
		}
	}
	return out
}

// ParamTuple is a fully-qualified (group, name, values) triple,
// returned by GetParams for helper/config-tree consumption.
type ParamTuple struct {
	Group  string
	Name   string
	Values []Value
}

// GetParams returns every param in the group as a flat tuple list.
func (g *ParamGroup) GetParams() []ParamTuple {
	out := make([]ParamTuple, 0, len(g.Params))
	for name, p := range g.Params {
		out = append(out, ParamTuple{Group: g.Group, Name: name, Values: p.Values})
	}
	return out
}

// GetParam returns the named param's values, erroring if the param is
// not known to this group.
func (g *ParamGroup) GetParam(name string) ([]Value, error) {
	p, ok := g.Params[name]
	if !ok {
		return nil, fmt.Errorf("param group %q has no param %q", g.Group, name)
	}
	return p.Values, nil
}

// SetParam assigns values to a known param, erroring if the param
// name is not recognized by this group — helpers must never silently
// create new params.
func (g *ParamGroup) SetParam(name string, values []Value) error {
	p, ok := g.Params[name]
	if !ok {
		return fmt.Errorf("param group %q has no param %q", g.Group, name)
	}
	p.Set(values)
	return nil
}
