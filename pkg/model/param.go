package model

import (
	"fmt"
	"strings"
)

// Param is one named, possibly-multivalued configuration parameter
// within a ParamGroup. Names may never contain a '.' — the typed
// model uses "group.param" as its canonical dotted path, so a literal
// dot inside a bare name would make every path ambiguous.
type Param struct {
	Name   string
	Values []Value
}

// NewParam builds a Param, rejecting a dotted name.
func NewParam(name string, values []Value) (*Param, error) {
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("param name %q may not contain '.'", name)
	}
	return &Param{Name: name, Values: values}, nil
}

// Configured reports whether this param currently holds any value.
func (p *Param) Configured() bool { return len(p.Values) > 0 }

// Set replaces the param's values wholesale.
func (p *Param) Set(values []Value) { p.Values = values }

// First returns the param's first value, or the zero Value if
// unconfigured. Most params in practice carry exactly one value;
// Values is a slice because the original model allows list-valued
// params (e.g. repeated antenna-pointing targets).
func (p *Param) First() Value {
	if len(p.Values) == 0 {
		return Value{}
	}
	return p.Values[0]
}

// Lines renders a depth-indented "name = v1,v2" text dump of this
// param.
func (p *Param) Lines(depth int) []string {
	indent := strings.Repeat("  ", depth)
	strs := make([]string, len(p.Values))
	for i, v := range p.Values {
		strs[i] = v.String()
	}
	return []string{fmt.Sprintf("%s%s = %s", indent, p.Name, strings.Join(strs, ","))}
}
