package model

// ParamType is the template-level declaration of a param: its name,
// a human description, and its default value(s). Component and
// platform templates carry ParamGroupTypes built from these; actual
// Components instantiate a ParamGroup with each ParamType's default
// unless a template override or helper supplies a value.
type ParamType struct {
	Name        string
	Description string
	Default     []Value
}

// NewParamType builds a ParamType from its raw YAML fields.
func NewParamType(name, description string, defaultRaw []string) (*ParamType, error) {
	if _, err := NewParam(name, nil); err != nil {
		return nil, err
	}
	return &ParamType{
		Name:        name,
		Description: description,
		Default:     ParseValues(defaultRaw),
	}, nil
}

// ParamGroupType is the template-level declaration of a named group
// of ParamTypes (e.g. the "emane", "ipv4", "phy" groups every waveform
// component template carries).
type ParamGroupType struct {
	Group  string
	Params map[string]*ParamType
}

// NewParamGroupType builds a ParamGroupType, keyed by param name.
func NewParamGroupType(group string) *ParamGroupType {
	return &ParamGroupType{Group: group, Params: make(map[string]*ParamType)}
}

// Add registers a ParamType within this group.
func (g *ParamGroupType) Add(pt *ParamType) { g.Params[pt.Name] = pt }

// DefaultConfig instantiates a ParamGroup populated with each
// ParamType's default value, none yet marked configured beyond that
// default (an empty default means the param starts unconfigured).
func (g *ParamGroupType) DefaultConfig() *ParamGroup {
	pg := NewParamGroup(g.Group)
	for name, pt := range g.Params {
		pg.Params[name] = &Param{Name: name, Values: append([]Value(nil), pt.Default...)}
	}
	return pg
}
