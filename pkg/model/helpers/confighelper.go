// Package helpers implements the fixed-order Configure/Check param
// auto-completion pipeline: Nem, then Ipv4, then Phy, then any
// waveform-family helpers discovered by emex-type prefix (e.g. LTE).
package helpers

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/adjacentlink/emexd/pkg/model"
)

// ConfigHelper mutates (Configure) and then validates (Check) the
// param values across a set of platforms. Configure runs for every
// registered helper before Check runs for any of them — the typed
// model's two-phase contract — so that every helper's assignments
// (e.g. Nem's nemids) are in place before any Check runs.
type ConfigHelper interface {
	Configure(platforms []*model.Platform) error
	Check(platforms []*model.Platform) error
}

// MetaParam is a synthesized (not template-declared) param value a
// helper derives for config-tree rendering only — it is never stored
// back onto the Component, since meta params are not validated by the
// Configure/Check contract and may be recomputed on every build.
type MetaParam struct {
	PlatformName  string
	ComponentName string
	Group         string
	Name          string
	Value         model.Value
}

// MetaParamProvider is implemented by helpers that additionally
// derive config-tree-only values (e.g. Phy's fixed-antenna-gain
// flags). LTE's GetMetaParams takes an extra address lookup and does
// not implement this interface.
type MetaParamProvider interface {
	GetMetaParams(platforms []*model.Platform) ([]MetaParam, error)
}

// ComponentRef pairs a platform name with one of its components, the
// unit GetComponents filters and ConfigHelpers iterate over.
type ComponentRef struct {
	PlatformName string
	Component    *model.Component
}

// GetComponents returns every (platform, component) pair across
// platforms whose EmexType matches one of the given regex patterns,
// sorted by (platform name, component name) for deterministic
// id-assignment order.
func GetComponents(platforms []*model.Platform, patterns []string) ([]ComponentRef, error) {
	re, err := compileAlternation(patterns)
	if err != nil {
		return nil, err
	}
	var out []ComponentRef
	for _, plt := range platforms {
		for _, c := range plt.Components {
			if re.MatchString(c.EmexType) {
				out = append(out, ComponentRef{PlatformName: plt.Name, Component: c})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlatformName != out[j].PlatformName {
			return out[i].PlatformName < out[j].PlatformName
		}
		return out[i].Component.Name < out[j].Component.Name
	})
	return out, nil
}

func compileAlternation(patterns []string) (*regexp.Regexp, error) {
	expr := ""
	for i, p := range patterns {
		if i > 0 {
			expr += "|"
		}
		expr += "(?:" + p + ")"
	}
	return regexp.Compile("^(?:" + expr + ")$")
}

// AssignUniqueParamID assigns each not-yet-configured component's
// group.param a unique id from idPool, skipping ids already in use by
// a configured sibling. It errors if two already-configured
// components in the same call collide on the same id — a sign the
// template authors hand-assigned overlapping ids.
func AssignUniqueParamID(components []ComponentRef, group, name string, idPool []int64) error {
	assigned := make(map[int64]struct{})
	for _, ref := range components {
		p, ok := ref.Component.Param(group, name)
		if !ok || !p.Configured() {
			continue
		}
		v := p.First().Int
		if _, dup := assigned[v]; dup {
			return fmt.Errorf("duplicate %s.%s %d assigned within %s.%s", group, name, v, ref.PlatformName, ref.Component.Name)
		}
		assigned[v] = struct{}{}
	}

	idx := 0
	for _, ref := range components {
		p, ok := ref.Component.Param(group, name)
		if !ok || p.Configured() {
			continue
		}
		for idx < len(idPool) {
			if _, used := assigned[idPool[idx]]; !used {
				break
			}
			idx++
		}
		if idx >= len(idPool) {
			return fmt.Errorf("%s.%s: id pool exhausted assigning %s.%s", group, name, ref.PlatformName, ref.Component.Name)
		}
		v := idPool[idx]
		assigned[v] = struct{}{}
		idx++
		if err := setIntParam(ref.Component, group, name, v); err != nil {
			return err
		}
	}
	return nil
}

// AssignUniqueMetaParamID zips components against idPool by index —
// no duplicate-skipping, unlike AssignUniqueParamID — storing each
// assignment as a MetaParam rather than mutating the component.
func AssignUniqueMetaParamID(components []ComponentRef, group, name string, idPool []int64) ([]MetaParam, error) {
	if len(components) > len(idPool) {
		return nil, fmt.Errorf("%s.%s: id pool of %d too small for %d components", group, name, len(idPool), len(components))
	}
	out := make([]MetaParam, len(components))
	for i, ref := range components {
		out[i] = MetaParam{
			PlatformName:  ref.PlatformName,
			ComponentName: ref.Component.Name,
			Group:         group,
			Name:          name,
			Value:         model.Value{Kind: model.KindInt, Int: idPool[i]},
		}
	}
	return out, nil
}

func setIntParam(c *model.Component, group, name string, v int64) error {
	pg, ok := c.ParamGroups[group]
	if !ok {
		return fmt.Errorf("component %q has no param group %q", c.Name, group)
	}
	return pg.SetParam(name, []model.Value{{Kind: model.KindInt, Int: v}})
}
