package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

// buildEmoe decodes a raw CheckEmoeRequest/StartEmoeRequest spec —
// the same scenario.EmoeSpec shape a scenario file's "emoe:" section
// uses — against reg and constructs a validated emoe.Emoe.
func buildEmoe(reg *model.Registry, name string, raw json.RawMessage) (*emoe.Emoe, error) {
	var spec scenario.EmoeSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("decoding emoe spec: %w", err)
	}
	return BuildEmoeFromSpec(reg, name, spec)
}

// BuildEmoeFromSpec constructs a validated emoe.Emoe from a decoded
// scenario.EmoeSpec against reg. Exported so pkg/driver can build the
// same emoe.Emoe locally (e.g. to report required cpus before
// submitting) without duplicating this logic.
func BuildEmoeFromSpec(reg *model.Registry, name string, spec scenario.EmoeSpec) (*emoe.Emoe, error) {
	platforms := make([]*model.Platform, 0, len(spec.Platforms))
	for _, ps := range spec.Platforms {
		plt, err := reg.BuildPlatform(ps.Template, ps.Name)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", ps.Name, err)
		}
		for key, value := range ps.Overrides {
			if err := applyOverride(plt, key, value); err != nil {
				return nil, fmt.Errorf("platform %q override %q: %w", ps.Name, key, err)
			}
		}
		platforms = append(platforms, plt)
	}

	antennas := make([]*model.Antenna, 0, len(spec.Antennas))
	for _, as := range spec.Antennas {
		at, ok := reg.AntennaTypes[as.Type]
		if !ok {
			return nil, fmt.Errorf("antenna %q: unknown antenna type %q", as.Name, as.Type)
		}
		antennas = append(antennas, &model.Antenna{Name: as.Name, Type: at})
	}

	ics := make([]emoe.InitialCondition, 0, len(spec.InitialConditions))
	for _, is := range spec.InitialConditions {
		ics = append(ics, emoe.InitialCondition{
			PlatformName: is.Platform,
			Kind:         is.Kind,
			Lat:          is.Lat,
			Lon:          is.Lon,
			Alt:          is.Alt,
			Speed:        is.Speed,
			Azimuth:      is.Azimuth,
			Elevation:    is.Elevation,
			Pitch:        is.Pitch,
			Roll:         is.Roll,
			Yaw:          is.Yaw,
			AntennaName:  is.AntennaName,
			North:        is.North,
			East:         is.East,
			Up:           is.Up,
		})
	}

	return emoe.New(name, platforms, antennas, ics)
}

// applyOverride sets "component.group.param" to value on a
// just-built platform, failing if any segment doesn't resolve —
// overrides may only set an already-template-declared param, never
// create a new one (model.ParamGroup.SetParam's own contract).
func applyOverride(plt *model.Platform, key, value string) error {
	compName, group, param, err := splitOverrideKey(key)
	if err != nil {
		return err
	}
	c, ok := plt.ComponentByName(compName)
	if !ok {
		return fmt.Errorf("no component %q", compName)
	}
	pg, ok := c.ParamGroups[group]
	if !ok {
		return fmt.Errorf("component %q has no param group %q", compName, group)
	}
	return pg.SetParam(param, model.ParseValues([]string{value}))
}

func splitOverrideKey(key string) (component, group, param string, err error) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("override key %q must be \"component.group.param\"", key)
	}
	return parts[0], parts[1], parts[2], nil
}
