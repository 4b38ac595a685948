package emoe

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/model/helpers"
)

// Emoe is a fully validated, immutable-after-construction description
// of one emulation: its platforms (already Configure+Check'd),
// antennas, and initial conditions.
type Emoe struct {
	name               string
	platforms          []*model.Platform
	platformByName     map[string]*model.Platform
	antennas           map[string]*model.Antenna
	antennaAssignments map[[2]string]model.AntennaProfile
	initialConditions  []InitialCondition
}

// New builds an Emoe. Platforms are run through the full
// Configure-then-Check helper pipeline before antennas are attached —
// antenna assignment depends on phy.antenna0 already being resolved
// to either a literal omni model or a named antenna. Duplicate
// platform names, a phy.antenna0 value naming an unknown antenna, and
// an initial condition referencing an unknown platform are all
// construction-time errors.
func New(name string, platforms []*model.Platform, antennas []*model.Antenna, initialConditions []InitialCondition) (*Emoe, error) {
	if err := helpers.ConfigureAndCheck(platforms); err != nil {
		return nil, fmt.Errorf("emoe %q: %w", name, err)
	}

	e := &Emoe{
		name:               name,
		platformByName:     make(map[string]*model.Platform),
		antennas:           make(map[string]*model.Antenna),
		antennaAssignments: make(map[[2]string]model.AntennaProfile),
	}
	for _, a := range antennas {
		e.antennas[a.Name] = a
	}
	for _, p := range platforms {
		if err := e.addPlatform(p); err != nil {
			return nil, fmt.Errorf("emoe %q: %w", name, err)
		}
	}
	for _, ic := range initialConditions {
		if err := e.addInitialCondition(ic); err != nil {
			return nil, fmt.Errorf("emoe %q: %w", name, err)
		}
	}
	return e, nil
}

func (e *Emoe) addPlatform(p *model.Platform) error {
	if _, dup := e.platformByName[p.Name]; dup {
		return fmt.Errorf("duplicate platform name %q", p.Name)
	}
	e.platforms = append(e.platforms, p)
	e.platformByName[p.Name] = p

	for _, c := range p.Components {
		antParam, ok := c.Param("phy", "antenna0")
		if !ok || !antParam.Configured() {
			continue
		}
		val := antParam.First().Str
		if strings.HasPrefix(strings.ToLower(val), "omni") {
			continue
		}
		if _, known := e.antennas[val]; !known {
			return fmt.Errorf("platform %q component %q: phy.antenna0 names unknown antenna %q", p.Name, c.Name, val)
		}
		north, east, up := 0.0, 0.0, 0.0
		if p, ok := c.Param("phy", "antenna0_north"); ok && p.Configured() {
			north = p.First().Float
		}
		if p, ok := c.Param("phy", "antenna0_east"); ok && p.Configured() {
			east = p.First().Float
		}
		if p, ok := c.Param("phy", "antenna0_up"); ok && p.Configured() {
			up = p.First().Float
		}
		e.antennaAssignments[[2]string{p.Name, c.Name}] = model.AntennaProfile{
			AntennaName: val, North: north, East: east, Up: up,
		}
	}
	return nil
}

func (e *Emoe) addInitialCondition(ic InitialCondition) error {
	if _, ok := e.platformByName[ic.PlatformName]; !ok {
		return fmt.Errorf("initial condition references unknown platform %q", ic.PlatformName)
	}
	e.initialConditions = append(e.initialConditions, ic)
	return nil
}

// Name returns the emoe's name.
func (e *Emoe) Name() string { return e.name }

// Platforms returns every platform, in the order they were added.
func (e *Emoe) Platforms() []*model.Platform { return e.platforms }

// PlatformByName looks up a platform by name.
func (e *Emoe) PlatformByName(name string) (*model.Platform, bool) {
	p, ok := e.platformByName[name]
	return p, ok
}

// NemIDs returns the union of nemids assigned across every platform.
func (e *Emoe) NemIDs() []int64 {
	seen := make(map[int64]struct{})
	for _, p := range e.platforms {
		for _, id := range p.NemIDs() {
			seen[id] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cpus is the ceiling of the sum of every platform's fractional cpu
// requirement — the value the orchestrator requests from the cpu
// resource tracker.
func (e *Emoe) Cpus() int {
	total := 0.0
	for _, p := range e.platforms {
		total += p.Cpus
	}
	return int(math.Ceil(total))
}

// Resources sums a named non-cpu resource across every platform.
func (e *Emoe) Resources(name string) float64 {
	total := 0.0
	for _, p := range e.platforms {
		total += p.Resources(name)
	}
	return total
}

// InitialConditions returns every initial condition, in the order
// they were added.
func (e *Emoe) InitialConditions() []InitialCondition { return e.initialConditions }

// AntennaAssignments returns every (platform, component) -> profile
// mapping computed from phy.antenna0 at construction time.
func (e *Emoe) AntennaAssignments() map[[2]string]model.AntennaProfile {
	return e.antennaAssignments
}

// AntennaByName looks up an attached antenna.
func (e *Emoe) AntennaByName(name string) (*model.Antenna, bool) {
	a, ok := e.antennas[name]
	return a, ok
}
