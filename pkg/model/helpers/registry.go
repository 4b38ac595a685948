package helpers

import (
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
)

// FamilyHelperFactory builds the ConfigHelper for one waveform
// family, keyed by the emex-type prefix it owns (e.g. "lte" for
// "lte.epc"/"lte.enb"/"lte.ue").
type FamilyHelperFactory func() ConfigHelper

// familyHelpers is the set of waveform-family helpers this build
// knows about. LTE ships as the one example family helper; additional
// waveform families register here the same way.
var familyHelpers = map[string]FamilyHelperFactory{
	"lte": func() ConfigHelper { return LTE{} },
}

// DiscoverFamilyHelpers returns the ConfigHelpers, in deterministic
// prefix order, for every waveform family actually present among the
// given platforms' components — a family with zero components
// present contributes no helper, so Configure/Check never runs
// pointless work for waveforms the emoe doesn't use.
func DiscoverFamilyHelpers(platforms []*model.Platform) []ConfigHelper {
	present := make(map[string]struct{})
	for _, plt := range platforms {
		for _, c := range plt.Components {
			prefix := c.EmexType
			if idx := strings.IndexByte(prefix, '.'); idx >= 0 {
				prefix = prefix[:idx]
			}
			if _, ok := familyHelpers[prefix]; ok {
				present[prefix] = struct{}{}
			}
		}
	}
	// fixed, deterministic order: iterate the registration map's
	// declared insertion order by walking a stable prefix list rather
	// than Go's randomized map order.
	order := []string{"lte"}
	var out []ConfigHelper
	for _, prefix := range order {
		if _, ok := present[prefix]; ok {
			out = append(out, familyHelpers[prefix]())
		}
	}
	return out
}

// StandardHelpers returns Nem, Ipv4, Phy, and every present family
// helper, in the fixed order the typed model's Configure/Check
// pipeline always runs them: Nem, then Ipv4, then Phy, then family
// helpers in declaration order.
func StandardHelpers(platforms []*model.Platform) []ConfigHelper {
	out := []ConfigHelper{Nem{}, NewIpv4(), Phy{}}
	out = append(out, DiscoverFamilyHelpers(platforms)...)
	return out
}

// ConfigureAndCheck runs the full two-phase pipeline: Configure for
// every helper, then (once every platform reports fully configured)
// Check for every helper, matching the typed model's contract that
// Configure exhaustively completes every param before any Check runs.
func ConfigureAndCheck(platforms []*model.Platform) error {
	hs := StandardHelpers(platforms)
	for _, h := range hs {
		if err := h.Configure(platforms); err != nil {
			return err
		}
	}
	for _, plt := range platforms {
		if !plt.Configured() {
			return unconfiguredError(plt)
		}
	}
	for _, h := range hs {
		if err := h.Check(platforms); err != nil {
			return err
		}
	}
	return nil
}

func unconfiguredError(plt *model.Platform) error {
	var parts []string
	for cname, pairs := range plt.Unconfigured() {
		for _, gp := range pairs {
			parts = append(parts, plt.Name+"."+cname+"."+gp.Group+"."+gp.Param)
		}
	}
	return &UnconfiguredError{Platform: plt.Name, Params: parts}
}

// UnconfiguredError lists every group.param left unconfigured after
// every helper's Configure phase has run.
type UnconfiguredError struct {
	Platform string
	Params   []string
}

func (e *UnconfiguredError) Error() string {
	return "platform " + e.Platform + " has unconfigured params: " + strings.Join(e.Params, ", ")
}
