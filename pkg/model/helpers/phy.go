package helpers

import (
	"strconv"
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
)

// Phy derives fixed-antenna-gain meta params from phy.antenna0: enabled
// with the given gain when its value names the bare "omni" pathloss
// model (optionally suffixed with a gain, e.g. "omni_20.0"), and
// disabled with gain 0 for any other value, such as a named
// AntennaProfile. Configure and Check are no-ops — phy.antenna0 is
// populated by the scenario/template author, not assigned by this
// helper; its only job is deriving the rendering-time meta params.
type Phy struct{}

var _ ConfigHelper = Phy{}
var _ MetaParamProvider = Phy{}

func (Phy) Configure([]*model.Platform) error { return nil }
func (Phy) Check([]*model.Platform) error     { return nil }

// GetMetaParams scans every platform's components for phy.antenna0,
// emitting phy.fixedantennagainenable/phy.fixedantennagain for each
// configured one: enabled for the omni model, disabled otherwise.
func (Phy) GetMetaParams(platforms []*model.Platform) ([]MetaParam, error) {
	var out []MetaParam
	for _, plt := range platforms {
		for _, c := range plt.Components {
			p, ok := c.Param("phy", "antenna0")
			if !ok || !p.Configured() {
				continue
			}
			val := p.First().Str
			lower := strings.ToLower(val)
			if !strings.HasPrefix(lower, "omni") {
				out = append(out,
					MetaParam{PlatformName: plt.Name, ComponentName: c.Name, Group: "phy", Name: "fixedantennagainenable",
						Value: model.Value{Kind: model.KindBool, Bool: false, Str: "false"}},
					MetaParam{PlatformName: plt.Name, ComponentName: c.Name, Group: "phy", Name: "fixedantennagain",
						Value: model.Value{Kind: model.KindFloat, Float: 0.0}},
				)
				continue
			}
			gain := 0.0
			if idx := strings.IndexByte(val, '_'); idx >= 0 {
				if g, err := strconv.ParseFloat(val[idx+1:], 64); err == nil {
					gain = g
				}
			}
			out = append(out,
				MetaParam{PlatformName: plt.Name, ComponentName: c.Name, Group: "phy", Name: "fixedantennagainenable",
					Value: model.Value{Kind: model.KindBool, Bool: true, Str: "true"}},
				MetaParam{PlatformName: plt.Name, ComponentName: c.Name, Group: "phy", Name: "fixedantennagain",
					Value: model.Value{Kind: model.KindFloat, Float: gain}},
			)
		}
	}
	return out, nil
}
