package helpers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
)

// Ipv4 assigns net.ipv4address to every traffic-endpoint component in
// a subnet group (a group with a single member is assigned too), using
// subnet_format (a "%d.%d"-style two-slot format applied to
// (subnetid, hostid)) and an initial hostid of subnet_start.
type Ipv4 struct {
	SubnetFormat string
	SubnetStart  int
}

var _ ConfigHelper = Ipv4{}

// NewIpv4 builds an Ipv4 helper with the original model's defaults.
func NewIpv4() Ipv4 {
	return Ipv4{SubnetFormat: "10.0.%d.%d", SubnetStart: 1}
}

type subnetGroupKey struct {
	waveformType string
	netLabels    string
}

// groupByNetLabel buckets every traffic-endpoint component by
// (waveform type, set of "net:"-prefixed labels) — components sharing
// both sit on the same logical subnet.
func groupByNetLabel(platforms []*model.Platform) map[subnetGroupKey][]ComponentRef {
	out := make(map[subnetGroupKey][]ComponentRef)
	for _, plt := range platforms {
		for _, c := range plt.Components {
			if !c.Descriptor.TrafficEndpoint {
				continue
			}
			var netLabels []string
			for l := range c.Labels {
				if strings.HasPrefix(l, "net:") {
					netLabels = append(netLabels, l)
				}
			}
			sort.Strings(netLabels)
			waveform := c.EmexType
			if idx := strings.IndexByte(waveform, '.'); idx >= 0 {
				waveform = waveform[:idx]
			}
			key := subnetGroupKey{waveformType: waveform, netLabels: strings.Join(netLabels, ",")}
			out[key] = append(out[key], ComponentRef{PlatformName: plt.Name, Component: c})
		}
	}
	return out
}

func sortedKeys(m map[subnetGroupKey][]ComponentRef) []subnetGroupKey {
	keys := make([]subnetGroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].waveformType != keys[j].waveformType {
			return keys[i].waveformType < keys[j].waveformType
		}
		return keys[i].netLabels < keys[j].netLabels
	})
	return keys
}

// Configure assigns net.ipv4address within each subnet group in
// deterministic group order, enforcing the all-or-none rule: a group
// may not mix already-configured and unconfigured members (that would
// mean a template author hand-assigned some addresses in a subnet the
// helper is also expected to complete, an unresolvable conflict).
func (h Ipv4) Configure(platforms []*model.Platform) error {
	groups := groupByNetLabel(platforms)
	subnetID := 1
	for _, key := range sortedKeys(groups) {
		refs := groups[key]
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].PlatformName != refs[j].PlatformName {
				return refs[i].PlatformName < refs[j].PlatformName
			}
			return refs[i].Component.Name < refs[j].Component.Name
		})

		var configured, unconfigured []ComponentRef
		for _, ref := range refs {
			p, ok := ref.Component.Param("net", "ipv4address")
			if !ok {
				continue
			}
			if p.Configured() {
				configured = append(configured, ref)
			} else {
				unconfigured = append(unconfigured, ref)
			}
		}
		if len(configured) > 0 && len(unconfigured) > 0 {
			return fmt.Errorf("subnet group %v mixes configured and unconfigured net.ipv4address members", key)
		}
		if len(unconfigured) == 0 {
			continue
		}
		hostID := h.SubnetStart
		for _, ref := range unconfigured {
			addr := fmt.Sprintf(h.SubnetFormat, subnetID, hostID)
			if err := ref.Component.ParamGroups["net"].SetParam("ipv4address", []model.Value{{Kind: model.KindString, Str: addr}}); err != nil {
				return err
			}
			hostID++
		}
		subnetID++
	}
	return nil
}

// Check reports, by platform and component name, every traffic
// endpoint still missing net.ipv4address after Configure. This fixes
// a bug present in the original model, which referenced an undefined
// loop variable in the equivalent error message (it would raise a
// NameError instead of the intended validation error); here the
// error names the platform and component exactly as originally
// intended.
func (Ipv4) Check(platforms []*model.Platform) error {
	for _, plt := range platforms {
		for _, c := range plt.Components {
			if !c.Descriptor.TrafficEndpoint {
				continue
			}
			p, ok := c.Param("net", "ipv4address")
			if !ok || !p.Configured() {
				return fmt.Errorf("net.ipv4address is not set for %s.%s", plt.Name, c.Name)
			}
		}
	}
	return nil
}
