package configtree

import (
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/model/helpers"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// componentKey identifies one (platform, component) pair for grouping
// meta params before rendering, mirroring the original's
// meta_params[(plt_name, c_name)] dict-of-dicts.
type componentKey struct {
	platform  string
	component string
}

// collectMetaParams runs every MetaParamProvider helper present for
// platforms and merges their output with the ota/control ipv4
// addresses each ContainerRuntime's device table already carries,
// keyed by (platform, component) the same way build_platform_configs
// does in the original.
func collectMetaParams(platforms []*model.Platform, rt *runtime.EmoeRuntime) (map[componentKey]map[string]model.Value, error) {
	out := make(map[componentKey]map[string]model.Value)
	add := func(plt, comp, group, name string, v model.Value) {
		k := componentKey{plt, comp}
		if out[k] == nil {
			out[k] = make(map[string]model.Value)
		}
		out[k][group+"."+name] = v
	}

	phyParams, err := helpers.Phy{}.GetMetaParams(platforms)
	if err != nil {
		return nil, err
	}
	for _, mp := range phyParams {
		add(mp.PlatformName, mp.ComponentName, mp.Group, mp.Name, mp.Value)
	}

	if hasLTE(platforms) {
		epcBackchanAddr := func(platformName, componentName string) (string, bool) {
			for key, cr := range rtContainerRuntimesByKey(rt) {
				if key.platform != platformName || key.component != componentName {
					continue
				}
				if d, ok := cr.GetDevice("backchan0"); ok {
					if bd, ok := d.(runtime.BridgeDevice); ok {
						return bd.IPv4Address, true
					}
					if hd, ok := d.(runtime.HostDevice); ok {
						return hd.IPv4Address, true
					}
				}
			}
			return "", false
		}
		lteParams, err := helpers.LTE{}.GetMetaParams(platforms, epcBackchanAddr)
		if err != nil {
			return nil, err
		}
		for _, mp := range lteParams {
			add(mp.PlatformName, mp.ComponentName, mp.Group, mp.Name, mp.Value)
		}
	}

	for key, cr := range rtContainerRuntimesByKey(rt) {
		if d, ok := cr.GetDevice("ota0"); ok {
			add(key.platform, key.component, "emex", "ota_ipv4address", model.Value{Kind: model.KindString, Str: deviceAddr(d)})
		}
		if d, ok := cr.GetDevice("backchan0"); ok {
			add(key.platform, key.component, "emex", "control_ipv4address", model.Value{Kind: model.KindString, Str: deviceAddr(d)})
		}
	}
	return out, nil
}

func deviceAddr(d runtime.AnyDevice) string {
	switch dd := d.(type) {
	case runtime.HostDevice:
		return dd.IPv4Address
	case runtime.RadioDevice:
		return dd.IPv4Address
	case runtime.BridgeDevice:
		return dd.IPv4Address
	default:
		return ""
	}
}

func rtContainerRuntimesByKey(rt *runtime.EmoeRuntime) map[componentKey]*runtime.ContainerRuntime {
	out := make(map[componentKey]*runtime.ContainerRuntime)
	for name, cr := range rt.ContainerRuntimes() {
		// name is "platform.component", split at its first '.'.
		// Platform and component names are not checked for dots, so a
		// dotted platform name would be split inside the name.
		plt, comp := splitOnce(name)
		out[componentKey{plt, comp}] = cr
	}
	return out
}

func splitOnce(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func hasLTE(platforms []*model.Platform) bool {
	for _, plt := range platforms {
		for _, c := range plt.Components {
			if len(c.EmexType) >= 4 && c.EmexType[:4] == "lte." {
				return true
			}
		}
	}
	return false
}
