package helpers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adjacentlink/emexd/pkg/model"
)

// LTE is the shipped example of a waveform-family helper, discovered
// by emex-type prefix "lte." the same way Nem/Ipv4/Phy are always
// registered. It groups lte.epc/lte.enb/lte.ue components sharing an
// identical label set into one logical cell, requires exactly one
// epc per group, assigns each enb a unique PCI, and in GetMetaParams
// derives IMSIs, enb/cell ids, the epc's host.ue_entries directory
// string, and each enb's rm.epc_control_ipv4address.
type LTE struct{}

var _ ConfigHelper = LTE{}

// LTE's GetMetaParams needs an extra epc-backchan-address lookup the
// generic MetaParamProvider interface has no room for (Phy's doesn't),
// so it is called directly by the config tree builder rather than
// through that interface.

// pciPool mirrors the original [8*j+i for i in range(3) for j in
// range(63)] enumeration order exactly — it is not simply 0..188
// ascending: i is the outer, slow-varying loop and j the inner one, so
// the pool runs 0, 8, ..., 496, then 1, 9, ..., 497, then 2, 10, ...
func pciPool() []int64 {
	pool := make([]int64, 0, 3*63)
	for i := 0; i < 3; i++ {
		for j := 0; j < 63; j++ {
			pool = append(pool, int64(8*j+i))
		}
	}
	return pool
}

type lteCell struct {
	key  string
	epcs []ComponentRef
	enbs []ComponentRef
	ues  []ComponentRef
}

func groupLTE(platforms []*model.Platform) ([]*lteCell, error) {
	refs, err := GetComponents(platforms, []string{`lte\..*`})
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*lteCell)
	var order []string
	for _, ref := range refs {
		key := strings.Join(ref.Component.LabelSet(), ",")
		cell, ok := byKey[key]
		if !ok {
			cell = &lteCell{key: key}
			byKey[key] = cell
			order = append(order, key)
		}
		switch ref.Component.EmexType {
		case "lte.epc":
			cell.epcs = append(cell.epcs, ref)
		case "lte.enb":
			cell.enbs = append(cell.enbs, ref)
		case "lte.ue":
			cell.ues = append(cell.ues, ref)
		}
	}
	sort.Strings(order)
	cells := make([]*lteCell, len(order))
	for i, k := range order {
		cells[i] = byKey[k]
	}
	return cells, nil
}

// Configure assigns PCI to every enb and requires exactly one epc per
// cell group.
func (LTE) Configure(platforms []*model.Platform) error {
	cells, err := groupLTE(platforms)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if len(cell.epcs) != 1 {
			return fmt.Errorf("lte cell %q must have exactly one epc, has %d", cell.key, len(cell.epcs))
		}
	}
	var allEnbs []ComponentRef
	for _, cell := range cells {
		allEnbs = append(allEnbs, cell.enbs...)
	}
	return AssignUniqueParamID(allEnbs, "rm", "pci", pciPool())
}

// Check re-validates the one-epc-per-cell invariant, which Configure
// already enforces — kept as an explicit Check so a config tree
// rebuilt against externally-edited param values still catches a
// violation introduced after Configure ran.
func (LTE) Check(platforms []*model.Platform) error {
	cells, err := groupLTE(platforms)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if len(cell.epcs) != 1 {
			return fmt.Errorf("lte cell %q must have exactly one epc, has %d", cell.key, len(cell.epcs))
		}
	}
	return nil
}

// GetMetaParams derives, per lte cell, unique rm.imsi per ue and
// unique rm.enbid/rm.cellid per enb, the epc's host.ue_entries
// directory string ("ueid:imsi:ipv4address|..."), and each enb's
// rm.epc_control_ipv4address (read from the cell's epc backchan0
// device address, looked up via the supplied lookup func).
func (LTE) GetMetaParams(platforms []*model.Platform, epcBackchanAddr func(platformName, componentName string) (string, bool)) ([]MetaParam, error) {
	cells, err := groupLTE(platforms)
	if err != nil {
		return nil, err
	}
	var out []MetaParam
	imsiPool := make([]int64, 0, 1<<15)
	for i := int64(1); i <= 1<<15; i++ {
		imsiPool = append(imsiPool, i)
	}
	enbIDPool := make([]int64, 0, 1<<8)
	for i := int64(0); i < 1<<8; i++ {
		enbIDPool = append(enbIDPool, i)
	}

	for _, cell := range cells {
		imsis, err := AssignUniqueMetaParamID(cell.ues, "rm", "imsi", imsiPool)
		if err != nil {
			return nil, err
		}
		out = append(out, imsis...)

		enbIDs, err := AssignUniqueMetaParamID(cell.enbs, "rm", "enbid", enbIDPool)
		if err != nil {
			return nil, err
		}
		out = append(out, enbIDs...)

		cellIDs, err := AssignUniqueMetaParamID(cell.enbs, "rm", "cellid", enbIDPool)
		if err != nil {
			return nil, err
		}
		out = append(out, cellIDs...)

		epc := cell.epcs[0]
		var entries []string
		for i, ue := range cell.ues {
			ueid := fmt.Sprintf("%s-%s", ue.PlatformName, ue.Component.Name)
			imsi := imsis[i].Value.Int
			addr := "0.0.0.0"
			if p, ok := ue.Component.Param("net", "ipv4address"); ok && p.Configured() {
				addr = p.First().Str
			}
			entries = append(entries, fmt.Sprintf("%s:%d:%s", ueid, imsi, addr))
		}
		out = append(out, MetaParam{
			PlatformName:  epc.PlatformName,
			ComponentName: epc.Component.Name,
			Group:         "host",
			Name:          "ue_entries",
			Value:         model.Value{Kind: model.KindString, Str: strings.Join(entries, "|")},
		})

		for _, enb := range cell.enbs {
			addr, ok := epcBackchanAddr(epc.PlatformName, epc.Component.Name)
			if !ok {
				continue
			}
			out = append(out, MetaParam{
				PlatformName:  enb.PlatformName,
				ComponentName: enb.Component.Name,
				Group:         "rm",
				Name:          "epc_control_ipv4address",
				Value:         model.Value{Kind: model.KindString, Str: addr},
			})
		}
	}
	return out, nil
}
