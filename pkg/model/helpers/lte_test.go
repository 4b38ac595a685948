package helpers

import (
	"testing"

	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lteComponent(t *testing.T, name, emexType string, labels []string) *model.Component {
	t.Helper()
	c := model.NewComponent(name, emexType, labels, model.Descriptor{})
	rmPg := model.NewParamGroup("rm")
	c.ParamGroups["rm"] = rmPg
	if emexType == "lte.enb" {
		pciParam, err := model.NewParam("pci", nil)
		require.NoError(t, err)
		rmPg.Params["pci"] = pciParam
	}
	netPg := model.NewParamGroup("net")
	addrParam, err := model.NewParam("ipv4address", []model.Value{{Kind: model.KindString, Str: "10.0.0.1"}})
	require.NoError(t, err)
	netPg.Params["ipv4address"] = addrParam
	c.ParamGroups["net"] = netPg
	return c
}

func oneCellPlatforms(t *testing.T) (*model.Platform, *model.Component, *model.Component, *model.Component) {
	t.Helper()
	plt := model.NewPlatform("plt1", 1)
	epc := lteComponent(t, "epc1", "lte.epc", []string{"cell1"})
	enb := lteComponent(t, "enb1", "lte.enb", []string{"cell1"})
	ue := lteComponent(t, "ue1", "lte.ue", []string{"cell1"})
	plt.AddComponent(epc)
	plt.AddComponent(enb)
	plt.AddComponent(ue)
	return plt, epc, enb, ue
}

func TestLTEConfigureAssignsPCIUnderRMGroup(t *testing.T) {
	plt, _, enb, _ := oneCellPlatforms(t)
	require.NoError(t, LTE{}.Configure([]*model.Platform{plt}))

	p, ok := enb.Param("rm", "pci")
	require.True(t, ok)
	require.True(t, p.Configured())
	assert.Equal(t, int64(0), p.First().Int)
}

func TestLTEConfigureRequiresExactlyOneEPCPerCell(t *testing.T) {
	plt := model.NewPlatform("plt1", 1)
	plt.AddComponent(lteComponent(t, "enb1", "lte.enb", []string{"cell1"}))
	err := LTE{}.Configure([]*model.Platform{plt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one epc")
}

func TestLTEGetMetaParamsAssignsIMSIEnbidAndCellid(t *testing.T) {
	plt, epc, enb, ue := oneCellPlatforms(t)
	require.NoError(t, LTE{}.Configure([]*model.Platform{plt}))

	lookup := func(platformName, componentName string) (string, bool) {
		return "10.1.1.1", true
	}
	meta, err := LTE{}.GetMetaParams([]*model.Platform{plt}, lookup)
	require.NoError(t, err)

	byTarget := make(map[string][]MetaParam)
	for _, mp := range meta {
		key := mp.PlatformName + "." + mp.ComponentName
		byTarget[key] = append(byTarget[key], mp)
	}

	ueKey := plt.Name + "." + ue.Name
	enbKey := plt.Name + "." + enb.Name
	epcKey := plt.Name + "." + epc.Name

	assertHasParam := func(t *testing.T, mps []MetaParam, group, name string) MetaParam {
		t.Helper()
		for _, mp := range mps {
			if mp.Group == group && mp.Name == name {
				return mp
			}
		}
		t.Fatalf("missing %s.%s meta param", group, name)
		return MetaParam{}
	}

	assertHasParam(t, byTarget[ueKey], "rm", "imsi")
	assertHasParam(t, byTarget[enbKey], "rm", "enbid")
	assertHasParam(t, byTarget[enbKey], "rm", "cellid")
	assertHasParam(t, byTarget[enbKey], "rm", "epc_control_ipv4address")
	assertHasParam(t, byTarget[epcKey], "host", "ue_entries")
}
