package helpers

import (
	"testing"

	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func radioComponent(t *testing.T, name string, nemid int64) *model.Component {
	t.Helper()
	c := model.NewComponent(name, "rfpipe.radio", nil, model.Descriptor{TrafficEndpoint: true})
	pg := model.NewParamGroup("emane")
	var values []model.Value
	if nemid > 0 {
		values = []model.Value{{Kind: model.KindInt, Int: nemid}}
	}
	p, err := model.NewParam("nemid", values)
	require.NoError(t, err)
	pg.Params["nemid"] = p
	c.ParamGroups["emane"] = pg
	netPg := model.NewParamGroup("net")
	addrParam, err := model.NewParam("ipv4address", nil)
	require.NoError(t, err)
	netPg.Params["ipv4address"] = addrParam
	c.ParamGroups["net"] = netPg
	return c
}

func TestNemAssignsSmallestUnusedID(t *testing.T) {
	p1 := model.NewPlatform("plt1", 1)
	p1.AddComponent(radioComponent(t, "radioA", 0))
	p1.AddComponent(radioComponent(t, "radioB", 5))
	p2 := model.NewPlatform("plt2", 1)
	p2.AddComponent(radioComponent(t, "radioC", 0))

	platforms := []*model.Platform{p1, p2}
	require.NoError(t, Nem{}.Configure(platforms))

	a, _ := p1.ComponentByName("radioA")
	c, _ := p2.ComponentByName("radioC")
	pa, _ := a.Param("emane", "nemid")
	pc, _ := c.Param("emane", "nemid")

	assert.Equal(t, int64(1), pa.First().Int)
	assert.Equal(t, int64(2), pc.First().Int)
	assert.NoError(t, Nem{}.Check(platforms))
}

func TestNemCheckDetectsDuplicates(t *testing.T) {
	p1 := model.NewPlatform("plt1", 1)
	p1.AddComponent(radioComponent(t, "radioA", 1))
	p1.AddComponent(radioComponent(t, "radioB", 1))

	err := Nem{}.Check([]*model.Platform{p1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate nemid 1`)
}
