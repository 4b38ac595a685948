package helpers

import (
	"testing"

	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func netComponent(t *testing.T, name string, labels []string, configuredAddr string) *model.Component {
	t.Helper()
	c := model.NewComponent(name, "rfpipe.radio", labels, model.Descriptor{TrafficEndpoint: true})
	pg := model.NewParamGroup("net")
	var values []model.Value
	if configuredAddr != "" {
		values = []model.Value{{Kind: model.KindString, Str: configuredAddr}}
	}
	p, err := model.NewParam("ipv4address", values)
	require.NoError(t, err)
	pg.Params["ipv4address"] = p
	c.ParamGroups["net"] = pg
	return c
}

func TestIpv4AssignsSequentialAddressesPerGroup(t *testing.T) {
	plt := model.NewPlatform("plt1", 1)
	plt.AddComponent(netComponent(t, "radioA", []string{"net:backbone"}, ""))
	plt.AddComponent(netComponent(t, "radioB", []string{"net:backbone"}, ""))
	plt.AddComponent(netComponent(t, "radioC", []string{"net:other"}, ""))

	h := NewIpv4()
	require.NoError(t, h.Configure([]*model.Platform{plt}))
	require.NoError(t, h.Check([]*model.Platform{plt}))

	a, _ := plt.ComponentByName("radioA")
	b, _ := plt.ComponentByName("radioB")
	pa, _ := a.Param("net", "ipv4address")
	pb, _ := b.Param("net", "ipv4address")
	assert.Equal(t, "10.0.1.1", pa.First().Str)
	assert.Equal(t, "10.0.1.2", pb.First().Str)
}

func TestIpv4RejectsMixedConfiguredGroup(t *testing.T) {
	plt := model.NewPlatform("plt1", 1)
	plt.AddComponent(netComponent(t, "radioA", []string{"net:backbone"}, "10.0.5.5"))
	plt.AddComponent(netComponent(t, "radioB", []string{"net:backbone"}, ""))

	h := NewIpv4()
	err := h.Configure([]*model.Platform{plt})
	require.Error(t, err)
}

func TestIpv4CheckNamesOffendingComponent(t *testing.T) {
	plt := model.NewPlatform("plt1", 1)
	plt.AddComponent(netComponent(t, "radioA", nil, ""))

	err := Ipv4{}.Check([]*model.Platform{plt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plt1.radioA")
}
