package configtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

func mustParam(t *testing.T, name string, vs ...string) *model.Param {
	t.Helper()
	p, err := model.NewParam(name, model.ParseValues(vs))
	require.NoError(t, err)
	return p
}

func buildTestEmoe(t *testing.T) *emoe.Emoe {
	t.Helper()
	desc := model.Descriptor{Hostname: "rf1", TrafficEndpoint: true}
	c := model.NewComponent("rf1", "rfpipe", nil, desc)
	nemPG := model.NewParamGroup("emane")
	nemPG.Params["nemid"] = mustParam(t, "nemid", "1")
	c.ParamGroups["emane"] = nemPG
	netPG := model.NewParamGroup("net")
	netPG.Params["ipv4address"] = mustParam(t, "ipv4address", "10.0.0.1")
	netPG.Params["ipv4mask"] = mustParam(t, "ipv4mask", "24")
	netPG.Params["device"] = mustParam(t, "device", "ota0")
	c.ParamGroups["net"] = netPG
	phyPG := model.NewParamGroup("phy")
	phyPG.Params["antenna0"] = mustParam(t, "antenna0", "omni_10.0")
	c.ParamGroups["phy"] = phyPG

	plt := model.NewPlatform("plt1", 1.0)
	plt.AddComponent(c)

	e, err := emoe.New("test-emoe", []*model.Platform{plt}, nil, nil)
	require.NoError(t, err)
	return e
}

func TestBuilderWritesCoreArtifacts(t *testing.T) {
	e := buildTestEmoe(t)
	workdir := t.TempDir()
	rt := runtime.New("ts1", workdir, "client1", e, []int{0}, runtime.ContainerNamePrefix)

	b := NewBuilder(t.TempDir(), TextTemplateRenderer{})
	err := b.Build(rt, EmexdConfig{LogLevel: "info"})
	require.NoError(t, err)

	for _, rel := range []string{
		"config/test.xml",
		"config/doc/hostfile",
		"config/doc/portmap",
		"config/doc/nemidprofileidmap",
		"config/doc/emexd_config.yaml",
		"config/antennaprofiles.xml",
	} {
		_, err := os.Stat(filepath.Join(workdir, rel))
		assert.NoError(t, err, "expected %s to exist", rel)
	}

	hostfile, err := os.ReadFile(filepath.Join(workdir, "config/doc/hostfile"))
	require.NoError(t, err)
	assert.Contains(t, string(hostfile), "10.0.0.1")
}
