package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

const testScenario = `
emoe:
  platforms:
    - name: rfpipe-001
      template: rfpipe
    - name: rfpipe-002
      template: rfpipe
events:
  "-Inf":
    pov rfpipe-001 40.0 -74.0 100.0
  "0.0": |
    flow_on source=rfpipe-001 destination=rfpipe-002 periodic 10.0 1024
  "30.5": |
    flow_off source=rfpipe-001 destination=rfpipe-002
    end
`

func TestParseFile(t *testing.T) {
	p := New(nil)
	f, err := p.Parse([]byte(testScenario))
	require.NoError(t, err)
	assert.Len(t, f.Emoe.Platforms, 2)
	assert.Len(t, f.Events, 3)
}

func TestParseEventsOrdersByTimeAndExpandsRegex(t *testing.T) {
	p := New(nil)
	f, err := p.Parse([]byte(testScenario))
	require.NoError(t, err)

	events, err := ParseEvents(f)
	require.NoError(t, err)
	require.Len(t, events, 4)

	pov, ok := events[0].Payload.(scenario.PovEvent)
	require.True(t, ok)
	assert.Equal(t, "rfpipe-001", pov.Ref.Platform)
	assert.Equal(t, 40.0, pov.Lat)

	flowOn, ok := events[1].Payload.(scenario.FlowOnEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"rfpipe-001"}, flowOn.Sources)
	assert.Equal(t, []string{"rfpipe-002"}, flowOn.Destinations)
	assert.Equal(t, scenario.FlowPeriodic, flowOn.Type)
	assert.Equal(t, 1024, flowOn.SizeBytes)
	assert.Equal(t, 10.0, flowOn.PacketRate)

	_, ok = events[2].Payload.(scenario.FlowOffEvent)
	require.True(t, ok)

	_, ok = events[3].Payload.(scenario.EndEvent)
	require.True(t, ok)
}

func TestParseFlowOnRejectsUnmatchedRegex(t *testing.T) {
	_, err := parseFlowOn([]string{"source=nonexistent*", "periodic", "10.0", "1024"}, []string{"rfpipe-001"})
	assert.Error(t, err)
}

func TestParsePathloss(t *testing.T) {
	ev, err := parsePathloss([]string{"rfpipe-001", "rfpipe-002:90", "rfpipe-003.radio0:120"})
	require.NoError(t, err)
	assert.Equal(t, "rfpipe-001", ev.Ref.Platform)
	require.Len(t, ev.Links, 2)
	assert.Equal(t, "rfpipe-002", ev.Links[0].Remote.Platform)
	assert.Equal(t, 90.0, ev.Links[0].DB)
	assert.Equal(t, "rfpipe-003", ev.Links[1].Remote.Platform)
	assert.Equal(t, []string{"radio0"}, ev.Links[1].Remote.Components)
	assert.Equal(t, 120.0, ev.Links[1].DB)
}

func TestParseJamOn(t *testing.T) {
	ev, err := parseJamOn([]string{"rfpipe-001", "10.0", "1000000", "100", "50", "2412,2417"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, ev.TxPower)
	assert.Equal(t, 1000000, ev.Bandwidth)
	assert.Equal(t, []int{2412, 2417}, ev.Frequencies)
}

func TestApplyOverrides(t *testing.T) {
	f := &scenario.File{Emoe: scenario.EmoeSpec{Platforms: []scenario.PlatformSpec{
		{Name: "rfpipe-001", Template: "rfpipe"},
	}}}
	err := ApplyOverrides(f, []string{"rfpipe-001.radio0.net.ipv4address=10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", f.Emoe.Platforms[0].Overrides["radio0.net.ipv4address"])
}
