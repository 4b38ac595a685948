package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

func scenarioRequest(kind string, payload []byte, clientSeq int, listFlows bool) protocol.ScenarioRequest {
	return protocol.ScenarioRequest{ClientSequence: clientSeq, Kind: kind, Payload: payload, ListFlows: listFlows}
}

type fakeTraffic struct {
	started []scenario.FlowOnEvent
	stopped []scenario.FlowOffEvent
}

func (f *fakeTraffic) StartFlow(ev scenario.FlowOnEvent, platformIndex func(string) int) error {
	f.started = append(f.started, ev)
	return nil
}
func (f *fakeTraffic) StopFlow(ev scenario.FlowOffEvent) error {
	f.stopped = append(f.stopped, ev)
	return nil
}
func (f *fakeTraffic) Snapshot() []FlowTableEntry {
	return []FlowTableEntry{{FlowIndex: 0, FlowName: "flow1", Active: true, FlowID: 10100}}
}

type fakeSink struct {
	povs []scenario.PovEvent
}

func (f *fakeSink) PublishPOV(ev scenario.PovEvent) error {
	f.povs = append(f.povs, ev)
	return nil
}
func (f *fakeSink) PublishPathloss(ev scenario.PathlossEvent) error           { return nil }
func (f *fakeSink) PublishAntennaPointing(ev scenario.AntennaPointingEvent) error { return nil }

type fakeJam struct {
	onCalls int
}

func (f *fakeJam) JamOn(ev scenario.JamOnEvent, nemID int) error  { f.onCalls++; return nil }
func (f *fakeJam) JamOff(ev scenario.JamOffEvent, nemID int) error { return nil }

func newTestAgent() (*Agent, *fakeTraffic, *fakeSink, *fakeJam) {
	traffic := &fakeTraffic{}
	sink := &fakeSink{}
	jam := &fakeJam{}
	a := New(Config{EmoeID: "e-1", ContainerID: "c-1"}, nil, traffic, sink, jam, []string{"rfpipe-001", "rfpipe-002"})
	a.SetNemMaps(&NemProfileMaps{
		NemIDs:     map[string]int{"rfpipe-001": 1, "rfpipe-002": 2},
		ProfileIDs: map[string]int{"rfpipe-001": 10, "rfpipe-002": 20},
	})
	return a, traffic, sink, jam
}

func TestDispatchFlowOnInvokesTrafficAgent(t *testing.T) {
	a, traffic, _, _ := newTestAgent()
	ev := scenario.FlowOnEvent{Name: "flow1", Sources: []string{"rfpipe-001"}, Destinations: []string{"rfpipe-002"}}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	reply := a.dispatchScenarioRequest(scenarioRequest("flow_on", payload, 1, false), 1)
	require.True(t, reply.OK)
	require.Len(t, traffic.started, 1)
	assert.Equal(t, "flow1", traffic.started[0].Name)
}

func TestDispatchPovInvokesEventSink(t *testing.T) {
	a, _, sink, _ := newTestAgent()
	ev := scenario.PovEvent{Ref: scenario.PlatformComponentRef{Platform: "rfpipe-001"}, Lat: 1, Lon: 2, Alt: 3}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	reply := a.dispatchScenarioRequest(scenarioRequest("pov", payload, 2, false), 2)
	require.True(t, reply.OK)
	require.Len(t, sink.povs, 1)
	assert.Equal(t, 1.0, sink.povs[0].Lat)
}

func TestDispatchJamOnResolvesNemID(t *testing.T) {
	a, _, _, jam := newTestAgent()
	ev := scenario.JamOnEvent{Ref: scenario.PlatformComponentRef{Platform: "rfpipe-001"}, TxPower: 10}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	reply := a.dispatchScenarioRequest(scenarioRequest("jam_on", payload, 3, false), 3)
	require.True(t, reply.OK)
	assert.Equal(t, 1, jam.onCalls)
}

func TestDispatchJamOnFailsWithoutNemID(t *testing.T) {
	a, _, _, _ := newTestAgent()
	ev := scenario.JamOnEvent{Ref: scenario.PlatformComponentRef{Platform: "unknown-platform"}}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	reply := a.dispatchScenarioRequest(scenarioRequest("jam_on", payload, 4, false), 4)
	assert.False(t, reply.OK)
}

func TestDispatchListFlowsPopulatesFlowTable(t *testing.T) {
	a, _, _, _ := newTestAgent()
	ev := scenario.FlowOffEvent{Name: "flow1"}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	reply := a.dispatchScenarioRequest(scenarioRequest("flow_off", payload, 5, true), 5)
	require.True(t, reply.OK)
	require.Len(t, reply.FlowTable, 1)
	assert.Equal(t, 10100, reply.FlowTable[0].FlowID)
}

func TestDispatchUnknownKindFails(t *testing.T) {
	a, _, _, _ := newTestAgent()
	reply := a.dispatchScenarioRequest(scenarioRequest("not_a_kind", nil, 6, false), 6)
	assert.False(t, reply.OK)
}

func TestPlatformIndexResolvesDeclaredOrder(t *testing.T) {
	a, _, _, _ := newTestAgent()
	assert.Equal(t, 0, a.platformIndex("rfpipe-001"))
	assert.Equal(t, 1, a.platformIndex("rfpipe-002"))
	assert.Equal(t, -1, a.platformIndex("nope"))
}

func TestNewAgentStartsQueued(t *testing.T) {
	a, _, _, _ := newTestAgent()
	a.daemonConn = nil
	assert.Equal(t, emoe.Queued, a.currentState())
}
