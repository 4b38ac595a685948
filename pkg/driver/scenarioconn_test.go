package driver

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

func TestEventKindMapsEveryParsedPayloadType(t *testing.T) {
	cases := []struct {
		payload interface{}
		want    string
	}{
		{scenario.FlowOnEvent{}, "flow_on"},
		{scenario.FlowOffEvent{}, "flow_off"},
		{scenario.PovEvent{}, "pov"},
		{scenario.PathlossEvent{}, "pathloss"},
		{scenario.AntennaPointingEvent{}, "antenna_pointing"},
		{scenario.JamOnEvent{}, "jam_on"},
		{scenario.JamOffEvent{}, "jam_off"},
		{scenario.EndEvent{}, "end"},
	}
	for _, c := range cases {
		got, err := eventKind(c.payload)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestEventKindRejectsUnrecognizedPayload(t *testing.T) {
	_, err := eventKind(42)
	assert.Error(t, err)
}

func TestScenarioConnSendRoundTrips(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		defer conn.Close()

		dec := protocol.NewDecoder()
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		frames, err := dec.Feed(buf[:n])
		require.NoError(t, err)
		require.Len(t, frames, 1)

		var req protocol.ScenarioRequest
		require.NoError(t, json.Unmarshal(frames[0], &req))

		reply := protocol.ScenarioReply{ClientSequence: req.ClientSequence, ServerSequence: 1, OK: true, Message: "ok"}
		body, err := json.Marshal(reply)
		require.NoError(t, err)
		_, err = conn.Write(protocol.Encode(body))
		require.NoError(t, err)
	}()

	sc, err := dialScenario(ln.Addr().String(), 0)
	require.NoError(t, err)
	defer sc.Close()

	reply, err := sc.send("pov", scenario.PovEvent{Lat: 1}, false)
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, 1, reply.ClientSequence)
}
