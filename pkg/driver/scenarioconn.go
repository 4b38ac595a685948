// Package driver implements the scenario driver side of the agent's
// scenario port: the single-scenario Runner (grounded on the
// original's scenariorunner.py) and the multi-scenario/multi-trial
// BatchRunner (grounded on batchrunner.py), both built on pkg/client
// for the daemon control connection.
package driver

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

// scenarioConn is one TCP connection to a running emoe's in-container
// agent scenario port: every event round-trips a ScenarioRequest for
// a ScenarioReply before the next is sent, matching the agent's
// single-connection, one-request-in-flight handling.
type scenarioConn struct {
	conn net.Conn
	dec  *protocol.Decoder
	seq  int
}

func dialScenario(addr string, timeout time.Duration) (*scenarioConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing scenario port at %s: %w", addr, err)
	}
	return &scenarioConn{conn: conn, dec: protocol.NewDecoder()}, nil
}

func (sc *scenarioConn) Close() error { return sc.conn.Close() }

// send marshals payload under kind, assigns the next client sequence
// number, and blocks for the agent's reply.
func (sc *scenarioConn) send(kind string, payload interface{}, listFlows bool) (protocol.ScenarioReply, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return protocol.ScenarioReply{}, fmt.Errorf("encoding %s event: %w", kind, err)
	}
	sc.seq++
	req := protocol.ScenarioRequest{ClientSequence: sc.seq, Kind: kind, Payload: raw, ListFlows: listFlows}

	body, err := json.Marshal(req)
	if err != nil {
		return protocol.ScenarioReply{}, fmt.Errorf("encoding scenario request: %w", err)
	}
	if _, err := sc.conn.Write(protocol.Encode(body)); err != nil {
		return protocol.ScenarioReply{}, fmt.Errorf("writing scenario request: %w", err)
	}

	return sc.readReply()
}

func (sc *scenarioConn) readReply() (protocol.ScenarioReply, error) {
	buf := make([]byte, 4096)
	for {
		n, err := sc.conn.Read(buf)
		if err != nil {
			return protocol.ScenarioReply{}, fmt.Errorf("reading scenario reply: %w", err)
		}
		frames, err := sc.dec.Feed(buf[:n])
		if err != nil {
			return protocol.ScenarioReply{}, fmt.Errorf("decoding scenario reply: %w", err)
		}
		for _, frame := range frames {
			var reply protocol.ScenarioReply
			if err := json.Unmarshal(frame, &reply); err != nil {
				return protocol.ScenarioReply{}, fmt.Errorf("unmarshaling scenario reply: %w", err)
			}
			return reply, nil
		}
	}
}

// eventKind names the ScenarioRequest.Kind for a parsed scenario event
// payload, matching pkg/agent's dispatchScenarioRequest switch.
func eventKind(payload interface{}) (string, error) {
	switch payload.(type) {
	case scenario.FlowOnEvent:
		return "flow_on", nil
	case scenario.FlowOffEvent:
		return "flow_off", nil
	case scenario.PovEvent:
		return "pov", nil
	case scenario.PathlossEvent:
		return "pathloss", nil
	case scenario.AntennaPointingEvent:
		return "antenna_pointing", nil
	case scenario.JamOnEvent:
		return "jam_on", nil
	case scenario.JamOffEvent:
		return "jam_off", nil
	case scenario.EndEvent:
		return "end", nil
	default:
		return "", fmt.Errorf("unrecognized scenario event payload %T", payload)
	}
}
