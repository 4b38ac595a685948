package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
)

// decodeJSON unmarshals an envelope payload into v, wrapping any
// error with context identifying this as a malformed request rather
// than a transport failure.
func decodeJSON(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding request payload: %w", err)
	}
	return nil
}

// ClientSession is one client's control connection: GET_MODELS,
// CHECK_EMOE, START_EMOE, STOP_EMOE, LIST_EMOES, RESET_CLIENT in,
// EMOE_STATE pushed out asynchronously as the orchestrator reports
// transitions.
type ClientSession struct {
	conn     net.Conn
	server   *Server
	clientID string

	writeMu sync.Mutex
}

func newClientSession(conn net.Conn, s *Server) *ClientSession {
	return &ClientSession{conn: conn, server: s, clientID: conn.RemoteAddr().String()}
}

func (s *ClientSession) run() {
	s.server.registerClient(s.clientID, s)
	defer func() {
		s.server.unregisterClient(s.clientID, s)
		s.server.mgr.ResetClient(s.clientID)
		s.conn.Close()
	}()

	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		frames, err := dec.Feed(buf[:n])
		if err != nil {
			log.Warn().Err(err).Str("client_id", s.clientID).Msg("decoding client frame")
			return
		}
		for _, frame := range frames {
			if err := s.handleFrame(frame); err != nil {
				log.Warn().Err(err).Str("client_id", s.clientID).Msg("handling client message")
				return
			}
		}
	}
}

func (s *ClientSession) handleFrame(frame []byte) error {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	switch env.Tag {
	case protocol.TagGetModels:
		return s.handleGetModels()
	case protocol.TagCheckEmoe:
		return s.handleCheckEmoe(env.Payload)
	case protocol.TagStartEmoe:
		return s.handleStartEmoe(env.Payload)
	case protocol.TagStopEmoe:
		return s.handleStopEmoe(env.Payload)
	case protocol.TagListEmoes:
		return s.handleListEmoes()
	case protocol.TagResetClient:
		s.server.mgr.ResetClient(s.clientID)
		return nil
	default:
		return fmt.Errorf("unexpected tag %q from client", env.Tag)
	}
}

func (s *ClientSession) handleGetModels() error {
	names := s.server.reg.SortedComponentTemplateNames()
	return s.send(protocol.TagModels, protocol.ModelsReply{Components: names})
}

func (s *ClientSession) handleCheckEmoe(payload []byte) error {
	var req protocol.CheckEmoeRequest
	if err := decodeJSON(payload, &req); err != nil {
		return err
	}
	e, err := buildEmoe(s.server.reg, req.Name, req.Spec)
	if err != nil {
		return s.send(protocol.TagCheckResult, protocol.CheckResult{OK: false, Message: err.Error()})
	}
	ok, msg := s.server.mgr.CheckEmoe(e)
	return s.send(protocol.TagCheckResult, protocol.CheckResult{OK: ok, Message: msg})
}

func (s *ClientSession) handleStartEmoe(payload []byte) error {
	var req protocol.StartEmoeRequest
	if err := decodeJSON(payload, &req); err != nil {
		return err
	}
	e, err := buildEmoe(s.server.reg, req.Name, req.Spec)
	if err != nil {
		return s.send(protocol.TagStartResult, protocol.StartResult{OK: false, Message: err.Error()})
	}
	rt, ok, msg := s.server.mgr.StartEmoe(s.clientID, e, req.ContainerListenAddress, req.ContainerListenPort)
	if s.server.metrics != nil {
		outcome := "ok"
		if !ok {
			outcome = "rejected"
		}
		s.server.metrics.StartsTotal.WithLabelValues(outcome).Inc()
	}
	result := protocol.StartResult{OK: ok, Message: msg}
	if ok {
		result.EmoeID = rt.EmoeID
	}
	return s.send(protocol.TagStartResult, result)
}

func (s *ClientSession) handleStopEmoe(payload []byte) error {
	var req protocol.StopEmoeRequest
	if err := decodeJSON(payload, &req); err != nil {
		return err
	}
	ok, msg, name := s.server.mgr.StopEmoe(req.EmoeID)
	if ok && s.server.metrics != nil {
		s.server.metrics.StopsTotal.Inc()
	}
	return s.send(protocol.TagStopResult, protocol.StopResult{OK: ok, Message: msg, Name: name})
}

func (s *ClientSession) handleListEmoes() error {
	rts := s.server.mgr.EmoeRuntimesByClientID(s.clientID)
	summaries := make([]protocol.EmoeSummary, 0, len(rts))
	for _, rt := range rts {
		summaries = append(summaries, protocol.EmoeSummary{
			EmoeID:           rt.EmoeID,
			Name:             rt.Emoe.Name(),
			ClientID:         rt.ClientID,
			State:            rt.State().String(),
			Cpus:             rt.Emoe.Cpus(),
			ScenarioHostPort: rt.ScenarioHostPort(),
		})
	}
	return s.send(protocol.TagEmoeList, protocol.EmoeList{Emoes: summaries})
}

func (s *ClientSession) pushState(emoeID string, state emoe.State, detail string) error {
	return s.send(protocol.TagEmoeState, protocol.EmoeStateNotification{
		EmoeID: emoeID, State: state.String(), Detail: detail,
	})
}

func (s *ClientSession) send(tag protocol.Tag, payload interface{}) error {
	body, err := protocol.EncodeMessage(tag, payload)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", tag, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(body)
	return err
}
