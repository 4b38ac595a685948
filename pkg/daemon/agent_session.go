package daemon

import (
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
)

// AgentSession is one in-container agent's connection: it identifies
// itself with its emoe_id/container_id, then reports AGENT_STATE
// transitions for the rest of its life. The daemon may in turn push
// AGENT_CONTROL commands (START/STOP/UPDATE) down the same
// connection — orchestrator.Manager drives these via
// Server.SendAgentControl as an emoe reaches CONNECTED (START) and
// as it tears down (STOP).
type AgentSession struct {
	conn   net.Conn
	server *Server

	writeMu sync.Mutex

	mu          sync.Mutex
	emoeID      string
	containerID string
	identified  bool
}

func newAgentSession(conn net.Conn, s *Server) *AgentSession {
	return &AgentSession{conn: conn, server: s}
}

func (s *AgentSession) run() {
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)

	defer func() {
		s.mu.Lock()
		emoeID := s.emoeID
		s.mu.Unlock()
		if emoeID != "" {
			s.server.unregisterAgent(emoeID, s)
		}
		s.conn.Close()
	}()

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		frames, err := dec.Feed(buf[:n])
		if err != nil {
			log.Warn().Err(err).Msg("decoding agent frame")
			return
		}
		for _, frame := range frames {
			if err := s.handleFrame(frame); err != nil {
				log.Warn().Err(err).Msg("handling agent message")
				return
			}
		}
	}
}

func (s *AgentSession) handleFrame(frame []byte) error {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	switch env.Tag {
	case protocol.TagAgentIdentify:
		return s.handleIdentify(env.Payload)
	case protocol.TagAgentState:
		return s.handleState(env.Payload)
	default:
		return fmt.Errorf("unexpected tag %q from agent", env.Tag)
	}
}

func (s *AgentSession) handleIdentify(payload []byte) error {
	var id protocol.AgentIdentify
	if err := decodeJSON(payload, &id); err != nil {
		return err
	}

	s.mu.Lock()
	s.emoeID = id.EmoeID
	s.containerID = id.ContainerID
	s.identified = true
	s.mu.Unlock()

	s.server.registerAgent(id.EmoeID, s)
	if rt, ok := s.server.mgr.EmoeRuntimeByID(id.EmoeID); ok {
		rt.SetContainerID(id.ContainerID)
	}
	log.Info().Str("emoe_id", id.EmoeID).Str("container_id", id.ContainerID).Msg("agent identified")
	return nil
}

func (s *AgentSession) handleState(payload []byte) error {
	s.mu.Lock()
	identified := s.identified
	s.mu.Unlock()
	if !identified {
		return fmt.Errorf("agent reported state before identifying")
	}

	var msg protocol.AgentStateMessage
	if err := decodeJSON(payload, &msg); err != nil {
		return err
	}
	state, err := emoe.ParseState(msg.State)
	if err != nil {
		return fmt.Errorf("agent reported unrecognized state %q: %w", msg.State, err)
	}
	s.server.mgr.HandleContainerStateMessage(msg.EmoeID, state, msg.Detail)
	return nil
}

// SendControl delivers an AGENT_CONTROL command to this agent.
func (s *AgentSession) SendControl(cmd protocol.ControlCommand, spec []byte) error {
	body, err := protocol.EncodeMessage(protocol.TagAgentControl, protocol.AgentControlMessage{
		Command: cmd, Spec: spec,
	})
	if err != nil {
		return fmt.Errorf("encoding agent control command: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(body)
	return err
}
