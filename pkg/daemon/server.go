// Package daemon implements emexd's two TCP front ends — the client
// control port and the in-container agent port — wiring
// pkg/protocol's framed envelopes to pkg/orchestrator.Manager,
// adapted from the original daemon's shell.py/manager.py request
// dispatch loop but split across goroutines per the teacher's
// accept-loop idiom (cmd/chaos-runner's server setup) rather than a
// single-threaded select().
package daemon

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/daemon/metrics"
	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/orchestrator"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// OrchestratorManager is the subset of *orchestrator.Manager the
// daemon front end calls — an interface only so session code can be
// unit tested against a fake without standing up a real Manager plus
// all of its collaborators.
type OrchestratorManager interface {
	CheckEmoe(e *emoe.Emoe) (bool, string)
	StartEmoe(clientID string, e *emoe.Emoe, containerListenAddress string, containerListenPort int) (*runtime.EmoeRuntime, bool, string)
	StopEmoe(emoeID string) (bool, string, string)
	HandleContainerStateMessage(emoeID string, reported emoe.State, detail string)
	EmoeRuntimesByClientID(clientID string) []*runtime.EmoeRuntime
	EmoeRuntimeByID(emoeID string) (*runtime.EmoeRuntime, bool)
	ResetClient(clientID string)
	TotalCpus() int
	AvailableCpus() int
}

// Server owns the client and agent listeners and the registry of
// live client sessions NotifyEmoeState pushes to.
type Server struct {
	mgr     OrchestratorManager
	reg     *model.Registry
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[string]*ClientSession
	agents  map[string]*AgentSession
}

// NewServer builds a Server. reg is the loaded model template
// registry, used to answer GET_MODELS and to build emoe specs against.
func NewServer(mgr OrchestratorManager, reg *model.Registry, m *metrics.Metrics) *Server {
	return &Server{
		mgr:     mgr,
		reg:     reg,
		metrics: m,
		clients: make(map[string]*ClientSession),
		agents:  make(map[string]*AgentSession),
	}
}

// AgentSessionByEmoeID looks up the currently connected agent session
// for emoeID, if any.
func (s *Server) AgentSessionByEmoeID(emoeID string) (*AgentSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.agents[emoeID]
	return sess, ok
}

// SendAgentControl implements orchestrator.AgentController, delivering
// an AGENT_CONTROL command to emoeID's connected agent session. A
// disconnected/not-yet-connected agent is reported as an error — the
// caller logs it rather than treating it as a successful no-op.
func (s *Server) SendAgentControl(emoeID string, cmd protocol.ControlCommand, spec []byte) error {
	sess, ok := s.AgentSessionByEmoeID(emoeID)
	if !ok {
		return fmt.Errorf("no connected agent session for emoe %q", emoeID)
	}
	return sess.SendControl(cmd, spec)
}

func (s *Server) registerAgent(emoeID string, sess *AgentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[emoeID] = sess
	if s.metrics != nil {
		s.metrics.AgentSessions.Set(float64(len(s.agents)))
	}
}

func (s *Server) unregisterAgent(emoeID string, sess *AgentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agents[emoeID] == sess {
		delete(s.agents, emoeID)
	}
	if s.metrics != nil {
		s.metrics.AgentSessions.Set(float64(len(s.agents)))
	}
}

// NotifyEmoeState implements orchestrator.ClientNotifier, pushing an
// EMOE_STATE envelope to clientID's session if it is currently
// connected. A disconnected client simply misses the notification —
// its next LIST_EMOES call will show the current state regardless.
func (s *Server) NotifyEmoeState(clientID, emoeID string, state emoe.State, detail string) {
	s.mu.Lock()
	sess, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := sess.pushState(emoeID, state, detail); err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("pushing emoe state notification")
	}
}

func (s *Server) registerClient(clientID string, sess *ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = sess
	if s.metrics != nil {
		s.metrics.ClientSessions.Set(float64(len(s.clients)))
	}
}

func (s *Server) unregisterClient(clientID string, sess *ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[clientID] == sess {
		delete(s.clients, clientID)
	}
	if s.metrics != nil {
		s.metrics.ClientSessions.Set(float64(len(s.clients)))
	}
}

// ServeClients accepts client control connections on ln until ctx is
// canceled.
func (s *Server) ServeClients(ctx context.Context, ln net.Listener) error {
	return acceptLoop(ctx, ln, func(conn net.Conn) {
		sess := newClientSession(conn, s)
		sess.run()
	})
}

// ServeAgents accepts in-container agent connections on ln until ctx
// is canceled.
func (s *Server) ServeAgents(ctx context.Context, ln net.Listener) error {
	return acceptLoop(ctx, ln, func(conn net.Conn) {
		sess := newAgentSession(conn, s)
		sess.run()
	})
}

func acceptLoop(ctx context.Context, ln net.Listener, handle func(net.Conn)) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		go handle(conn)
	}
}
