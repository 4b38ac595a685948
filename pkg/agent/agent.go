package agent

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/scenario"
)

// InnerEmulator is the opaque "inner emulator" collaborator: whatever
// boots/tears down the actual waveform emulation inside the
// container. Run blocks until the emulator reports its "traffic run"
// step (or fails); Stop tears it down.
type InnerEmulator interface {
	Run() error
	Stop() error
}

// DefaultScenarioPort is the in-container TCP port the agent listens
// on for the scenario driver connection when Config.ScenarioPort is
// unset. pkg/runtime registers the same port number as the "scenario"
// container port so the two agree without any wire-level negotiation.
const DefaultScenarioPort = 3000

// Config configures an Agent.
type Config struct {
	DaemonAddr        string
	EmoeID            string
	ContainerID       string
	ScenarioPort      int
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ScenarioPort == 0 {
		c.ScenarioPort = DefaultScenarioPort
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	return c
}

// Agent is the in-container scenario agent: connects to the daemon,
// reports its lifecycle state, accepts exactly one scenario driver
// connection, and fans incoming events out to TrafficAgent,
// EmulatorEventSink, and JamController.
type Agent struct {
	cfg       Config
	emulator  InnerEmulator
	traffic   TrafficAgent
	eventSink EmulatorEventSink
	jam       JamController
	nemMaps   *NemProfileMaps
	platforms []string

	daemonConn net.Conn
	writeMu    sync.Mutex

	mu    sync.Mutex
	state emoe.State

	scenarioAccepted bool
}

// New builds an Agent. platforms is the scenario's declared platform
// name list, used to resolve PlatformComponentRef.Platform's index
// for flow id synthesis.
func New(cfg Config, emulator InnerEmulator, traffic TrafficAgent, eventSink EmulatorEventSink, jam JamController, platforms []string) *Agent {
	return &Agent{
		cfg:       cfg.withDefaults(),
		emulator:  emulator,
		traffic:   traffic,
		eventSink: eventSink,
		jam:       jam,
		platforms: platforms,
		state:     emoe.Queued,
	}
}

func (a *Agent) platformIndex(name string) int {
	for i, p := range a.platforms {
		if p == name {
			return i
		}
	}
	return -1
}

// Run dials the daemon, reports CONNECTED, starts the heartbeat, and
// serves the scenario port until accepting a connection fails.
func (a *Agent) Run() error {
	conn, err := net.Dial("tcp", a.cfg.DaemonAddr)
	if err != nil {
		return fmt.Errorf("dialing daemon at %s: %w", a.cfg.DaemonAddr, err)
	}
	a.daemonConn = conn

	if err := a.sendIdentify(); err != nil {
		return err
	}
	a.setState(emoe.Connected, "")

	go a.heartbeatLoop()
	go a.readDaemonControl()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.ScenarioPort))
	if err != nil {
		return fmt.Errorf("listening on scenario port %d: %w", a.cfg.ScenarioPort, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accepting scenario connection: %w", err)
		}
		a.mu.Lock()
		alreadyAccepted := a.scenarioAccepted
		if !alreadyAccepted {
			a.scenarioAccepted = true
		}
		a.mu.Unlock()

		if alreadyAccepted {
			log.Warn().Msg("rejecting second scenario driver connection")
			conn.Close()
			a.setState(emoe.Stopping, "rejected a second scenario driver connection")
			if err := a.emulator.Stop(); err != nil {
				log.Warn().Err(err).Msg("stopping inner emulator after rejected second connection")
			}
			a.setState(emoe.Stopped, "")
			continue
		}

		a.handleScenarioConn(conn)
	}
}

func (a *Agent) sendIdentify() error {
	body, err := protocol.EncodeMessage(protocol.TagAgentIdentify, protocol.AgentIdentify{
		EmoeID: a.cfg.EmoeID, ContainerID: a.cfg.ContainerID,
	})
	if err != nil {
		return fmt.Errorf("encoding agent identify: %w", err)
	}
	return a.writeDaemon(body)
}

func (a *Agent) writeDaemon(body []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_, err := a.daemonConn.Write(body)
	return err
}

func (a *Agent) setState(s emoe.State, detail string) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()

	body, err := protocol.EncodeMessage(protocol.TagAgentState, protocol.AgentStateMessage{
		ContainerID: a.cfg.ContainerID, EmoeID: a.cfg.EmoeID, State: s.String(), Detail: detail,
	})
	if err != nil {
		log.Error().Err(err).Msg("encoding agent state report")
		return
	}
	if err := a.writeDaemon(body); err != nil {
		log.Warn().Err(err).Msg("reporting state to daemon")
	}
}

func (a *Agent) currentState() emoe.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		a.setState(a.currentState(), "heartbeat")
	}
}

func (a *Agent) readDaemonControl() {
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := a.daemonConn.Read(buf)
		if err != nil {
			return
		}
		frames, err := dec.Feed(buf[:n])
		if err != nil {
			log.Warn().Err(err).Msg("decoding daemon control frame")
			return
		}
		for _, frame := range frames {
			a.handleControlFrame(frame)
		}
	}
}

func (a *Agent) handleControlFrame(frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		log.Warn().Err(err).Msg("decoding daemon control envelope")
		return
	}
	if env.Tag != protocol.TagAgentControl {
		log.Warn().Str("tag", string(env.Tag)).Msg("unexpected tag from daemon")
		return
	}
	var msg protocol.AgentControlMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		log.Warn().Err(err).Msg("decoding agent control message")
		return
	}

	switch msg.Command {
	case protocol.ControlStart:
		a.handleStart()
	case protocol.ControlStop:
		a.handleStop()
	case protocol.ControlUpdate:
		log.Info().Msg("received UPDATE control command")
	default:
		log.Warn().Str("command", string(msg.Command)).Msg("unknown control command")
	}
}

func (a *Agent) handleStart() {
	a.setState(emoe.Starting, "")
	if err := a.emulator.Run(); err != nil {
		a.setState(emoe.Stopping, fmt.Sprintf("inner emulator failed to start: %v", err))
		a.setState(emoe.Stopped, "")
		return
	}
	a.setState(emoe.Running, "")
}

func (a *Agent) handleStop() {
	a.setState(emoe.Stopping, "")
	if err := a.emulator.Stop(); err != nil {
		log.Warn().Err(err).Msg("stopping inner emulator")
	}
	a.setState(emoe.Stopped, "")
}

func (a *Agent) handleScenarioConn(conn net.Conn) {
	defer conn.Close()
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	serverSeq := 0

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		frames, err := dec.Feed(buf[:n])
		if err != nil {
			log.Warn().Err(err).Msg("decoding scenario frame")
			return
		}
		for _, frame := range frames {
			var req protocol.ScenarioRequest
			if err := json.Unmarshal(frame, &req); err != nil {
				log.Warn().Err(err).Msg("decoding scenario request")
				continue
			}
			serverSeq++
			reply := a.dispatchScenarioRequest(req, serverSeq)
			body, err := json.Marshal(reply)
			if err != nil {
				log.Error().Err(err).Msg("encoding scenario reply")
				continue
			}
			if _, err := conn.Write(protocol.Encode(body)); err != nil {
				log.Warn().Err(err).Msg("writing scenario reply")
				return
			}
			if req.Kind == "end" {
				return
			}
		}
	}
}

func (a *Agent) dispatchScenarioRequest(req protocol.ScenarioRequest, serverSeq int) protocol.ScenarioReply {
	reply := protocol.ScenarioReply{ClientSequence: req.ClientSequence, ServerSequence: serverSeq, OK: true}

	switch req.Kind {
	case "flow_on":
		var ev scenario.FlowOnEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		if err := a.traffic.StartFlow(ev, a.platformIndex); err != nil {
			return errorReply(reply, err)
		}
	case "flow_off":
		var ev scenario.FlowOffEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		if err := a.traffic.StopFlow(ev); err != nil {
			return errorReply(reply, err)
		}
	case "pov":
		var ev scenario.PovEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		if err := a.eventSink.PublishPOV(ev); err != nil {
			return errorReply(reply, err)
		}
	case "pathloss":
		var ev scenario.PathlossEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		if err := a.eventSink.PublishPathloss(ev); err != nil {
			return errorReply(reply, err)
		}
	case "antenna_pointing":
		var ev scenario.AntennaPointingEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		if err := a.eventSink.PublishAntennaPointing(ev); err != nil {
			return errorReply(reply, err)
		}
	case "jam_on":
		var ev scenario.JamOnEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		nemID, ok := a.nemMaps.nemID(ev.Ref)
		if !ok {
			return errorReply(reply, fmt.Errorf("no nem id for %s", ev.Ref.Platform))
		}
		if err := a.jam.JamOn(ev, nemID); err != nil {
			return errorReply(reply, err)
		}
	case "jam_off":
		var ev scenario.JamOffEvent
		if err := json.Unmarshal(req.Payload, &ev); err != nil {
			return errorReply(reply, err)
		}
		nemID, ok := a.nemMaps.nemID(ev.Ref)
		if !ok {
			return errorReply(reply, fmt.Errorf("no nem id for %s", ev.Ref.Platform))
		}
		if err := a.jam.JamOff(ev, nemID); err != nil {
			return errorReply(reply, err)
		}
	case "end":
		reply.Message = "end"
	default:
		return errorReply(reply, fmt.Errorf("unknown scenario request kind %q", req.Kind))
	}

	if req.ListFlows {
		for _, e := range a.traffic.Snapshot() {
			reply.FlowTable = append(reply.FlowTable, protocol.FlowTableRow{
				FlowIndex: e.FlowIndex, FlowName: e.FlowName, Active: e.Active, FlowID: e.FlowID,
				Src: e.Src, Dst: e.Dst, Tos: e.Tos, Ttl: e.Ttl, Proto: e.Proto,
				Pattern: e.Pattern, Size: e.Size, Rate: e.Rate, Jitter: e.Jitter,
			})
		}
	}

	return reply
}

func errorReply(reply protocol.ScenarioReply, err error) protocol.ScenarioReply {
	reply.OK = false
	reply.Message = err.Error()
	return reply
}

// SetNemMaps installs the NEM/profile id maps the event sink and jam
// controller need to resolve PlatformComponentRef -> nem id. Called
// once after the agent boots, before the scenario port is served.
func (a *Agent) SetNemMaps(m *NemProfileMaps) { a.nemMaps = m }
