// Package orchestrator implements the Manager: the daemon's core
// finite-state-machine driver, owning the cpu and host-port resource
// trackers, the started-emoe runtime tables, and every lifecycle
// transition between them.
package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/resource"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// EmexDirectoryAction controls what happens to an emoe's workdir once
// it tears down.
type EmexDirectoryAction string

const (
	EmexDirectoryDelete           EmexDirectoryAction = "delete"
	EmexDirectoryDeleteOnSuccess  EmexDirectoryAction = "deleteonsuccess"
	EmexDirectoryKeep             EmexDirectoryAction = "keep"
)

// ContainerStarter is the container-engine-facing half of StartEmoe —
// implemented by pkg/containerengine.Manager. Kept as an interface
// here (rather than a direct import) purely to break what would
// otherwise be a Manager <-> ContainerManager <-> Manager import
// cycle, matching the "breaking cyclic refs via interface" design
// note.
type ContainerStarter interface {
	Start(rt *runtime.EmoeRuntime, listenAddress string, listenPort int) (bool, string)
	StopAndRemove(rt *runtime.EmoeRuntime)
}

// ConfigBuilder renders an EmoeRuntime's on-disk config tree before
// its container is started.
type ConfigBuilder interface {
	Build(rt *runtime.EmoeRuntime) error
}

// ClientNotifier pushes an asynchronous state notification to
// whichever client owns an emoe. Also an interface for the same
// cyclic-reference reason as ContainerStarter — the daemon protocol
// frontend implements it and also calls into Manager.
type ClientNotifier interface {
	NotifyEmoeState(clientID, emoeID string, state emoe.State, detail string)
}

// AgentController pushes an AGENT_CONTROL command down to the
// in-container agent owning emoeID, once it has connected.
// Implemented by *daemon.Server (AgentSessionByEmoeID +
// AgentSession.SendControl) — an interface for the same cyclic-
// reference reason as ClientNotifier.
type AgentController interface {
	SendAgentControl(emoeID string, cmd protocol.ControlCommand, spec []byte) error
}

// WorkdirRemover removes a started emoe's workdir from disk.
type WorkdirRemover interface {
	RemoveWorkdir(path string) error
}

// Manager is the orchestrator core. Its exported methods are called
// from the client and agent session goroutines and from the container
// manager's result-draining goroutine; one mutex serializes every
// method that reads or changes the runtime tables and resource
// trackers.
type Manager struct {
	mu sync.Mutex

	cpus      *resource.Tracker
	hostPorts *resource.Tracker

	containers ContainerStarter
	builder    ConfigBuilder
	notifier   ClientNotifier
	agents     AgentController
	workdirs   WorkdirRemover

	timestamper *runtime.Timestamper

	emoeDirectoryAction EmexDirectoryAction
	containerNameFormat runtime.ContainerNameFormat

	emoesByClientID map[string][]*runtime.EmoeRuntime
	emoesByEmoeID   map[string]*runtime.EmoeRuntime
}

// New builds a Manager over the given resource pools and
// collaborators.
func New(
	cpus, hostPorts *resource.Tracker,
	containers ContainerStarter,
	builder ConfigBuilder,
	notifier ClientNotifier,
	agents AgentController,
	workdirs WorkdirRemover,
	timestamper *runtime.Timestamper,
	emoeDirectoryAction EmexDirectoryAction,
	containerNameFormat runtime.ContainerNameFormat,
) *Manager {
	return &Manager{
		cpus:                cpus,
		hostPorts:           hostPorts,
		containers:          containers,
		builder:             builder,
		notifier:            notifier,
		agents:              agents,
		workdirs:            workdirs,
		timestamper:         timestamper,
		emoeDirectoryAction: emoeDirectoryAction,
		containerNameFormat: containerNameFormat,
		emoesByClientID:     make(map[string][]*runtime.EmoeRuntime),
		emoesByEmoeID:       make(map[string]*runtime.EmoeRuntime),
	}
}

// TotalCpus returns the fixed size of the cpu pool.
func (m *Manager) TotalCpus() int {
	return m.cpus.NumAvailable() + m.cpus.NumAllocated()
}

// AvailableCpus returns the count of cpus not currently allocated to
// any running emoe.
func (m *Manager) AvailableCpus() int { return m.cpus.NumAvailable() }

// CheckEmoe validates a candidate emoe against the daemon's current
// state: its name must not collide with any known emoe (across every
// client, not just the requester's), and its cpu request must not
// exceed what's currently available. Except when the name is already
// in use, Message describes the requested-vs-available cpu comparison,
// even when ok is true — a client displays it either way.
func (m *Manager) CheckEmoe(e *emoe.Emoe) (ok bool, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkEmoeLocked(e)
}

func (m *Manager) checkEmoeLocked(e *emoe.Emoe) (bool, string) {
	for _, existing := range m.emoesByEmoeID {
		if existing.Emoe.Name() == e.Name() {
			return false, fmt.Sprintf("emoe name %q is already in use", e.Name())
		}
	}
	requested := e.Cpus()
	available := m.cpus.NumAvailable()
	msg := fmt.Sprintf("requested cpus %d available cpus %d", requested, available)
	if requested > available {
		return false, msg
	}
	return true, msg
}

// StartEmoe allocates cpus, builds the config tree, and hands the
// runtime to the container engine. On any failure after cpu
// allocation it deallocates before returning, so a failed start never
// leaks cpus.
func (m *Manager) StartEmoe(clientID string, e *emoe.Emoe, containerListenAddress string, containerListenPort int) (*runtime.EmoeRuntime, bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, msg := m.checkEmoeLocked(e)
	if !ok {
		return nil, false, msg
	}

	cpuIDs, err := m.cpus.Allocate(e.Cpus())
	if err != nil {
		return nil, false, err.Error()
	}

	emoeID, workdir := m.timestamper.Next()
	rt := runtime.New(emoeID, workdir, clientID, e, cpuIDs, m.containerNameFormat)

	started := false
	defer func() {
		if !started {
			m.cpus.Deallocate(cpuIDs)
		}
	}()

	if err := m.builder.Build(rt); err != nil {
		return nil, false, fmt.Sprintf("building config tree: %v", err)
	}

	ok, msg = m.containers.Start(rt, containerListenAddress, containerListenPort)
	if !ok {
		return nil, false, msg
	}

	started = true
	m.emoesByClientID[clientID] = append(m.emoesByClientID[clientID], rt)
	m.emoesByEmoeID[emoeID] = rt
	return rt, true, msg
}

// RegisterStartedContainer records the container engine's handle for
// a successfully started emoe.
func (m *Manager) RegisterStartedContainer(rt *runtime.EmoeRuntime, container interface{}, reportedName string) {
	rt.SetContainer(container, reportedName)
	log.Info().Str("emoe_id", rt.EmoeID).Str("container", rt.ContainerName()).Msg("container started")
}

// HandleFailedContainerStart is called once the container engine has
// exhausted its retry budget for a start. The runtime is marked
// FAILED, the client is notified, and the runtime is deleted from the
// manager's tables — it will never connect, so there is nothing left
// to track.
func (m *Manager) HandleFailedContainerStart(rt *runtime.EmoeRuntime) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt.SetState(emoe.Failed)
	m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Failed, "container failed to start")
	m.deleteRuntimeLocked(rt)
}

// StopEmoe initiates teardown of an emoe by id. Unlike most of
// Manager's surface, lookup is by emoe_id alone, not scoped to the
// requesting client — matching the original orchestrator's behavior,
// where any client presenting a valid emoe_id may stop it.
//
// If the emoe is already stopping or stopped, this is a no-op that
// reports success rather than an error — a duplicate stop request
// racing the first one's effects should never surface as a failure.
func (m *Manager) StopEmoe(emoeID string) (ok bool, message string, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, known := m.emoesByEmoeID[emoeID]
	if !known {
		return false, fmt.Sprintf("no such emoe %q", emoeID), ""
	}
	if rt.State() >= emoe.Stopping {
		return true, fmt.Sprintf("emoe %q is already stopping", rt.Emoe.Name()), rt.Emoe.Name()
	}

	rt.SetState(emoe.Stopping)
	rt.SetStopCount(2) // client-initiated stop is pre-confirmed, see DESIGN.md
	m.cpus.Deallocate(rt.Cpus)
	m.deallocateHostPorts(rt)
	m.sendStopControl(rt)

	return true, fmt.Sprintf("stopping emoe %q", rt.Emoe.Name()), rt.Emoe.Name()
}

func (m *Manager) deallocateHostPorts(rt *runtime.EmoeRuntime) {
	var ports []int
	for port := range rt.HostPortMappings() {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	m.hostPorts.Deallocate(ports)
	rt.ClearHostPortMappings()
}

func (m *Manager) sendStopControl(rt *runtime.EmoeRuntime) {
	if !rt.DidConnect() {
		return
	}
	m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Stopping, "")
	if err := m.agents.SendAgentControl(rt.EmoeID, protocol.ControlStop, nil); err != nil {
		log.Warn().Err(err).Str("emoe_id", rt.EmoeID).Msg("sending STOP control to agent")
	}
}

// HandleContainerStateMessage is the core FSM transition function,
// driven by state reports the in-container agent sends up through
// the container worker. See DESIGN.md for the QUEUED->CONNECTED
// resolution and the stop_count double-confirmation contract this
// function implements literally.
func (m *Manager) HandleContainerStateMessage(emoeID string, reported emoe.State, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, known := m.emoesByEmoeID[emoeID]
	if !known {
		log.Warn().Str("emoe_id", emoeID).Msg("state report for unknown emoe")
		return
	}

	switch {
	case rt.State() == emoe.Queued && reported == emoe.Connected:
		rt.SetState(emoe.Connected)
		m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Connected, detail)
		if err := m.agents.SendAgentControl(rt.EmoeID, protocol.ControlStart, nil); err != nil {
			log.Warn().Err(err).Str("emoe_id", rt.EmoeID).Msg("sending START control to agent")
		}

	case rt.State() == emoe.Connected && reported == emoe.Starting:
		rt.SetState(emoe.Starting)
		m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Starting, detail)

	case rt.State() == emoe.Starting && reported == emoe.Running:
		rt.SetState(emoe.Running)
		m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Running, detail)

	case rt.State() < emoe.Stopping && reported == emoe.Stopping:
		rt.SetState(emoe.Stopping)
		rt.SetStopCount(1)
		m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Stopping, detail)

	case rt.State() == emoe.Stopping && reported == emoe.Stopping:
		if rt.StopCount() < 2 {
			rt.SetStopCount(rt.StopCount() + 1)
		}
		if rt.StopCount() < 2 {
			return
		}
		m.notifier.NotifyEmoeState(rt.ClientID, rt.EmoeID, emoe.Stopped, detail)
		m.containers.StopAndRemove(rt)
		if m.emoeDirectoryAction == EmexDirectoryDelete ||
			(m.emoeDirectoryAction == EmexDirectoryDeleteOnSuccess && rt.DidRun()) {
			if err := m.workdirs.RemoveWorkdir(rt.Workdir); err != nil {
				log.Error().Err(err).Str("emoe_id", rt.EmoeID).Msg("removing emoe workdir")
			}
		}
		m.deleteRuntimeLocked(rt)

	default:
		log.Debug().Str("emoe_id", emoeID).Str("state", rt.State().String()).Str("reported", reported.String()).
			Msg("ignoring out-of-order state report")
	}
}

func (m *Manager) deleteRuntimeLocked(rt *runtime.EmoeRuntime) {
	delete(m.emoesByEmoeID, rt.EmoeID)
	list := m.emoesByClientID[rt.ClientID]
	for i, other := range list {
		if other == rt {
			m.emoesByClientID[rt.ClientID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.emoesByClientID[rt.ClientID]) == 0 {
		delete(m.emoesByClientID, rt.ClientID)
	}
}

// EmoeRuntimesByClientID returns every runtime owned by clientID.
func (m *Manager) EmoeRuntimesByClientID(clientID string) []*runtime.EmoeRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*runtime.EmoeRuntime, len(m.emoesByClientID[clientID]))
	copy(out, m.emoesByClientID[clientID])
	return out
}

// EmoeRuntimeByID looks up a runtime by emoe_id.
func (m *Manager) EmoeRuntimeByID(emoeID string) (*runtime.EmoeRuntime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.emoesByEmoeID[emoeID]
	return rt, ok
}

// ResetClient stops every emoe belonging to clientID — used when a
// client's connection drops and the daemon tears down everything it
// was responsible for.
func (m *Manager) ResetClient(clientID string) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.emoesByClientID[clientID]))
	for _, rt := range m.emoesByClientID[clientID] {
		ids = append(ids, rt.EmoeID)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.StopEmoe(id)
	}
}

// StopAll initiates teardown of every emoe the daemon currently
// tracks, across every client — used by the stop-all-containers config
// option on daemon shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.emoesByEmoeID))
	for id := range m.emoesByEmoeID {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.StopEmoe(id)
	}
}
