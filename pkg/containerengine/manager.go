package containerengine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/resource"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

// OrchestratorCallback is the Manager's view back into
// pkg/orchestrator.Manager — kept as an interface, not a direct
// import, for the same "break the cyclic reference" reason
// orchestrator.ContainerStarter is an interface on the other side.
type OrchestratorCallback interface {
	RegisterStartedContainer(rt *runtime.EmoeRuntime, container interface{}, reportedName string)
	HandleFailedContainerStart(rt *runtime.EmoeRuntime)
}

var (
	bindAddrInUseRe  = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+:(?P<port>\d+): bind: address already in use`)
	portAllocatedRe  = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+:(?P<port>\d+) failed: port is already allocated`)
)

// Manager owns the host-port pool and the single Worker goroutine,
// translating orchestrator start/stop requests into queued jobs and
// draining the worker's results back into state transitions —
// including the port-collision recovery loop: on a bind failure, the
// one offending port (if the engine's error message names it) or
// every port this attempt allocated (if it didn't) is excluded from
// the pool before a retry is attempted, up to the runtime's start
// attempt budget.
type Manager struct {
	mu         sync.Mutex
	hostPorts  *resource.Tracker
	worker     *Worker
	orch       OrchestratorCallback
	image      string
	pending    map[uint64]pendingStart
	seq        uint64
	bindTarget string
}

// pendingStart remembers the listen address/port a start job was
// issued with, so a port-collision retry can reuse them without the
// caller having to resupply them.
type pendingStart struct {
	rt            *runtime.EmoeRuntime
	listenAddress string
	listenPort    int
}

// NewManager builds a Manager, spawning no goroutines itself — callers
// must run worker.Run(ctx) and Manager.DrainResults(ctx) separately so
// their lifetimes are explicit at the call site (cmd/emexd does
// this).
func NewManager(hostPorts *resource.Tracker, worker *Worker, orch OrchestratorCallback, image, bindTarget string) *Manager {
	return &Manager{
		hostPorts:  hostPorts,
		worker:     worker,
		orch:       orch,
		image:      image,
		pending:    make(map[uint64]pendingStart),
		bindTarget: bindTarget,
	}
}

// Start allocates host ports for every container port the runtime
// declared, builds the engine start spec, and queues the start job.
// It never blocks on the engine itself — the actual Run call happens
// on the Worker goroutine; Start only reports a synchronous failure
// when host ports can't be allocated at all.
func (m *Manager) Start(rt *runtime.EmoeRuntime, listenAddress string, listenPort int) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	containerPorts := rt.ContainerPorts()
	if len(containerPorts) > m.hostPorts.NumAvailable() {
		return false, fmt.Sprintf("requested %d host ports available %d", len(containerPorts), m.hostPorts.NumAvailable())
	}

	names := make([]string, 0, len(containerPorts))
	for name := range containerPorts {
		names = append(names, name)
	}
	sort.Strings(names)

	hostPortIDs, err := m.hostPorts.Allocate(len(names))
	if err != nil {
		return false, err.Error()
	}

	var ports []PortSpec
	for i, name := range names {
		hostPort := hostPortIDs[i]
		ports = append(ports, PortSpec{ContainerPort: containerPorts[name], HostPort: hostPort})
		rt.AddHostPortMapping(hostPort, name)
	}

	spec := StartSpec{
		Image:           m.image,
		Name:            rt.ContainerName(),
		CpusetCpus:      cpusetString(rt.Cpus),
		Env: map[string]string{
			"DAEMON_LISTEN_ADDRESS": listenAddress,
			"DAEMON_LISTEN_PORT":    strconv.Itoa(listenPort),
			"EMOE_ID":               rt.EmoeID,
		},
		BindMount:       rt.Workdir,
		BindMountTarget: m.bindTarget,
		Ports:           ports,
		Privileged:      true,
	}

	m.seq++
	seq := m.seq
	m.pending[seq] = pendingStart{rt: rt, listenAddress: listenAddress, listenPort: listenPort}
	m.worker.jobs <- job{kind: jobStart, spec: spec, seq: seq}
	return true, "starting"
}

func cpusetString(cpus []int) string {
	strs := make([]string, len(cpus))
	for i, c := range cpus {
		strs[i] = strconv.Itoa(c)
	}
	return strings.Join(strs, ",")
}

// StopAndRemove queues a stop+remove job for rt's container. A nil
// container handle (the emoe never connected) is a no-op — there is
// nothing on the engine side to tear down.
func (m *Manager) StopAndRemove(rt *runtime.EmoeRuntime) {
	handle, ok := rt.Container().(ContainerHandle)
	if !ok || handle == nil {
		log.Warn().Str("emoe_id", rt.EmoeID).Msg("stop requested for emoe with no container handle")
		return
	}
	m.worker.jobs <- job{kind: jobStop, h: handle}
}

// DrainResults consumes the worker's result stream until ctx is
// canceled, translating each into the appropriate orchestrator
// callback. A single wakeup of the underlying channel read may
// correspond to exactly one job, unlike the original's
// drain-the-whole-queue loop — Go's channel semantics already give
// every queued result its own delivery, so there is no batching to
// unwind here.
func (m *Manager) DrainResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-m.worker.results:
			m.handleResult(r)
		}
	}
}

func (m *Manager) handleResult(r result) {
	if r.kind == jobStop {
		return
	}

	m.mu.Lock()
	ps, found := m.pending[r.seq]
	if found {
		delete(m.pending, r.seq)
	}
	m.mu.Unlock()
	if !found {
		log.Error().Msg("container worker result with no matching pending start")
		return
	}
	rt := ps.rt

	if r.ok {
		m.orch.RegisterStartedContainer(rt, r.handle, r.reportedName)
		return
	}

	var portsToDeallocate []int
	for port := range rt.HostPortMappings() {
		portsToDeallocate = append(portsToDeallocate, port)
	}
	rt.ClearHostPortMappings()
	m.hostPorts.Deallocate(portsToDeallocate)

	m.handlePortCollision(r.message, portsToDeallocate)

	if rt.CanStart() {
		m.Start(rt, ps.listenAddress, ps.listenPort)
		return
	}
	m.orch.HandleFailedContainerStart(rt)
}

// handlePortCollision extracts the offending port from a known engine
// error pattern and excludes it from the host-port pool; if the
// message mentions "port" or "bind" but doesn't match either known
// pattern, every port this attempt had allocated (attemptedPorts) is
// excluded instead, erring toward over-exclusion rather than
// repeating the same collision on retry.
func (m *Manager) handlePortCollision(message string, attemptedPorts []int) {
	if match := bindAddrInUseRe.FindStringSubmatch(message); match != nil {
		m.excludePort(match[1])
		return
	}
	if match := portAllocatedRe.FindStringSubmatch(message); match != nil {
		m.excludePort(match[1])
		return
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "port") || strings.Contains(lower, "bind") {
		for _, port := range attemptedPorts {
			m.hostPorts.Exclude(port)
		}
		log.Warn().Str("message", message).Ints("ports", attemptedPorts).
			Msg("unrecognized port-collision message, excluding every port this attempt allocated")
	}
}

func (m *Manager) excludePort(portStr string) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}
	m.hostPorts.Exclude(port)
}
