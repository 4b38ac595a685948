package runtime

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	emoepkg "github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
)

// ContainerNameFormat controls where the emoe_id is spliced into a
// started container's name, matching the daemon config element of
// the same purpose.
type ContainerNameFormat string

const (
	ContainerNamePrefix ContainerNameFormat = "prefix"
	ContainerNameSuffix ContainerNameFormat = "suffix"
	ContainerNameBare   ContainerNameFormat = "none"
)

// containerRuntimeKey identifies one ContainerRuntime within an
// EmoeRuntime.
type containerRuntimeKey struct {
	platform  string
	component string
}

// EmoeRuntime is the live, mutable state of one started (or starting)
// emoe: its lifecycle State, retry/stop bookkeeping, the container it
// ended up running as, and the per-component device table derived
// from the emoe's configured params.
type EmoeRuntime struct {
	EmoeID        string
	Workdir       string
	ClientID      string
	Emoe          *emoepkg.Emoe
	Cpus          []int
	containerName string

	state         emoepkg.State
	didRun        bool
	container     interface{}
	containerID   string
	startAttempts int
	stopCount     int

	containerRuntimes map[containerRuntimeKey]*ContainerRuntime
	containerPorts    map[string]int // service name -> container port
	hostPortMappings  map[int]portMapping
}

type portMapping struct {
	ServiceName   string
	ContainerPort int
}

// ScenarioServiceName is the containerPorts/hostPortMappings key for
// the in-container agent's scenario driver port. ScenarioContainerPort
// matches pkg/agent.DefaultScenarioPort — the agent never learns its
// listen port from the daemon, so the two must agree on the literal.
const (
	ScenarioServiceName   = "scenario"
	ScenarioContainerPort = 3000
)

// New builds an EmoeRuntime for a just-accepted emoe, deriving the
// container name from nameFormat and pre-populating the device table
// from every component's configured ipv4address/ipv4mask/device
// (and, if present, nemid) params.
func New(emoeID, workdir, clientID string, e *emoepkg.Emoe, cpus []int, nameFormat ContainerNameFormat) *EmoeRuntime {
	sortedCpus := append([]int(nil), cpus...)
	sort.Ints(sortedCpus)

	rt := &EmoeRuntime{
		EmoeID:            emoeID,
		Workdir:           workdir,
		ClientID:          clientID,
		Emoe:              e,
		Cpus:              sortedCpus,
		state:             emoepkg.Queued,
		startAttempts:     3,
		containerRuntimes: make(map[containerRuntimeKey]*ContainerRuntime),
		containerPorts:    make(map[string]int),
		hostPortMappings:  make(map[int]portMapping),
	}
	switch nameFormat {
	case ContainerNamePrefix:
		rt.containerName = fmt.Sprintf("%s.%s", emoeID, e.Name())
	case ContainerNameSuffix:
		rt.containerName = fmt.Sprintf("%s.%s", e.Name(), emoeID)
	default:
		rt.containerName = e.Name()
	}
	rt.populateDeviceTable()
	rt.AddContainerPort(ScenarioServiceName, ScenarioContainerPort)
	return rt
}

func (rt *EmoeRuntime) populateDeviceTable() {
	for _, plt := range rt.Emoe.Platforms() {
		for _, c := range plt.Components {
			addrP, hasAddr := c.Param("net", "ipv4address")
			maskP, hasMask := c.Param("net", "ipv4mask")
			devP, hasDev := c.Param("net", "device")
			if !hasAddr || !hasMask || !hasDev || !addrP.Configured() || !maskP.Configured() || !devP.Configured() {
				continue
			}
			cr := rt.GetContainerRuntime(plt.Name, c.Name, c.Descriptor)
			devName := devP.First().Str
			maskLen := int(maskP.First().Int)
			base := Device{Name: devName, IPv4Address: addrP.First().Str, MaskLen: maskLen}
			if nemP, ok := c.Param("emane", "nemid"); ok && nemP.Configured() {
				cr.AddDevice(devName, RadioDevice{Device: base, NemID: nemP.First().Int})
			} else {
				cr.AddDevice(devName, HostDevice{Device: base})
			}
		}
	}
}

// State returns the runtime's current lifecycle state.
func (rt *EmoeRuntime) State() emoepkg.State { return rt.state }

// SetState transitions the runtime to a new state. Transitioning to
// Running sets DidRun permanently — used afterward to decide whether
// the workdir should survive teardown under the
// "deleteonsuccess" policy.
func (rt *EmoeRuntime) SetState(s emoepkg.State) {
	rt.state = s
	if s == emoepkg.Running {
		rt.didRun = true
	}
}

// DidRun reports whether this runtime ever reached RUNNING.
func (rt *EmoeRuntime) DidRun() bool { return rt.didRun }

// DidConnect reports whether the runtime's in-container agent has
// ever connected back to the daemon (i.e. a container id is known).
func (rt *EmoeRuntime) DidConnect() bool { return rt.containerID != "" }

// Container returns the opaque container-engine handle for the
// running container, or nil if none has started yet.
func (rt *EmoeRuntime) Container() interface{} { return rt.container }

// SetContainer records the container-engine handle for a
// successfully started container and warns if its reported name
// disagrees with the name this runtime computed for it — a sign the
// container engine silently renamed or reused an existing container.
func (rt *EmoeRuntime) SetContainer(c interface{}, reportedName string) {
	rt.container = c
	if reportedName != "" && reportedName != rt.containerName {
		log.Error().Str("emoe_id", rt.EmoeID).Str("expected", rt.containerName).Str("got", reportedName).
			Msg("started container name disagrees with computed container name")
	}
}

// ContainerName returns the name this runtime computed for its
// container at construction time.
func (rt *EmoeRuntime) ContainerName() string { return rt.containerName }

// ContainerID returns the agent-reported container id, empty if the
// agent has not yet connected.
func (rt *EmoeRuntime) ContainerID() string { return rt.containerID }

// SetContainerID records the agent-reported container id.
func (rt *EmoeRuntime) SetContainerID(id string) { rt.containerID = id }

// StopCount returns the pending-teardown double-confirmation counter.
func (rt *EmoeRuntime) StopCount() int { return rt.stopCount }

// SetStopCount overwrites the double-confirmation counter (the
// orchestrator sets it to 2 directly on a client-initiated stop, or
// to 1 then increments it on the first/second STOPPING state report —
// see pkg/orchestrator and DESIGN.md's stop_count ledger entry).
func (rt *EmoeRuntime) SetStopCount(n int) { rt.stopCount = n }

// CanStart decrements the remaining start-attempt budget and reports
// whether a(nother) start attempt is still allowed. The decrement
// happens before the check: an EmoeRuntime starts with a budget of 3,
// so the first 3 calls return true and every later call false. The
// container manager calls it only after a failed attempt, so a runtime
// gets its initial start plus up to 3 retries.
func (rt *EmoeRuntime) CanStart() bool {
	if rt.startAttempts > -1 {
		rt.startAttempts--
	}
	return rt.startAttempts >= 0
}

// GetContainerRuntime lazily creates (or returns the existing) device
// table for one (platform, component) pair.
func (rt *EmoeRuntime) GetContainerRuntime(platformName, componentName string, desc model.Descriptor) *ContainerRuntime {
	key := containerRuntimeKey{platform: platformName, component: componentName}
	if cr, ok := rt.containerRuntimes[key]; ok {
		return cr
	}
	cr := NewContainerRuntime(desc.Hostname, ComponentDescriptor{
		Hostname:           desc.Hostname,
		TrafficEndpoint:    desc.TrafficEndpoint,
		TestpointPublisher: desc.TestpointPublisher,
		EmaneNode:          desc.EmaneNode,
	})
	rt.containerRuntimes[key] = cr
	return cr
}

// ContainerRuntimes returns every (platform, component) device table,
// keyed "platform.component"; as a map it has no defined order.
func (rt *EmoeRuntime) ContainerRuntimes() map[string]*ContainerRuntime {
	out := make(map[string]*ContainerRuntime, len(rt.containerRuntimes))
	for k, v := range rt.containerRuntimes {
		out[k.platform+"."+k.component] = v
	}
	return out
}

// AddContainerPort registers a service's listen port inside the
// container, to be resolved to a host port once ports are allocated.
func (rt *EmoeRuntime) AddContainerPort(serviceName string, containerPort int) {
	rt.containerPorts[serviceName] = containerPort
}

// ContainerPorts returns the service-name -> container-port map.
func (rt *EmoeRuntime) ContainerPorts() map[string]int { return rt.containerPorts }

// AddHostPortMapping records that hostPort on the daemon host forwards
// to serviceName's container port. Referencing an unknown service
// name is logged and ignored rather than erroring — a late port
// allocation callback racing a container-port deregistration should
// not crash the daemon.
func (rt *EmoeRuntime) AddHostPortMapping(hostPort int, serviceName string) {
	containerPort, ok := rt.containerPorts[serviceName]
	if !ok {
		log.Warn().Str("emoe_id", rt.EmoeID).Str("service", serviceName).Msg("host port mapping for unknown service")
		return
	}
	rt.hostPortMappings[hostPort] = portMapping{ServiceName: serviceName, ContainerPort: containerPort}
}

// ClearHostPortMappings drops every host port mapping, used when a
// start attempt fails and its allocated ports are being deallocated.
func (rt *EmoeRuntime) ClearHostPortMappings() {
	rt.hostPortMappings = make(map[int]portMapping)
}

// HostPortMappings returns the host-port -> (service, container-port)
// map.
func (rt *EmoeRuntime) HostPortMappings() map[int]portMapping { return rt.hostPortMappings }

// ScenarioHostPort returns the host port forwarded to the in-container
// agent's scenario port, or 0 if the container hasn't been started
// (or its port allocation failed) yet.
func (rt *EmoeRuntime) ScenarioHostPort() int {
	for hostPort, m := range rt.hostPortMappings {
		if m.ServiceName == ScenarioServiceName {
			return hostPort
		}
	}
	return 0
}
