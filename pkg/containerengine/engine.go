// Package containerengine implements the ContainerWorker/ContainerManager
// pair: a single goroutine that serializes blocking container-runtime
// calls off the orchestrator's control path, and the manager that
// queues work onto it and recovers from port collisions.
package containerengine

import "context"

// PortSpec maps one container-side port to the host port the engine
// should publish it on.
type PortSpec struct {
	ContainerPort int
	HostPort      int
}

// StartSpec is everything the Engine needs to start one emoe's
// container.
type StartSpec struct {
	Image                  string
	Name                   string
	CpusetCpus             string
	Env                    map[string]string
	BindMount              string // host workdir path
	BindMountTarget        string
	Ports                  []PortSpec
	Command                string
	Privileged             bool
}

// ContainerHandle is an opaque reference to a running container. Its
// only structural requirement is a stable ID(); callers that need
// more (logs, exec) type-assert to the concrete engine's handle type.
type ContainerHandle interface {
	ID() string
	Name() string
}

// ContainerStatus is the coarse state Engine.List reports for one
// container, used by Stop to decide whether a remove needs a stop
// first.
type ContainerStatus string

const (
	StatusCreated    ContainerStatus = "created"
	StatusRestarting ContainerStatus = "restarting"
	StatusRunning    ContainerStatus = "running"
	StatusPaused     ContainerStatus = "paused"
	StatusExited     ContainerStatus = "exited"
	StatusUnknown    ContainerStatus = "unknown"
)

// ContainerInfo is one row of a List call.
type ContainerInfo struct {
	Handle ContainerHandle
	Name   string
	Status ContainerStatus
}

// Engine is the out-of-scope external collaborator spec.md calls the
// "container runtime": whatever actually creates namespaces and runs
// processes. This repo treats it as an abstract interface so the
// worker/manager pair above it can be fully unit tested against a
// fake, and ships one concrete implementation, dockerengine.Engine,
// so the interface is exercised end-to-end rather than left
// abstract.
type Engine interface {
	Run(ctx context.Context, spec StartSpec) (ContainerHandle, error)
	List(ctx context.Context, all bool) ([]ContainerInfo, error)
	Stop(ctx context.Context, h ContainerHandle) error
	Remove(ctx context.Context, h ContainerHandle) error
}
