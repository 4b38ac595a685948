// Package dockerengine implements containerengine.Engine on top of the
// Docker Engine API, adapted from the teacher's pkg/discovery/docker
// client wrapper. Where the teacher's Client exposed the raw
// docker/docker SDK methods one-for-one for discovery purposes, Engine
// narrows that surface down to exactly the four operations
// containerengine.Worker needs (run/list/stop/remove), translating
// between emex's StartSpec/ContainerInfo types and the SDK's own.
package dockerengine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/containerengine"
)

// Handle is the ContainerHandle returned by Engine.Run/List, wrapping
// the container ID Docker assigned.
type Handle struct {
	id   string
	name string
}

func (h Handle) ID() string   { return h.id }
func (h Handle) Name() string { return h.name }

// Engine wraps a Docker API client, implementing
// containerengine.Engine.
type Engine struct {
	cli *client.Client
}

// New creates an Engine from the ambient Docker environment (DOCKER_HOST
// and friends), matching the teacher's docker.New constructor.
func New() (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Engine{cli: cli}, nil
}

// Close releases the underlying Docker client connection.
func (e *Engine) Close() error {
	if e.cli == nil {
		return nil
	}
	return e.cli.Close()
}

var _ containerengine.Engine = (*Engine)(nil)

// Run creates and starts one container for spec, binding the emoe
// workdir read-write at spec.BindMountTarget and publishing each
// declared port mapping on the host's loopback-reachable interface.
func (e *Engine) Run(ctx context.Context, spec containerengine.StartSpec) (containerengine.ContainerHandle, error) {
	exposedPorts, portBindings := buildPortConfig(spec.Ports)

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          buildEnv(spec.Env),
		ExposedPorts: exposedPorts,
	}
	if spec.Command != "" {
		cfg.Cmd = []string{"/bin/sh", "-c", spec.Command}
	}

	hostCfg := &container.HostConfig{
		PortBindings: portBindings,
		Privileged:   spec.Privileged,
		Resources: container.Resources{
			CpusetCpus: spec.CpusetCpus,
		},
	}
	if spec.BindMount != "" {
		hostCfg.Binds = []string{fmt.Sprintf("%s:%s", spec.BindMount, spec.BindMountTarget)}
	}

	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, (*specs.Platform)(nil), spec.Name)
	if err != nil {
		return nil, fmt.Errorf("creating container %s: %w", spec.Name, err)
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container %s: %w", spec.Name, err)
	}

	return Handle{id: resp.ID, name: spec.Name}, nil
}

// List returns the coarse status of every container Docker knows
// about (all=true includes stopped/exited containers, needed by
// Worker's poll loop and by stop/remove status checks alike).
func (e *Engine) List(ctx context.Context, all bool) ([]containerengine.ContainerInfo, error) {
	containers, err := e.cli.ContainerList(ctx, types.ContainerListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	out := make([]containerengine.ContainerInfo, 0, len(containers))
	for _, ctr := range containers {
		name := ctr.ID
		for _, n := range ctr.Names {
			if len(n) > 0 && n[0] == '/' {
				name = n[1:]
			} else {
				name = n
			}
			break
		}
		out = append(out, containerengine.ContainerInfo{
			Handle: Handle{id: ctr.ID, name: name},
			Name:   name,
			Status: translateStatus(ctr.State),
		})
	}
	return out, nil
}

// Stop issues a graceful stop, matching the teacher's ContainerStop
// wrapper (nil timeout lets the Docker daemon apply its own default
// grace period before SIGKILL).
func (e *Engine) Stop(ctx context.Context, h containerengine.ContainerHandle) error {
	if err := e.cli.ContainerStop(ctx, h.ID(), container.StopOptions{}); err != nil {
		return fmt.Errorf("stopping container %s: %w", h.ID(), err)
	}
	return nil
}

// Remove deletes a stopped container.
func (e *Engine) Remove(ctx context.Context, h containerengine.ContainerHandle) error {
	if err := e.cli.ContainerRemove(ctx, h.ID(), types.ContainerRemoveOptions{Force: false}); err != nil {
		return fmt.Errorf("removing container %s: %w", h.ID(), err)
	}
	return nil
}

func buildEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func buildPortConfig(ports []containerengine.PortSpec) (map[container.Port]struct{}, map[container.Port][]container.PortBinding) {
	exposed := make(map[container.Port]struct{}, len(ports))
	bindings := make(map[container.Port][]container.PortBinding, len(ports))
	for _, p := range ports {
		cp := container.Port(fmt.Sprintf("%d/tcp", p.ContainerPort))
		exposed[cp] = struct{}{}
		bindings[cp] = []container.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(p.HostPort)}}
	}
	return exposed, bindings
}

func translateStatus(state string) containerengine.ContainerStatus {
	switch state {
	case "created":
		return containerengine.StatusCreated
	case "restarting":
		return containerengine.StatusRestarting
	case "running":
		return containerengine.StatusRunning
	case "paused":
		return containerengine.StatusPaused
	case "exited", "dead":
		return containerengine.StatusExited
	default:
		log.Debug().Str("state", state).Msg("unrecognized docker container state")
		return containerengine.StatusUnknown
	}
}
