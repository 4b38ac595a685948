package containerengine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/resource"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

type fakeHandle struct{ id, name string }

func (h fakeHandle) ID() string   { return h.id }
func (h fakeHandle) Name() string { return h.name }

type fakeEngine struct {
	mu        sync.Mutex
	failNext  int
	failMsg   string
	running   map[string]ContainerInfo
}

func newFakeEngine() *fakeEngine { return &fakeEngine{running: make(map[string]ContainerInfo)} }

// Run fails its next failNext invocations. When failMsg is set, every
// failure repeats that fixed message (used to exercise the
// unrecognized-message fallback path, which excludes every port this
// attempt allocated). When failMsg is empty, the failure message
// instead names the attempt's actually-allocated first port, so the
// regex path excludes a real, distinct port on each retry.
func (e *fakeEngine) Run(ctx context.Context, spec StartSpec) (ContainerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNext > 0 {
		e.failNext--
		if e.failMsg != "" {
			return nil, fmt.Errorf(e.failMsg)
		}
		return nil, fmt.Errorf("Bind for 0.0.0.0:%d: bind: address already in use", spec.Ports[0].HostPort)
	}
	h := fakeHandle{id: spec.Name + "-id", name: spec.Name}
	e.running[spec.Name] = ContainerInfo{Handle: h, Name: spec.Name, Status: StatusRunning}
	return h, nil
}

func (e *fakeEngine) List(ctx context.Context, all bool) ([]ContainerInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ContainerInfo, 0, len(e.running))
	for _, info := range e.running {
		out = append(out, info)
	}
	return out, nil
}

func (e *fakeEngine) Stop(ctx context.Context, h ContainerHandle) error { return nil }
func (e *fakeEngine) Remove(ctx context.Context, h ContainerHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, h.Name())
	return nil
}

type fakeOrch struct {
	mu       sync.Mutex
	started  []*runtime.EmoeRuntime
	failed   []*runtime.EmoeRuntime
}

func (f *fakeOrch) RegisterStartedContainer(rt *runtime.EmoeRuntime, container interface{}, reportedName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, rt)
}
func (f *fakeOrch) HandleFailedContainerStart(rt *runtime.EmoeRuntime) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, rt)
}

func testRuntime(t *testing.T, name string) *runtime.EmoeRuntime {
	t.Helper()
	e, err := emoe.New(name, nil, nil, nil)
	require.NoError(t, err)
	rt := runtime.New("ts1", "/tmp/ts1", "client1", e, []int{0, 1}, runtime.ContainerNamePrefix)
	rt.AddContainerPort("control", 9100)
	return rt
}

func TestManagerStartSucceeds(t *testing.T) {
	engine := newFakeEngine()
	worker := NewWorker(engine)
	worker.pollInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	orch := &fakeOrch{}
	ports := resource.New("host_port", []int{9000, 9001, 9002}, false)
	mgr := NewManager(ports, worker, orch, "emex:image", "/tmp/etce")
	go mgr.DrainResults(ctx)

	rt := testRuntime(t, "e1")
	ok, _ := mgr.Start(rt, "127.0.0.1", 1234)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		orch.mu.Lock()
		defer orch.mu.Unlock()
		return len(orch.started) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

// TestManagerRetriesOnPortCollisionThenGivesUp drives every one of the
// runtime's 4 total start attempts (the initial Start plus 3 retries
// CanStart permits) into failure, each naming a distinct allocated
// port so every retry excludes a real port rather than repeating the
// same collision.
func TestManagerRetriesOnPortCollisionThenGivesUp(t *testing.T) {
	engine := newFakeEngine()
	engine.failNext = 4
	worker := NewWorker(engine)
	worker.pollInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	orch := &fakeOrch{}
	ports := resource.New("host_port", []int{9000, 9001, 9002, 9003, 9004, 9005, 9006, 9007}, false)
	mgr := NewManager(ports, worker, orch, "emex:image", "/tmp/etce")
	go mgr.DrainResults(ctx)

	rt := testRuntime(t, "e2")
	ok, _ := mgr.Start(rt, "127.0.0.1", 1234)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		orch.mu.Lock()
		defer orch.mu.Unlock()
		return len(orch.failed) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, ports.NumExcluded())
}

// TestManagerExcludesEveryAttemptedPortOnUnrecognizedMessage covers
// the fallback branch of handlePortCollision: when the engine's
// failure message can't be matched against either known pattern but
// still mentions a port/bind failure, every port this attempt
// allocated is excluded rather than none.
func TestManagerExcludesEveryAttemptedPortOnUnrecognizedMessage(t *testing.T) {
	engine := newFakeEngine()
	engine.failNext = 1
	engine.failMsg = "container failed to start: port conflict detected"
	worker := NewWorker(engine)
	worker.pollInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	orch := &fakeOrch{}
	ports := resource.New("host_port", []int{9000, 9001, 9002, 9003}, false)
	mgr := NewManager(ports, worker, orch, "emex:image", "/tmp/etce")
	go mgr.DrainResults(ctx)

	rt := testRuntime(t, "e3")
	ok, _ := mgr.Start(rt, "127.0.0.1", 1234)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		orch.mu.Lock()
		defer orch.mu.Unlock()
		return len(orch.started) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// rt declares 2 container ports ("control", "scenario"), so the
	// single failed attempt allocated 2 host ports — both excluded.
	assert.Equal(t, 2, ports.NumExcluded())
}
