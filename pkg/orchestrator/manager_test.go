package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/resource"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

type fakeContainers struct {
	startOK      bool
	startMessage string
	started      []*runtime.EmoeRuntime
	stopped      []*runtime.EmoeRuntime
}

func (f *fakeContainers) Start(rt *runtime.EmoeRuntime, addr string, port int) (bool, string) {
	f.started = append(f.started, rt)
	return f.startOK, f.startMessage
}
func (f *fakeContainers) StopAndRemove(rt *runtime.EmoeRuntime) {
	f.stopped = append(f.stopped, rt)
}

type fakeBuilder struct{ err error }

func (f *fakeBuilder) Build(rt *runtime.EmoeRuntime) error { return f.err }

type notification struct {
	clientID, emoeID string
	state            emoe.State
	detail           string
}

type fakeNotifier struct{ notes []notification }

func (f *fakeNotifier) NotifyEmoeState(clientID, emoeID string, state emoe.State, detail string) {
	f.notes = append(f.notes, notification{clientID, emoeID, state, detail})
}

type fakeWorkdirs struct{ removed []string }

func (f *fakeWorkdirs) RemoveWorkdir(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

type agentControl struct {
	emoeID string
	cmd    protocol.ControlCommand
}

type fakeAgentController struct{ sent []agentControl }

func (f *fakeAgentController) SendAgentControl(emoeID string, cmd protocol.ControlCommand, spec []byte) error {
	f.sent = append(f.sent, agentControl{emoeID, cmd})
	return nil
}

func newTestManager(t *testing.T, startOK bool) (*Manager, *fakeContainers, *fakeNotifier) {
	t.Helper()
	cpus := resource.New("cpu", []int{0, 1, 2, 3}, true)
	ports := resource.New("host_port", []int{9000, 9001}, false)
	containers := &fakeContainers{startOK: startOK, startMessage: "ok"}
	notifier := &fakeNotifier{}
	ts := runtime.NewTimestamper("/tmp/emex", func() time.Time { return time.Unix(1700000000, 0) })
	m := New(cpus, ports, containers, &fakeBuilder{}, notifier, &fakeAgentController{}, &fakeWorkdirs{}, ts, EmexDirectoryDelete, runtime.ContainerNamePrefix)
	return m, containers, notifier
}

func emptyEmoe(t *testing.T, name string) *emoe.Emoe {
	t.Helper()
	e, err := emoe.New(name, nil, nil, nil)
	require.NoError(t, err)
	return e
}

func TestCheckEmoeMessageFormat(t *testing.T) {
	m, _, _ := newTestManager(t, true)
	ok, msg := m.CheckEmoe(emptyEmoe(t, "e1"))
	assert.True(t, ok)
	assert.Equal(t, "requested cpus 0 available cpus 4", msg)
}

func TestCheckEmoeRejectsDuplicateName(t *testing.T) {
	m, _, _ := newTestManager(t, true)
	_, ok, _ := (func() (*runtime.EmoeRuntime, bool, string) {
		return m.StartEmoe("client1", emptyEmoe(t, "dup"), "127.0.0.1", 1)
	})()
	require.True(t, ok)

	ok2, msg := m.CheckEmoe(emptyEmoe(t, "dup"))
	assert.False(t, ok2)
	assert.Contains(t, msg, "already in use")
}

func TestStartEmoeDeallocatesCpusOnContainerFailure(t *testing.T) {
	m, containers, _ := newTestManager(t, false)
	containers.startMessage = "boom"
	_, ok, msg := m.StartEmoe("client1", emptyEmoe(t, "e2"), "127.0.0.1", 1)
	assert.False(t, ok)
	assert.Equal(t, "boom", msg)
	assert.Equal(t, 4, m.AvailableCpus())
}

func TestStopEmoeSetsStopCountToTwo(t *testing.T) {
	m, _, _ := newTestManager(t, true)
	rt, ok, _ := m.StartEmoe("client1", emptyEmoe(t, "e3"), "127.0.0.1", 1)
	require.True(t, ok)

	ok, _, name := m.StopEmoe(rt.EmoeID)
	assert.True(t, ok)
	assert.Equal(t, "e3", name)
	assert.Equal(t, emoe.Stopping, rt.State())
	assert.Equal(t, 2, rt.StopCount())
}

func TestStopEmoeIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t, true)
	rt, ok, _ := m.StartEmoe("client1", emptyEmoe(t, "e4"), "127.0.0.1", 1)
	require.True(t, ok)

	m.StopEmoe(rt.EmoeID)
	ok, msg, _ := m.StopEmoe(rt.EmoeID)
	assert.True(t, ok)
	assert.Contains(t, msg, "already stopping")
}

func TestHandleContainerStateMessageDoubleConfirmation(t *testing.T) {
	m, containers, notifier := newTestManager(t, true)
	rt, ok, _ := m.StartEmoe("client1", emptyEmoe(t, "e5"), "127.0.0.1", 1)
	require.True(t, ok)

	m.HandleContainerStateMessage(rt.EmoeID, emoe.Connected, "")
	m.HandleContainerStateMessage(rt.EmoeID, emoe.Starting, "")
	m.HandleContainerStateMessage(rt.EmoeID, emoe.Running, "")
	assert.Equal(t, emoe.Running, rt.State())

	// first STOPPING report: absorbed into stop_count=1, no teardown yet
	m.HandleContainerStateMessage(rt.EmoeID, emoe.Stopping, "")
	assert.Equal(t, emoe.Stopping, rt.State())
	assert.Equal(t, 1, rt.StopCount())
	assert.Empty(t, containers.stopped)

	// second STOPPING report: stop_count reaches 2 and the emoe is torn down
	m.HandleContainerStateMessage(rt.EmoeID, emoe.Stopping, "")
	assert.Equal(t, 2, rt.StopCount())
	assert.Len(t, containers.stopped, 1)

	// a further STOPPING report for the removed runtime is ignored
	m.HandleContainerStateMessage(rt.EmoeID, emoe.Stopping, "")
	assert.Len(t, containers.stopped, 1)

	_, known := m.EmoeRuntimeByID(rt.EmoeID)
	assert.False(t, known)

	var sawStopped bool
	for _, n := range notifier.notes {
		if n.state == emoe.Stopped {
			sawStopped = true
		}
	}
	assert.True(t, sawStopped)
}

func TestHandleContainerStateMessageUnknownEmoeIsIgnored(t *testing.T) {
	m, _, _ := newTestManager(t, true)
	m.HandleContainerStateMessage("nonexistent", emoe.Running, "")
}
