package daemon

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/daemon/metrics"
	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/model"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/runtime"
)

type fakeMgr struct {
	checkOK      bool
	checkMessage string
	startOK      bool
	startMessage string
	startRT      *runtime.EmoeRuntime
	stoppedID    string
}

func (f *fakeMgr) CheckEmoe(e *emoe.Emoe) (bool, string) { return f.checkOK, f.checkMessage }
func (f *fakeMgr) StartEmoe(clientID string, e *emoe.Emoe, addr string, port int) (*runtime.EmoeRuntime, bool, string) {
	return f.startRT, f.startOK, f.startMessage
}
func (f *fakeMgr) StopEmoe(emoeID string) (bool, string, string) {
	f.stoppedID = emoeID
	return true, "stopped", "someemoe"
}
func (f *fakeMgr) HandleContainerStateMessage(emoeID string, reported emoe.State, detail string) {}
func (f *fakeMgr) EmoeRuntimesByClientID(clientID string) []*runtime.EmoeRuntime                  { return nil }
func (f *fakeMgr) EmoeRuntimeByID(emoeID string) (*runtime.EmoeRuntime, bool)                     { return nil, false }
func (f *fakeMgr) ResetClient(clientID string)                                                    {}
func (f *fakeMgr) TotalCpus() int                                                                 { return 4 }
func (f *fakeMgr) AvailableCpus() int                                                              { return 2 }

func newTestServer(mgr OrchestratorManager) *Server {
	reg := model.NewRegistry()
	return NewServer(mgr, reg, metrics.New())
}

func readEnvelope(t *testing.T, conn net.Conn) protocol.Envelope {
	t.Helper()
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		frames, err := dec.Feed(buf[:n])
		require.NoError(t, err)
		if len(frames) > 0 {
			env, err := protocol.DecodeEnvelope(frames[0])
			require.NoError(t, err)
			return env
		}
	}
}

func TestClientSessionCheckEmoe(t *testing.T) {
	mgr := &fakeMgr{checkOK: true, checkMessage: "fits"}
	s := newTestServer(mgr)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	sess := newClientSession(serverConn, s)
	go sess.run()

	req, err := protocol.EncodeMessage(protocol.TagCheckEmoe, protocol.CheckEmoeRequest{
		Name: "test", Spec: []byte(`{"platforms":[]}`),
	})
	require.NoError(t, err)
	_, err = clientConn.Write(req)
	require.NoError(t, err)

	env := readEnvelope(t, clientConn)
	assert.Equal(t, protocol.TagCheckResult, env.Tag)
}

func TestClientSessionStopEmoe(t *testing.T) {
	mgr := &fakeMgr{}
	s := newTestServer(mgr)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	sess := newClientSession(serverConn, s)
	go sess.run()

	req, err := protocol.EncodeMessage(protocol.TagStopEmoe, protocol.StopEmoeRequest{EmoeID: "e-1"})
	require.NoError(t, err)
	_, err = clientConn.Write(req)
	require.NoError(t, err)

	env := readEnvelope(t, clientConn)
	assert.Equal(t, protocol.TagStopResult, env.Tag)
	assert.Equal(t, "e-1", mgr.stoppedID)
}

func TestNotifyEmoeStatePushesToConnectedClient(t *testing.T) {
	mgr := &fakeMgr{}
	s := newTestServer(mgr)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	sess := newClientSession(serverConn, s)
	sess.clientID = "client-1"
	go sess.run()

	// give run() a moment to register before we push.
	time.Sleep(20 * time.Millisecond)
	s.NotifyEmoeState("client-1", "emoe-1", emoe.Running, "container up")

	env := readEnvelope(t, clientConn)
	assert.Equal(t, protocol.TagEmoeState, env.Tag)
}

func TestNotifyEmoeStateNoopWhenClientNotConnected(t *testing.T) {
	mgr := &fakeMgr{}
	s := newTestServer(mgr)
	s.NotifyEmoeState("nobody", "emoe-1", emoe.Running, "")
}
