package client

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adjacentlink/emexd/pkg/protocol"
)

// fakeServer accepts a single connection, decodes one envelope, and
// replies with a canned one — enough to exercise Client's framing and
// tag matching without pulling in the whole daemon.
func fakeServer(t *testing.T, ln net.Listener, replyTag protocol.Tag, reply interface{}) {
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	frames, err := dec.Feed(buf[:n])
	require.NoError(t, err)
	require.Len(t, frames, 1)

	body, err := protocol.EncodeMessage(replyTag, reply)
	require.NoError(t, err)
	_, err = conn.Write(body)
	require.NoError(t, err)
}

func TestClientCheckEmoe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go fakeServer(t, ln, protocol.TagCheckResult, protocol.CheckResult{OK: true, Message: "fits"})

	c, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.CheckEmoe("e1", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, reply.OK)
	require.Equal(t, "fits", reply.Message)
}

func TestClientListEmoes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	want := protocol.EmoeList{Emoes: []protocol.EmoeSummary{{EmoeID: "e-1", Name: "n", State: "RUNNING"}}}
	go fakeServer(t, ln, protocol.TagEmoeList, want)

	c, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.ListEmoes()
	require.NoError(t, err)
	require.Len(t, reply.Emoes, 1)
	require.Equal(t, "e-1", reply.Emoes[0].EmoeID)
}
