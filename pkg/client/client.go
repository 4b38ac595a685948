// Package client implements a synchronous daemon client: the same
// request/reply protocol pkg/daemon's ClientSession serves, driven
// from the other end. Used by both pkg/driver (the scenario runner)
// and cmd/emexctl (the operator CLI), mirroring the original's
// emexdrpcclient.py used by both scenariorunner.py and
// emexdclientmessagehandler.py's CLI callers.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/adjacentlink/emexd/pkg/protocol"
)

// Client is a blocking request/reply client to emexd's client port.
// One request is ever in flight at a time per Client, matching the
// original's single-threaded socket RPC pattern.
type Client struct {
	conn net.Conn
	dec  *protocol.Decoder
	mu   sync.Mutex
	host string

	notifications chan protocol.EmoeStateNotification
}

// Dial connects to addr (host:port).
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing emexd at %s: %w", addr, err)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &Client{
		conn:          conn,
		dec:           protocol.NewDecoder(),
		host:          host,
		notifications: make(chan protocol.EmoeStateNotification, 16),
	}, nil
}

// Host returns the daemon host this Client is connected to, with no
// port — used to reach a running emoe's forwarded scenario port on
// the same host.
func (c *Client) Host() string { return c.host }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Notifications returns the channel EMOE_STATE pushes are delivered
// on. Only filled while a request (call) is waiting for its reply —
// a Client is not safe to poll for notifications
// concurrently with a request, mirroring the original's single
// socket being read by whichever logical path is waiting on it.
func (c *Client) Notifications() <-chan protocol.EmoeStateNotification { return c.notifications }

func (c *Client) call(reqTag protocol.Tag, req interface{}, replyTag protocol.Tag, reply interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := protocol.EncodeMessage(reqTag, req)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", reqTag, err)
	}
	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("writing %s: %w", reqTag, err)
	}

	for {
		env, err := c.readEnvelope()
		if err != nil {
			return err
		}
		if env.Tag == protocol.TagEmoeState {
			var note protocol.EmoeStateNotification
			if err := json.Unmarshal(env.Payload, &note); err == nil {
				select {
				case c.notifications <- note:
				default:
				}
			}
			continue
		}
		if env.Tag != replyTag {
			return fmt.Errorf("unexpected reply tag %s, wanted %s", env.Tag, replyTag)
		}
		return json.Unmarshal(env.Payload, reply)
	}
}

func (c *Client) readEnvelope() (protocol.Envelope, error) {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return protocol.Envelope{}, fmt.Errorf("reading from emexd: %w", err)
		}
		frames, err := c.dec.Feed(buf[:n])
		if err != nil {
			return protocol.Envelope{}, fmt.Errorf("decoding emexd frame: %w", err)
		}
		for _, frame := range frames {
			return protocol.DecodeEnvelope(frame)
		}
	}
}

// GetModels requests the declared platform/antenna template catalog.
func (c *Client) GetModels() (protocol.ModelsReply, error) {
	var reply protocol.ModelsReply
	err := c.call(protocol.TagGetModels, struct{}{}, protocol.TagModels, &reply)
	return reply, err
}

// CheckEmoe asks whether spec would currently fit without starting it.
func (c *Client) CheckEmoe(name string, spec json.RawMessage) (protocol.CheckResult, error) {
	var reply protocol.CheckResult
	err := c.call(protocol.TagCheckEmoe, protocol.CheckEmoeRequest{Name: name, Spec: spec}, protocol.TagCheckResult, &reply)
	return reply, err
}

// StartEmoe submits spec for scheduling.
func (c *Client) StartEmoe(req protocol.StartEmoeRequest) (protocol.StartResult, error) {
	var reply protocol.StartResult
	err := c.call(protocol.TagStartEmoe, req, protocol.TagStartResult, &reply)
	return reply, err
}

// StopEmoe tears down a running/queued emoe by id.
func (c *Client) StopEmoe(emoeID string) (protocol.StopResult, error) {
	var reply protocol.StopResult
	err := c.call(protocol.TagStopEmoe, protocol.StopEmoeRequest{EmoeID: emoeID}, protocol.TagStopResult, &reply)
	return reply, err
}

// ListEmoes lists every emoe known to the daemon for this client.
func (c *Client) ListEmoes() (protocol.EmoeList, error) {
	var reply protocol.EmoeList
	err := c.call(protocol.TagListEmoes, struct{}{}, protocol.TagEmoeList, &reply)
	return reply, err
}
