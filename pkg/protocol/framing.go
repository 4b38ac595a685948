// Package protocol implements the daemon's wire protocol: a uint32
// big-endian length prefix followed by a JSON-encoded tagged
// envelope, and the accumulating decoder state machine that turns an
// arbitrary stream of partial reads into complete frames.
package protocol

import (
	"encoding/binary"
	"fmt"
)

const lengthPrefixSize = 4

// MaxFrameLen bounds a single frame's body size, guarding against a
// misbehaving peer claiming an absurd length and exhausting memory
// before the real body ever arrives.
const MaxFrameLen = 64 << 20 // 64MiB

// decoderState names which half of a frame the Decoder is currently
// accumulating.
type decoderState int

const (
	needLen decoderState = iota
	needBody
)

// Decoder accumulates arbitrarily-chunked byte slices (as delivered
// by successive conn.Read calls) into complete frame bodies. It holds
// no reference to the underlying connection — Feed is pure
// byte-slice-in, frames-out, which is what makes it trivially unit
// testable without a real socket.
type Decoder struct {
	state     decoderState
	buf       []byte
	wantLen   uint32
}

// NewDecoder returns a Decoder ready to accumulate from the start of
// a stream.
func NewDecoder() *Decoder { return &Decoder{state: needLen} }

// Feed appends data to the decoder's internal buffer and extracts
// every complete frame now available, returning their bodies (length
// prefixes already stripped) in arrival order. Partial data for an
// in-progress frame is retained internally for the next Feed call.
func (d *Decoder) Feed(data []byte) ([][]byte, error) {
	d.buf = append(d.buf, data...)
	var frames [][]byte
	for {
		switch d.state {
		case needLen:
			if len(d.buf) < lengthPrefixSize {
				return frames, nil
			}
			n := binary.BigEndian.Uint32(d.buf[:lengthPrefixSize])
			if n > MaxFrameLen {
				return frames, fmt.Errorf("frame length %d exceeds max %d", n, MaxFrameLen)
			}
			d.wantLen = n
			d.buf = d.buf[lengthPrefixSize:]
			d.state = needBody
		case needBody:
			if uint32(len(d.buf)) < d.wantLen {
				return frames, nil
			}
			body := make([]byte, d.wantLen)
			copy(body, d.buf[:d.wantLen])
			d.buf = d.buf[d.wantLen:]
			d.state = needLen
			frames = append(frames, body)
		}
	}
}

// Encode frames a body with its uint32 big-endian length prefix.
func Encode(body []byte) []byte {
	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out[:lengthPrefixSize], uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out
}
