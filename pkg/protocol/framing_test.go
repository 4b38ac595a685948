package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderWholeFrameAtOnce(t *testing.T) {
	d := NewDecoder()
	frame := Encode([]byte("hello"))
	frames, err := d.Feed(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "hello", string(frames[0]))
}

func TestDecoderPartialReads(t *testing.T) {
	d := NewDecoder()
	frame := Encode([]byte("hello world"))

	var got [][]byte
	for _, b := range frame {
		frames, err := d.Feed([]byte{b})
		require.NoError(t, err)
		got = append(got, frames...)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "hello world", string(got[0]))
}

func TestDecoderMultipleFramesInOneChunk(t *testing.T) {
	d := NewDecoder()
	chunk := append(Encode([]byte("one")), Encode([]byte("two"))...)
	frames, err := d.Feed(chunk)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "one", string(frames[0]))
	assert.Equal(t, "two", string(frames[1]))
}

func TestDecoderRejectsOversizeLength(t *testing.T) {
	d := NewDecoder()
	oversized := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := d.Feed(oversized)
	require.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	body, err := EncodeMessage(TagCheckEmoe, CheckEmoeRequest{Name: "e1"})
	require.NoError(t, err)

	d := NewDecoder()
	frames, err := d.Feed(body)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	env, err := DecodeEnvelope(frames[0])
	require.NoError(t, err)
	assert.Equal(t, TagCheckEmoe, env.Tag)
}
