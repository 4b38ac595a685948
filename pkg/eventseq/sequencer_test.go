package eventseq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when Sleep is called, recording every sleep
// duration it was asked for so tests can assert on scheduling
// behavior without real wall-clock delay.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

func TestSequencerOrdersAndSleeps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock([]Event{
		{Time: 5, Payload: "five"},
		{Time: 1, Payload: "one"},
	}, clock)

	it := s.Start()
	ev, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "one", ev.Payload)
	assert.Equal(t, time.Second, clock.sleeps[0])

	ev, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "five", ev.Payload)
	assert.Equal(t, 4*time.Second, clock.sleeps[1])

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestNegativeInfinityNeverSleeps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock([]Event{{Time: NegativeInfinity, Payload: "ic"}}, clock)
	it := s.Start()
	ev, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "ic", ev.Payload)
	assert.Empty(t, clock.sleeps)
}

func TestOverrunEventFiresImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewWithClock([]Event{{Time: 1}}, clock)
	it := s.Start()
	// simulate the sequencer already running behind by advancing the
	// clock past the event's absolute time before Next is ever called
	clock.now = clock.now.Add(10 * time.Second)
	_, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, time.Duration(-9*time.Second), clock.sleeps[0])
}
