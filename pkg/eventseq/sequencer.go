// Package eventseq implements the scenario event sequencer: an
// iterator over time-ordered events that sleeps, relative to a
// captured start instant, until each event's absolute time arrives.
package eventseq

import (
	"math"
	"sort"
	"time"
)

// Event is one scheduled item: a time offset (in seconds from the
// anchor instant) and the arbitrary payload to deliver when that
// offset is reached. A NegativeInfinity offset fires immediately,
// never sleeping — used for initial conditions that must be applied
// before any real scenario time elapses.
type Event struct {
	Time    float64
	Payload interface{}
}

// NegativeInfinity marks an event that should fire immediately,
// regardless of anchor time.
var NegativeInfinity = math.Inf(-1)

// Clock abstracts the two time operations the sequencer needs, so
// tests can substitute a fake clock instead of waiting on wall time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// realClock is the default Clock, backed by the standard library.
type realClock struct{}

func (realClock) Now() time.Time     { return time.Now() }
func (realClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Sequencer holds a fixed, pre-sorted list of events and produces a
// fresh Iterator — with its own anchor instant — each time Start is
// called, mirroring the original's "the anchor is whatever instant
// iteration itself began" semantics.
type Sequencer struct {
	events []Event
	clock  Clock
}

// New builds a Sequencer over events, sorted ascending by Time
// (NegativeInfinity events sort first). The default clock is the real
// wall clock; tests should build one directly with a fake Clock via
// NewWithClock.
func New(events []Event) *Sequencer {
	return NewWithClock(events, realClock{})
}

// NewWithClock builds a Sequencer using the given Clock — the seam
// tests use to avoid real sleeps.
func NewWithClock(events []Event, clock Clock) *Sequencer {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	return &Sequencer{events: sorted, clock: clock}
}

// Start begins a new iteration, anchored at the clock's current
// instant.
func (s *Sequencer) Start() *Iterator {
	return &Iterator{events: s.events, clock: s.clock, start: s.clock.Now()}
}

// Iterator walks a Sequencer's events in order, sleeping before each
// one is returned so that, from the caller's perspective, Next never
// returns an event "early".
type Iterator struct {
	events []Event
	clock  Clock
	start  time.Time
	idx    int
}

// Next blocks until the next event's scheduled time, then returns it.
// It reports false once every event has been delivered. An event
// whose absolute time has already passed (the sequencer fell behind)
// is returned immediately with no sleep — overruns are never made up
// for by delaying subsequent events further.
func (it *Iterator) Next() (Event, bool) {
	if it.idx >= len(it.events) {
		return Event{}, false
	}
	ev := it.events[it.idx]
	it.idx++
	it.wait(ev.Time)
	return ev, true
}

func (it *Iterator) wait(eventTime float64) {
	if math.IsInf(eventTime, -1) {
		return
	}
	target := it.start.Add(time.Duration(eventTime * float64(time.Second)))
	d := target.Sub(it.clock.Now())
	it.clock.Sleep(d)
}
