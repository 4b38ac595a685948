// Package resource implements the daemon's fixed-pool resource
// bookkeeping: cpu ids and host ports are each tracked as a disjoint
// set of available/allocated/excluded members over a fixed universe.
package resource

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// Tracker partitions a fixed set of integer resource ids (cpu numbers,
// host port numbers) into available, allocated, and excluded subsets.
// It is not safe for concurrent use; callers serialize access (the
// orchestrator Manager owns one Tracker per resource kind and only
// ever touches it from its single control goroutine).
type Tracker struct {
	name       string
	available  []int
	allocated  map[int]struct{}
	excluded   map[int]struct{}
	increasing bool
}

// New builds a Tracker over allowed, the full universe of ids this
// pool may ever hand out. When increasing is false, Allocate prefers
// the highest available ids first; otherwise the lowest.
func New(name string, allowed []int, increasing bool) *Tracker {
	avail := make([]int, len(allowed))
	copy(avail, allowed)
	sort.Ints(avail)
	if !increasing {
		reverse(avail)
	}
	return &Tracker{
		name:       name,
		available:  avail,
		allocated:  make(map[int]struct{}),
		excluded:   make(map[int]struct{}),
		increasing: increasing,
	}
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// NumAvailable returns the count of ids that could still be allocated.
func (t *Tracker) NumAvailable() int { return len(t.available) }

// NumAllocated returns the count of currently allocated ids.
func (t *Tracker) NumAllocated() int { return len(t.allocated) }

// NumExcluded returns the count of currently excluded ids.
func (t *Tracker) NumExcluded() int { return len(t.excluded) }

// Allocate removes numRequested ids from the front of available and
// returns them. If fewer than numRequested ids remain, it allocates
// nothing and returns an error describing the shortfall — it never
// partially allocates.
func (t *Tracker) Allocate(numRequested int) ([]int, error) {
	if numRequested < 0 {
		return nil, fmt.Errorf("resource %q: cannot allocate negative count %d", t.name, numRequested)
	}
	if numRequested > len(t.available) {
		return nil, fmt.Errorf("resource %q: requested %d available %d", t.name, numRequested, len(t.available))
	}
	out := make([]int, numRequested)
	copy(out, t.available[:numRequested])
	t.available = t.available[numRequested:]
	for _, id := range out {
		t.allocated[id] = struct{}{}
	}
	return out, nil
}

// Deallocate returns previously allocated ids to the available pool.
// An id not currently allocated is logged and otherwise ignored,
// matching the original tracker's tolerant behavior — a double
// deallocate should never crash the daemon.
func (t *Tracker) Deallocate(ids []int) {
	for _, id := range ids {
		if _, ok := t.allocated[id]; !ok {
			log.Warn().Str("resource", t.name).Int("id", id).Msg("deallocate of id not currently allocated")
			continue
		}
		delete(t.allocated, id)
		t.available = insertSorted(t.available, id, t.increasing)
	}
}

// Exclude removes a currently-available id from circulation without
// marking it allocated, for ids the daemon has learned are unusable
// (e.g. a host port that collided on a previous container start).
// Excluding an id already excluded is a no-op. Excluding an id that is
// currently allocated is logged and ignored — it cannot be pulled out
// from under an in-use allocation.
func (t *Tracker) Exclude(id int) {
	if _, ok := t.excluded[id]; ok {
		return
	}
	idx := indexOf(t.available, id)
	if idx < 0 {
		log.Warn().Str("resource", t.name).Int("id", id).Msg("exclude of id not currently available")
		return
	}
	t.available = append(t.available[:idx], t.available[idx+1:]...)
	t.excluded[id] = struct{}{}
}

// ClearExcluded returns every currently-excluded id to the available
// pool.
func (t *Tracker) ClearExcluded() {
	for id := range t.excluded {
		t.available = insertSorted(t.available, id, t.increasing)
	}
	t.excluded = make(map[int]struct{})
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func insertSorted(s []int, v int, increasing bool) []int {
	s = append(s, v)
	sort.Ints(s)
	if !increasing {
		reverse(s)
	}
	return s
}
