// Package runtime implements the per-started-emoe live state:
// EmoeRuntime, ContainerRuntime, device records, and the monotonic
// id/workdir-naming Timestamper.
package runtime

import (
	"fmt"
	"sync"
	"time"
)

// Timestamper hands out strictly-increasing emoe_id strings and the
// workdir path each one maps to. Ids are derived from wall-clock time
// but bumped forward by a tick when two requests land in the same
// clock tick, so two starts in the same process never collide even
// on a coarse clock.
type Timestamper struct {
	mu        sync.Mutex
	now       func() time.Time
	baseDir   string
	lastEmoeID string
}

// NewTimestamper builds a Timestamper rooted at baseDir (the
// directory persisted emoe workdirs are created under), using now as
// its clock seam — tests substitute a fake clock here to make emoe_id
// generation deterministic.
func NewTimestamper(baseDir string, now func() time.Time) *Timestamper {
	if now == nil {
		now = time.Now
	}
	return &Timestamper{now: now, baseDir: baseDir}
}

// Next returns the next emoe_id and its workdir, guaranteed to sort
// strictly after every previously issued id.
func (t *Timestamper) Next() (emoeID string, workdir string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.now().UTC().Format("20060102T150405.000000")
	for id <= t.lastEmoeID {
		id = bump(id)
	}
	t.lastEmoeID = id
	return id, fmt.Sprintf("%s/%s", t.baseDir, id)
}

// bump nudges a timestamp string forward by the smallest representable
// increment of its format so two Next() calls in the same clock tick
// still produce a strictly increasing sequence.
func bump(id string) string {
	ts, err := time.Parse("20060102T150405.000000", id)
	if err != nil {
		return id + "0"
	}
	return ts.Add(time.Microsecond).UTC().Format("20060102T150405.000000")
}
