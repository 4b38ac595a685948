package containerengine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// jobKind distinguishes the two kinds of work the Worker performs.
type jobKind int

const (
	jobStart jobKind = iota
	jobStop
)

// job is one unit of work queued onto the Worker.
type job struct {
	kind  jobKind
	spec  StartSpec
	seq   uint64
	h     ContainerHandle // for jobStop
	reply chan<- result
}

// result is what the Worker reports back after executing a job. seq
// carries the start job's sequence number back unchanged so the
// manager can correlate a result to its pending start precisely,
// rather than matching by reported name (unavailable on failure) or
// otherwise guessing among concurrently in-flight starts.
type result struct {
	kind         jobKind
	ok           bool
	message      string
	handle       ContainerHandle
	reportedName string
	seq          uint64
}

// Worker is the single goroutine that actually talks to the Engine,
// keeping every blocking container-runtime call off the daemon's
// control goroutine. It is woken by nothing external — callers simply
// receive from its Results channel — so the "loopback socket" wakeup
// trick the original single-process daemon used to interrupt a
// select() loop has no analog here: a buffered Go channel read is
// itself the wakeup.
type Worker struct {
	engine  Engine
	jobs    chan job
	results chan result
	seq     uint64

	pollAttempts int
	pollInterval time.Duration
}

// NewWorker builds a Worker bound to engine. pollAttempts/pollInterval
// control how long Run waits, after a successful Engine.Run, for the
// container to actually appear in Engine.List before declaring the
// start successful — defaulted to 10 attempts at 1s, matching the
// original container worker's poll budget; a container that never
// appears is reported as a failed start.
func NewWorker(engine Engine) *Worker {
	return &Worker{
		engine:       engine,
		jobs:         make(chan job, 16),
		results:      make(chan result, 16),
		pollAttempts: 10,
		pollInterval: time.Second,
	}
}

// Results exposes the worker's outbound result stream for the manager
// to drain.
func (w *Worker) Results() <-chan result { return w.results }

// Run processes jobs until ctx is canceled. It is meant to run as its
// own goroutine for the worker's whole lifetime.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			w.handle(ctx, j)
		}
	}
}

func (w *Worker) handle(ctx context.Context, j job) {
	switch j.kind {
	case jobStart:
		w.handleStart(ctx, j)
	case jobStop:
		w.handleStop(ctx, j)
	}
}

func (w *Worker) handleStart(ctx context.Context, j job) {
	h, err := w.engine.Run(ctx, j.spec)
	if err != nil {
		w.send(result{kind: jobStart, ok: false, message: err.Error(), seq: j.seq})
		return
	}

	for attempt := 0; attempt < w.pollAttempts; attempt++ {
		infos, err := w.engine.List(ctx, true)
		if err == nil {
			for _, info := range infos {
				if info.Name == j.spec.Name {
					w.send(result{kind: jobStart, ok: true, handle: h, reportedName: info.Name, seq: j.seq})
					return
				}
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
	log.Warn().Str("name", j.spec.Name).Msg("started container never appeared in engine listing")
	w.send(result{kind: jobStart, ok: false, message: "started container never appeared in engine listing", handle: h, seq: j.seq})
}

func (w *Worker) handleStop(ctx context.Context, j job) {
	infos, err := w.engine.List(ctx, true)
	if err != nil {
		w.send(result{kind: jobStop, ok: false, message: err.Error(), handle: j.h})
		return
	}
	var status ContainerStatus = StatusUnknown
	for _, info := range infos {
		if info.Handle.ID() == j.h.ID() {
			status = info.Status
			break
		}
	}
	switch status {
	case StatusCreated, StatusRestarting, StatusRunning:
		if err := w.engine.Stop(ctx, j.h); err != nil {
			w.send(result{kind: jobStop, ok: false, message: err.Error(), handle: j.h})
			return
		}
		fallthrough
	case StatusPaused, StatusExited:
		if err := w.engine.Remove(ctx, j.h); err != nil {
			w.send(result{kind: jobStop, ok: false, message: err.Error(), handle: j.h})
			return
		}
	default:
		log.Debug().Str("container", j.h.ID()).Msg("stop requested for container not known to engine")
	}
	w.send(result{kind: jobStop, ok: true, handle: j.h})
}

func (w *Worker) send(r result) {
	w.results <- r
}
