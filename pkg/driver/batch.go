package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/client"
	"github.com/adjacentlink/emexd/pkg/emoe"
	"github.com/adjacentlink/emexd/pkg/eventseq"
	"github.com/adjacentlink/emexd/pkg/protocol"
	"github.com/adjacentlink/emexd/pkg/reporting"
	"github.com/adjacentlink/emexd/pkg/scenario"
	"github.com/adjacentlink/emexd/pkg/scenario/parser"
)

// BatchRunner cycles NumTrials instances each of a set of scenario
// files through a single daemon: at each 1Hz tick it starts as many
// not-yet-started trials as current capacity allows, and for every
// trial that has newly reached RUNNING it launches a worker pumping
// that trial's events over its scenario port, stopping the emoe when
// the worker finishes. Grounded on the original's BatchRunner, whose
// epoll-driven scheduling cursor this reimplements as a plain ticker
// loop over Go's simpler blocking I/O.
type BatchRunner struct {
	cfg BatchConfig

	mu      sync.Mutex
	index   int // scheduling cursor over 0..len(Scenarios)*NumTrials
	started map[string]bool
	running map[string]bool
	reports []*reporting.RunReport
	wg      sync.WaitGroup
}

// NamedScenario pairs a scenario file with the name used to derive
// its per-trial emoe names ("name.001", "name.002", ...), since
// scenario.File carries no name of its own (the original derives this
// from the scenario file's path).
type NamedScenario struct {
	Name string
	File *scenario.File
}

// BatchConfig configures a BatchRunner.
type BatchConfig struct {
	DaemonAddr  string
	Scenarios   []NamedScenario
	NumTrials   int
	DialTimeout time.Duration
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.NumTrials == 0 {
		c.NumTrials = 1
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// NewBatchRunner builds a BatchRunner.
func NewBatchRunner(cfg BatchConfig) *BatchRunner {
	return &BatchRunner{
		cfg:     cfg.withDefaults(),
		started: make(map[string]bool),
		running: make(map[string]bool),
	}
}

func (b *BatchRunner) totalTrials() int {
	return b.cfg.NumTrials * len(b.cfg.Scenarios)
}

// indexTrial maps the current cursor to (scenarioIndex, trial),
// mirroring index_trial().
func (b *BatchRunner) indexTrial() (scenarioIndex, trial int) {
	return b.index / b.cfg.NumTrials, b.index % b.cfg.NumTrials
}

func (b *BatchRunner) doneStarting() bool {
	return b.index >= b.totalTrials()
}

// nextEmoeName advances past any name already started, mirroring
// next_emoe_name()'s "skip names already in emoes_dict" loop. Callers
// must hold b.mu.
func (b *BatchRunner) nextEmoeName() (string, int, bool) {
	for !b.doneStarting() {
		idx, trial := b.indexTrial()
		name := fmt.Sprintf("%s.%03d", b.cfg.Scenarios[idx].Name, trial+1)
		if !b.started[name] {
			return name, idx, true
		}
		b.index++
	}
	return "", 0, false
}

// Run drives the batch to completion: every trial started, run, and
// stopped. It blocks until every scheduled trial has finished.
func (b *BatchRunner) Run(ctx context.Context) error {
	c, err := client.Dial(b.cfg.DaemonAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}

		list, err := c.ListEmoes()
		if err != nil {
			return fmt.Errorf("list_emoes: %w", err)
		}

		b.startNextTrials(c, list)
		b.launchNewlyRunning(c, list)

		if b.batchComplete() {
			b.wg.Wait()
			return nil
		}
	}
}

func (b *BatchRunner) batchComplete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doneStarting() && len(b.running) == 0
}

// Reports returns the RunReport for every trial that has finished
// (successfully or not) so far.
func (b *BatchRunner) Reports() []*reporting.RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*reporting.RunReport, len(b.reports))
	copy(out, b.reports)
	return out
}

// startNextTrials submits as many not-yet-started trials as current
// capacity allows, mirroring start_next_emoe()'s cpu-fit checks.
func (b *BatchRunner) startNextTrials(c *client.Client, list protocol.EmoeList) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		name, idx, ok := b.nextEmoeName()
		if !ok {
			return
		}

		sc := b.cfg.Scenarios[idx]
		specBytes, err := json.Marshal(sc.File.Emoe)
		if err != nil {
			log.Error().Err(err).Str("name", name).Msg("encoding emoe spec")
			b.index++
			continue
		}

		check, err := c.CheckEmoe(name, specBytes)
		if err != nil {
			log.Error().Err(err).Msg("check_emoe")
			return
		}
		if !check.OK {
			// insufficient capacity right now; try again next tick
			// without advancing past this trial.
			return
		}

		start, err := c.StartEmoe(protocol.StartEmoeRequest{Name: name, Spec: specBytes})
		if err != nil {
			log.Error().Err(err).Msg("start_emoe")
			return
		}
		if !start.OK {
			log.Warn().Str("name", name).Str("message", start.Message).Msg("start_emoe rejected, skipping trial")
			b.index++
			continue
		}

		log.Info().Str("name", name).Str("emoe_id", start.EmoeID).Msg("batch trial started")
		b.started[name] = true
		b.index++
	}
}

// launchNewlyRunning spawns a worker for every trial that has reached
// RUNNING and doesn't already have one.
func (b *BatchRunner) launchNewlyRunning(c *client.Client, list protocol.EmoeList) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range list.Emoes {
		if !b.started[e.Name] || b.running[e.Name] {
			continue
		}
		state, err := emoe.ParseState(e.State)
		if err != nil || state != emoe.Running {
			continue
		}

		idx := b.scenarioIndexForName(e.Name)
		if idx < 0 {
			continue
		}

		b.running[e.Name] = true
		b.wg.Add(1)
		go b.runTrial(e.EmoeID, e.Name, c.Host(), e.ScenarioHostPort, b.cfg.Scenarios[idx].File)
	}
}

func (b *BatchRunner) scenarioIndexForName(name string) int {
	for i := range b.cfg.Scenarios {
		trialName := ""
		for t := 0; t < b.cfg.NumTrials; t++ {
			trialName = fmt.Sprintf("%s.%03d", b.cfg.Scenarios[i].Name, t+1)
			if trialName == name {
				return i
			}
		}
	}
	return -1
}

// runTrial pumps one trial's scenario events over its forwarded
// scenario port, then issues STOP_EMOE — the worker body mirroring
// ScenarioThread.run() plus the parent's stop-on-completion handling.
func (b *BatchRunner) runTrial(emoeID, name, host string, scenarioHostPort int, sc *scenario.File) {
	defer b.wg.Done()
	defer func() {
		b.mu.Lock()
		delete(b.running, name)
		b.mu.Unlock()
	}()

	start := time.Now()
	report := &reporting.RunReport{
		EmoeID:       emoeID,
		ScenarioName: name,
		StartTime:    start,
		Status:       reporting.StatusRunning,
		Platforms:    platformInfos(emoeID, sc.Emoe),
	}

	events, err := b.pumpEvents(host, scenarioHostPort, sc)
	report.Events = events
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("scenario trial failed")
		report.Status = reporting.StatusFailed
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.Status = reporting.StatusCompleted
		report.Success = true
	}

	c, err := client.Dial(b.cfg.DaemonAddr)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("dialing to stop trial")
	} else {
		defer c.Close()
		if _, err := c.StopEmoe(emoeID); err != nil {
			log.Error().Err(err).Str("name", name).Msg("stop_emoe")
			report.Errors = append(report.Errors, err.Error())
		}
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(start).String()

	b.mu.Lock()
	b.reports = append(b.reports, report)
	b.mu.Unlock()
}

func (b *BatchRunner) pumpEvents(host string, scenarioHostPort int, sc *scenario.File) ([]reporting.EventInfo, error) {
	events, err := parser.ParseEvents(sc)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario events: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", host, scenarioHostPort)
	conn, err := dialScenario(addr, b.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sent []reporting.EventInfo
	it := eventseq.New(events).Start()
	for {
		ev, ok := it.Next()
		if !ok {
			return sent, nil
		}
		kind, err := eventKind(ev.Payload)
		if err != nil {
			return sent, err
		}
		reply, err := conn.send(kind, ev.Payload, false)
		if err != nil {
			sent = append(sent, newEventInfo(ev.Time, kind, ev.Payload, false, err.Error()))
			return sent, err
		}
		sent = append(sent, newEventInfo(ev.Time, kind, ev.Payload, reply.OK, reply.Message))
		if !reply.OK {
			return sent, fmt.Errorf("event %s rejected: %s", kind, reply.Message)
		}
		if kind == "end" {
			return sent, nil
		}
	}
}
