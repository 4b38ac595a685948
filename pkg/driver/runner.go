package driver

import (
	"encoding/json"
	"fmt"
	"net"
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

// pollInterval is how often waitForRunning re-issues LIST_EMOES while
// waiting for an emoe to reach RUNNING (BatchRunner's tick uses it
// too), matching wait_for_emoe_running()'s 1s
// cadence in the original.
const pollInterval = 1 * time.Second

// RunnerConfig configures a single-scenario Runner.
type RunnerConfig struct {
	DaemonAddr             string
	EmoeName               string
	Scenario               *scenario.File
	ContainerListenAddress string
	ContainerListenPort    int
	DialTimeout            time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// Runner drives one emoe through its full lifecycle against a single
// daemon: check, start, wait for RUNNING, pump its scenario file's
// events over the agent's scenario port, then stop — the Go analogue
// of the original's ScenarioRunner.run().
type Runner struct {
	cfg RunnerConfig
	c   *client.Client
}

// NewRunner builds a Runner. Dial is deferred to Run so a Runner can
// be constructed (and its cfg validated) before any network activity.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// Run executes the full check/start/wait/pump/stop sequence,
// returning once the scenario's events have all been delivered and
// the emoe has been torn down. It never re-issues StopEmoe if StartEmoe
// or the wait for RUNNING already failed — there is nothing to stop.
// The returned RunReport is populated even on failure (Success=false,
// Errors holding the failure) wherever the run got far enough to say
// something about it.
func (r *Runner) Run() (*reporting.RunReport, error) {
	report := &reporting.RunReport{
		EmoeID:       r.cfg.EmoeName,
		ScenarioName: r.cfg.EmoeName,
		StartTime:    time.Now(),
		Status:       reporting.StatusRunning,
		Platforms:    platformInfos(r.cfg.EmoeName, r.cfg.Scenario.Emoe),
	}
	fail := func(err error) (*reporting.RunReport, error) {
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(report.StartTime).String()
		report.Status = reporting.StatusFailed
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}

	c, err := client.Dial(r.cfg.DaemonAddr)
	if err != nil {
		return fail(err)
	}
	r.c = c
	defer c.Close()

	specBytes, err := json.Marshal(r.cfg.Scenario.Emoe)
	if err != nil {
		return fail(fmt.Errorf("encoding emoe spec: %w", err))
	}

	check, err := c.CheckEmoe(r.cfg.EmoeName, specBytes)
	if err != nil {
		return fail(fmt.Errorf("check_emoe: %w", err))
	}
	if !check.OK {
		return fail(fmt.Errorf("%s does not fit: %s", r.cfg.EmoeName, check.Message))
	}

	start, err := c.StartEmoe(protocol.StartEmoeRequest{
		Name:                   r.cfg.EmoeName,
		Spec:                   specBytes,
		ContainerListenAddress: r.cfg.ContainerListenAddress,
		ContainerListenPort:    r.cfg.ContainerListenPort,
	})
	if err != nil {
		return fail(fmt.Errorf("start_emoe: %w", err))
	}
	if !start.OK {
		return fail(fmt.Errorf("%s start failed: %s", r.cfg.EmoeName, start.Message))
	}
	report.EmoeID = start.EmoeID
	log.Info().Str("emoe_id", start.EmoeID).Str("name", r.cfg.EmoeName).Msg("emoe start requested")

	summary, err := r.waitForRunning(start.EmoeID)
	if err != nil {
		return fail(err)
	}
	stopAfter := func(err error) (*reporting.RunReport, error) {
		if _, stopErr := c.StopEmoe(start.EmoeID); stopErr != nil {
			log.Error().Err(stopErr).Str("name", r.cfg.EmoeName).Msg("stop_emoe after failed run")
		}
		return fail(err)
	}

	if summary.ScenarioHostPort == 0 {
		return stopAfter(fmt.Errorf("%s has no forwarded scenario port", r.cfg.EmoeName))
	}

	events, err := r.runScenario(summary.ScenarioHostPort)
	report.Events = events
	if err != nil {
		return stopAfter(fmt.Errorf("running scenario: %w", err))
	}

	stop, err := c.StopEmoe(start.EmoeID)
	if err != nil {
		return fail(fmt.Errorf("stop_emoe: %w", err))
	}
	if !stop.OK {
		return fail(fmt.Errorf("%s stop failed: %s", r.cfg.EmoeName, stop.Message))
	}
	log.Info().Str("name", r.cfg.EmoeName).Msg("emoe stopped")

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime).String()
	report.Status = reporting.StatusCompleted
	report.Success = true
	return report, nil
}

// waitForRunning polls LIST_EMOES once per pollInterval until emoeID
// reaches RUNNING or a Stopping-or-later state, mirroring
// wait_for_emoe_running()'s "found/running/stopped" loop.
func (r *Runner) waitForRunning(emoeID string) (protocol.EmoeSummary, error) {
	for {
		list, err := r.c.ListEmoes()
		if err != nil {
			return protocol.EmoeSummary{}, fmt.Errorf("list_emoes: %w", err)
		}

		for _, e := range list.Emoes {
			if e.EmoeID != emoeID {
				continue
			}
			state, err := emoe.ParseState(e.State)
			if err != nil {
				return protocol.EmoeSummary{}, err
			}
			if state == emoe.Running {
				return e, nil
			}
			if state >= emoe.Stopping {
				return protocol.EmoeSummary{}, fmt.Errorf("%s failed to start, state %s", r.cfg.EmoeName, e.State)
			}
		}

		time.Sleep(pollInterval)
	}
}

// runScenario connects to the agent's forwarded scenario port and
// pumps this Runner's scenario file's events through it in order,
// matching run_scenario()'s sequencer-driven send loop. It returns
// every event sent so far even when it errors partway through.
func (r *Runner) runScenario(scenarioHostPort int) ([]reporting.EventInfo, error) {
	events, err := parser.ParseEvents(r.cfg.Scenario)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario events: %w", err)
	}

	addr := net.JoinHostPort(r.c.Host(), fmt.Sprintf("%d", scenarioHostPort))
	sc, err := dialScenario(addr, r.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

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
		log.Info().Float64("time", ev.Time).Str("kind", kind).Msg("sending scenario event")

		reply, err := sc.send(kind, ev.Payload, false)
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
