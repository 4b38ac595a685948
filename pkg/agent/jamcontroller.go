package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

// JamController starts and stops jamming for a jam_on/jam_off event.
// It is the spec's opaque jammer collaborator; defaultJamController
// spawns a jammer-control subprocess per jammer, grounded on
// jammingmanager.py's per-NEM external jammer process.
type JamController interface {
	JamOn(ev scenario.JamOnEvent, nemID int) error
	JamOff(ev scenario.JamOffEvent, nemID int) error
}

type defaultJamController struct {
	binary string

	mu      sync.Mutex
	running map[int]*exec.Cmd
}

// NewDefaultJamController builds a controller that spawns binary
// (default "jammer-control") per jamming NEM.
func NewDefaultJamController(binary string) JamController {
	if binary == "" {
		binary = "jammer-control"
	}
	return &defaultJamController{binary: binary, running: make(map[int]*exec.Cmd)}
}

func (c *defaultJamController) JamOn(ev scenario.JamOnEvent, nemID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.running[nemID]; ok {
		_ = existing.Process.Kill()
		delete(c.running, nemID)
	}

	freqs := make([]string, len(ev.Frequencies))
	for i, f := range ev.Frequencies {
		freqs[i] = strconv.Itoa(f)
	}

	args := []string{
		"--nem", strconv.Itoa(nemID),
		"--txpower", fmt.Sprintf("%g", ev.TxPower),
		"--bandwidth", strconv.Itoa(ev.Bandwidth),
		"--period", strconv.Itoa(ev.Period),
		"--duty-cycle", strconv.Itoa(ev.DutyCycle),
		"--frequencies", strings.Join(freqs, ","),
	}
	cmd := exec.CommandContext(context.Background(), c.binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s for nem %d: %w", c.binary, nemID, err)
	}
	c.running[nemID] = cmd
	log.Info().Int("nem", nemID).Msg("jammer started")
	return nil
}

func (c *defaultJamController) JamOff(ev scenario.JamOffEvent, nemID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok := c.running[nemID]
	if !ok {
		return nil
	}
	delete(c.running, nemID)
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("stopping jammer for nem %d: %w", nemID, err)
	}
	log.Info().Int("nem", nemID).Msg("jammer stopped")
	return nil
}
