package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

func newTestBatch(numScenarios, numTrials int) *BatchRunner {
	scenarios := make([]NamedScenario, numScenarios)
	for i := range scenarios {
		scenarios[i] = NamedScenario{Name: []string{"alpha", "bravo", "charlie"}[i], File: &scenario.File{}}
	}
	return NewBatchRunner(BatchConfig{Scenarios: scenarios, NumTrials: numTrials})
}

func TestIndexTrialCyclesScenariosThenTrials(t *testing.T) {
	b := newTestBatch(2, 3)

	idx, trial := b.indexTrial()
	assert.Equal(t, 0, idx)
	assert.Equal(t, 0, trial)

	b.index = 4 // scenario 1, trial 1 (0-indexed: 4/3=1, 4%3=1)
	idx, trial = b.indexTrial()
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1, trial)
}

func TestNextEmoeNameSkipsAlreadyStarted(t *testing.T) {
	b := newTestBatch(1, 2)
	b.started["alpha.001"] = true

	name, idx, ok := b.nextEmoeName()
	assert.True(t, ok)
	assert.Equal(t, "alpha.002", name)
	assert.Equal(t, 0, idx)
}

func TestNextEmoeNameExhaustsAtTotalTrials(t *testing.T) {
	b := newTestBatch(1, 1)
	b.started["alpha.001"] = true
	b.index = 1 // bump past the only trial as nextEmoeName would

	_, _, ok := b.nextEmoeName()
	assert.False(t, ok)
}

func TestDoneStartingTrueOnlyAtTotalTrials(t *testing.T) {
	b := newTestBatch(2, 2)
	assert.False(t, b.doneStarting())
	b.index = 4
	assert.True(t, b.doneStarting())
}

func TestScenarioIndexForNameResolvesTrialName(t *testing.T) {
	b := newTestBatch(2, 2)
	assert.Equal(t, 0, b.scenarioIndexForName("alpha.002"))
	assert.Equal(t, 1, b.scenarioIndexForName("bravo.001"))
	assert.Equal(t, -1, b.scenarioIndexForName("nope.001"))
}
