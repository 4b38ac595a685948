package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextFlowIDFormula(t *testing.T) {
	assert.Equal(t, 10003, NextFlowID(0, 3))
	assert.Equal(t, 10100, NextFlowID(1, 0))
}

func TestSourcePortFormula(t *testing.T) {
	assert.Equal(t, 5000, SourcePort(0))
	assert.Equal(t, 5007, SourcePort(7))
}

func TestFlowTableAddAssignsIndexAndDeactivateFiltersByActive(t *testing.T) {
	table := NewFlowTable()
	table.Add(FlowTableEntry{FlowName: "a", Active: true, FlowID: 1})
	table.Add(FlowTableEntry{FlowName: "b", Active: true, FlowID: 2})

	stopped := table.Deactivate(func(e FlowTableEntry) bool { return e.FlowName == "a" })
	assert.Len(t, stopped, 1)
	assert.Equal(t, 1, stopped[0].FlowID)

	snap := table.Snapshot()
	assert.Len(t, snap, 2)
	assert.False(t, snap[0].Active)
	assert.True(t, snap[1].Active)

	again := table.Deactivate(func(e FlowTableEntry) bool { return e.FlowName == "a" })
	assert.Empty(t, again)
}
