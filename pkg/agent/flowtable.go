// Package agent implements the in-container scenario agent: the
// process launched inside every EMOE container that reports its
// state to the daemon, accepts exactly one scenario driver
// connection, and fans incoming scenario events out to the traffic,
// emulator-event, and jamming sinks. Grounded on
// original_source/emex/scenariostatemanager.py,
// emex/scenarioservermessagehandler.py, emex/trafficmanager.py,
// emex/emaneeventmanager.py, emex/jammingmanager.py.
package agent

import "sync"

// FlowTableEntry is one row of the agent's traffic flow table,
// matching spec's (flow_index, flow_name, active, flow_id, src, dst,
// tos, ttl, proto, pattern, size, rate, jitter) shape, grounded on
// trafficmanager.py's pandas DataFrame columns.
type FlowTableEntry struct {
	FlowIndex int
	FlowName  string
	Active    bool
	FlowID    int
	Src       string
	Dst       string
	Tos       int
	Ttl       int
	Proto     string
	Pattern   string
	Size      int
	Rate      float64
	Jitter    float64
}

// FlowTable tracks every flow the agent has started, indexed by
// insertion order and by synthesized flow id.
type FlowTable struct {
	mu      sync.Mutex
	entries []FlowTableEntry
	byID    map[int]int // flow id -> index into entries
}

// NewFlowTable builds an empty FlowTable.
func NewFlowTable() *FlowTable {
	return &FlowTable{byID: make(map[int]int)}
}

// Add appends entry, assigning it the next FlowIndex.
func (t *FlowTable) Add(entry FlowTableEntry) FlowTableEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry.FlowIndex = len(t.entries)
	t.entries = append(t.entries, entry)
	t.byID[entry.FlowID] = entry.FlowIndex
	return entry
}

// Deactivate marks every entry matching the given predicate as
// inactive (flows are never removed, only retired, mirroring the
// original's append-only DataFrame).
func (t *FlowTable) Deactivate(match func(FlowTableEntry) bool) []FlowTableEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var stopped []FlowTableEntry
	for i := range t.entries {
		if t.entries[i].Active && match(t.entries[i]) {
			t.entries[i].Active = false
			stopped = append(stopped, t.entries[i])
		}
	}
	return stopped
}

// Snapshot returns a copy of every tracked flow, active or not.
func (t *FlowTable) Snapshot() []FlowTableEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FlowTableEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// NextFlowID synthesizes a flow id for the platformIndex'th declared
// platform's perSourceCount'th flow from that source, per spec:
// (plt_num+100)*100 + per-source-count.
func NextFlowID(platformIndex, perSourceCount int) int {
	return (platformIndex+100)*100 + perSourceCount
}

// SourcePort synthesizes a flow's local control port, per spec:
// 5000+per-source-count.
func SourcePort(perSourceCount int) int {
	return 5000 + perSourceCount
}
