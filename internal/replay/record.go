// Package replay implements the append-only, newline-delimited replay
// stream: one JSON object per line, flushed and handed off atomically, plus
// the launcher-facing reconciliation helper that rebuilds final scores and
// alive-tick counts by scanning a replay file back.
package replay

import "github.com/libertaine/battle2/internal/config"

// Ver is the replay format version emitted in the header record.
const Ver = 6

// AgentView is the per-agent slice of a tick record.
type AgentView struct {
	ID        string
	PC        uint32
	Alive     bool
	CPUUsed   int
	MemWrites int
	Region    [2]int
}

// Event is a kill or death notification for a single tick.
type Event struct {
	Type   string // "kill" or "death"
	Victim string
	By     string // empty for "death" events
}

// MemoryDiff is one coalesced write run from the arena's diff accumulator.
type MemoryDiff struct {
	Addr  int
	Len   int
	Owner string
}

// Header is the first record written to a replay stream.
type Header struct {
	Ver    int
	Config config.Config
}

// TickRecord is emitted once per tick, after agent stepping and scoring.
type TickRecord struct {
	Tick        int
	Agents      []AgentView
	Score       map[string]int
	Events      []Event
	MemoryDiffs []MemoryDiff
}
