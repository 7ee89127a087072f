package replay

import (
	"bufio"
	"encoding/json"
	"io"
)

// Reconciled is the launcher-facing summary spec.md §6 describes: final
// per-agent scores and alive-tick counts, rebuilt purely by scanning a
// replay stream rather than trusting any in-memory kernel state.
type Reconciled struct {
	Score      map[string]int
	AliveTicks map[string]int
}

// reconcileLine is the subset of a tick record Reconcile needs; it
// intentionally ignores memory_diffs/events, which the reconciliation
// helper has no use for.
type reconcileLine struct {
	Tick   int `json:"tick"`
	Agents []struct {
		ID    string `json:"id"`
		Alive bool   `json:"alive"`
	} `json:"agents"`
	Score map[string]int `json:"score"`
}

// Reconcile scans r line by line and rebuilds the final score map and
// alive-tick counts: the last observed score for each id wins, and an
// agent's alive-tick count is the number of distinct ticks in which it was
// reported alive.
func Reconcile(r io.Reader) (*Reconciled, error) {
	out := &Reconciled{
		Score:      make(map[string]int),
		AliveTicks: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	// Replay lines can exceed bufio.Scanner's 64KiB default for arenas with
	// many agents; grow the buffer generously.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	type idTick struct {
		id   string
		tick int
	}
	seen := make(map[idTick]bool)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec reconcileLine
		if err := json.Unmarshal(line, &rec); err != nil {
			// The header record has no "agents"/"score" fields that matter
			// here; a decode error on a malformed line is not fatal to
			// reconciliation of everything that came before it.
			continue
		}
		for id, score := range rec.Score {
			out.Score[id] = score
		}
		for _, a := range rec.Agents {
			key := idTick{a.ID, rec.Tick}
			if a.Alive && !seen[key] {
				seen[key] = true
				out.AliveTicks[a.ID]++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
