// Package arena implements the circular byte-addressed memory shared by all
// agents in a battle: a flat byte buffer, a parallel array of per-cell
// "writer" tags, and a per-tick diff accumulator.
//
// Every address is taken modulo the arena size, so there is no such thing as
// an out-of-bounds access — wraparound is the addressing mode, not an edge
// case to guard against.
package arena

import "fmt"

// MinSize is the smallest arena Arena.New will construct. It is
// deliberately much smaller than the 256-byte floor internal/config
// enforces on caller-supplied configuration: that floor exists to keep
// ordinary battles from degenerating on tiny arenas, not because the
// wraparound addressing scheme itself needs more than a handful of bytes
// to stay well-defined.
const MinSize = 1

// DiffRun is a contiguous run of bytes written by the same agent during the
// current tick. A write only ever extends the most recent run, so two runs
// in the list may still be adjacent.
type DiffRun struct {
	Start  int
	Length int
	Writer string
}

// Arena is a fixed-size byte buffer with modular addressing, a per-byte
// "last writer" tag, and a coalesced diff list for the current tick.
type Arena struct {
	size    int
	bytes   []byte
	writer  []string
	diffs   []DiffRun
	lastRun *DiffRun
}

// New constructs an Arena of the given size. Callers that construct a
// battle from user-supplied Config should clamp size to that package's
// larger floor first; New itself only rejects degenerate, unaddressable
// sizes.
func New(size int) (*Arena, error) {
	if size < MinSize {
		return nil, fmt.Errorf("arena: size %d below minimum %d", size, MinSize)
	}
	return &Arena{
		size:   size,
		bytes:  make([]byte, size),
		writer: make([]string, size),
	}, nil
}

// Size returns the arena's byte count (N).
func (a *Arena) Size() int {
	return a.size
}

// Index reduces an arbitrary 32-bit address to a valid arena offset.
func (a *Arena) Index(addr uint32) int {
	return int(uint64(addr) % uint64(a.size))
}

// ReadByte returns the byte at addr (already reduced via Index).
func (a *Arena) ReadByte(addr int) byte {
	return a.bytes[addr]
}

// WriterAt returns the writer tag of addr, or "" if the cell is unowned.
func (a *Arena) WriterAt(addr int) string {
	return a.writer[addr]
}

// WriteByte stores val at addr on behalf of writer, updates the writer tag,
// and extends or appends a diff run for the current tick.
func (a *Arena) WriteByte(addr int, val byte, writer string) {
	a.bytes[addr] = val
	a.writer[addr] = writer

	if a.lastRun != nil && a.lastRun.Start+a.lastRun.Length == addr && a.lastRun.Writer == writer {
		a.lastRun.Length++
		return
	}
	a.diffs = append(a.diffs, DiffRun{Start: addr, Length: 1, Writer: writer})
	a.lastRun = &a.diffs[len(a.diffs)-1]
}

// ClearDiffs empties the diff accumulator at the start of a new tick.
func (a *Arena) ClearDiffs() {
	a.diffs = a.diffs[:0]
	a.lastRun = nil
}

// Diffs returns the coalesced diff runs produced so far this tick.
func (a *Arena) Diffs() []DiffRun {
	return a.diffs
}

// CountByWriter returns, for every non-empty writer tag currently present in
// the arena, the number of cells it owns. Computed in a single O(N) pass so
// territory accounting for every agent costs one scan per tick, not one per
// agent.
func (a *Arena) CountByWriter() map[string]int {
	counts := make(map[string]int)
	for _, w := range a.writer {
		if w == "" {
			continue
		}
		counts[w]++
	}
	return counts
}

// LoadCode writes code into the arena starting at entry (reduced modulo N),
// wrapping as needed, tagging every written cell with id. It returns the
// agent's (start, end) region, both reduced modulo N.
func (a *Arena) LoadCode(id string, entry int, code []byte) (start, end int, err error) {
	if len(code) == 0 {
		return 0, 0, fmt.Errorf("arena: spawn %q with zero-length code", id)
	}
	if len(code) > a.size {
		return 0, 0, fmt.Errorf("arena: spawn %q with code longer than arena (%d > %d)", id, len(code), a.size)
	}
	start = ((entry % a.size) + a.size) % a.size
	for i, b := range code {
		idx := (start + i) % a.size
		a.bytes[idx] = b
		a.writer[idx] = id
	}
	end = (start + max(1, len(code)) - 1) % a.size
	return start, end, nil
}
