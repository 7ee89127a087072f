// Package kernel implements the per-tick scheduler: it drives every alive
// agent through the VM under a fixed instruction quota, then performs
// scoring, kill attribution, territory accounting, replay emission, and
// finally termination/winner resolution.
//
// Kernel is one-shot: construct with New, Spawn every agent, call Run
// exactly once, and the sink is closed for you when Run returns.
package kernel

import (
	"fmt"
	"math/rand"

	"github.com/golang/glog"

	"github.com/libertaine/battle2/internal/agent"
	"github.com/libertaine/battle2/internal/arena"
	"github.com/libertaine/battle2/internal/config"
	"github.com/libertaine/battle2/internal/replay"
	"github.com/libertaine/battle2/internal/vm"
)

// Stats accumulates the running per-agent counters used to build the final
// summary. Scores live separately, in Kernel.score, since they are the
// thing weights.* directly mutate every tick.
type Stats struct {
	AliveTicks     int
	TotalCPU       int
	TotalMemWrites int
	Kills          int
	Deaths         int
	TerritoryLast  int
	TerritoryMax   int
	TerritorySum   int
}

// Kernel owns the arena, the agent roster, and the scoring/stats tables for
// one battle.
type Kernel struct {
	cfg   config.Config
	arena *arena.Arena

	agents    []*agent.Agent
	score     map[string]int
	stats     map[string]*Stats
	alivePrev map[string]bool

	sink *replay.Sink

	// rng is seeded at construction per spec.md §4.2 but never consulted
	// during stepping; held only for forward compatibility with future
	// stochastic tie-breaking, per spec.md §9.
	rng *rand.Rand

	// SummaryPath is where Run writes the end-of-battle summary. Defaults
	// to "summary.json"; callers that want it alongside a replay file in
	// a specific directory should set this before calling Run.
	SummaryPath string

	tick      int
	ticksRun  int
	headerOut bool
}

// New constructs a Kernel. cfg is normalized internally; the caller does
// not need to call cfg.Normalize() first.
func New(cfg config.Config, sink *replay.Sink) (*Kernel, error) {
	cfg = cfg.Normalize()

	a, err := arena.New(cfg.ArenaSize)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:         cfg,
		arena:       a,
		score:       make(map[string]int),
		stats:       make(map[string]*Stats),
		alivePrev:   make(map[string]bool),
		sink:        sink,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		SummaryPath: "summary.json",
	}
	return k, nil
}

// Spawn loads code into the arena at entry and creates a new agent with the
// given id. Ids must be unique across a Kernel's lifetime; code must be
// non-empty and no longer than the arena.
func (k *Kernel) Spawn(id string, entry int, code []byte) error {
	if _, exists := k.stats[id]; exists {
		return fmt.Errorf("kernel: duplicate agent id %q", id)
	}
	start, end, err := k.arena.LoadCode(id, entry, code)
	if err != nil {
		return err
	}
	a := agent.New(id, start, [2]int{start, end})
	k.agents = append(k.agents, a)
	k.score[id] = 0
	k.stats[id] = &Stats{}
	k.alivePrev[id] = true
	return nil
}

// Run executes ticks until at most one agent remains alive or maxTicks is
// reached, then resolves a winner, writes summary.json alongside the
// replay, closes the sink, and returns the winner id (possibly empty).
func (k *Kernel) Run(maxTicks int) (string, error) {
	if !k.headerOut {
		if err := k.sink.WriteHeader(&replay.Header{Ver: replay.Ver, Config: k.cfg}); err != nil {
			_ = k.sink.Close()
			return "", err
		}
		k.headerOut = true
	}

	for t := 1; t <= maxTicks; t++ {
		k.tick = t
		k.arena.ClearDiffs()

		for _, a := range k.agents {
			if !a.Alive {
				continue
			}
			a.CPUUsed = 0
			for i := 0; i < k.cfg.InstrPerTick; i++ {
				if !a.Alive {
					break
				}
				vm.Step(a, k.arena)
				a.CPUUsed++
			}
			k.stats[a.ID].TotalCPU += a.CPUUsed
			k.stats[a.ID].TotalMemWrites = a.MemWrites
		}

		events := k.postStepAccounting()

		rec := k.buildTickRecord(events)
		if err := k.sink.AppendTick(rec); err != nil {
			_ = k.sink.Close()
			return "", err
		}

		for _, a := range k.agents {
			k.alivePrev[a.ID] = a.Alive
		}

		k.ticksRun = t
		if k.countAlive() <= 1 {
			break
		}
	}

	winner := k.resolveWinner()

	summaryPath := k.SummaryPath
	if summaryPath == "" {
		summaryPath = "summary.json"
	}
	if err := writeSummary(summaryPath, k.buildSummary(winner)); err != nil {
		glog.Errorf("kernel: summary write failed (non-fatal, replay is authoritative): %v", err)
	}

	if err := k.sink.Close(); err != nil {
		glog.Warningf("kernel: sink close: %v", err)
	}

	return winner, nil
}

// postStepAccounting applies the alive bonus, territory counting/bonus, and
// kill/death attribution for the tick that just ran, returning the events
// to embed in this tick's replay record.
func (k *Kernel) postStepAccounting() []replay.Event {
	for _, a := range k.agents {
		if a.Alive {
			k.stats[a.ID].AliveTicks++
			k.score[a.ID] += k.cfg.Weights.Alive
		}
	}

	counts := k.arena.CountByWriter()
	bucket := k.cfg.Weights.TerritoryBucket
	if bucket < 1 {
		bucket = 1
	}
	for _, a := range k.agents {
		cells := counts[a.ID]
		st := k.stats[a.ID]
		st.TerritoryLast = cells
		st.TerritorySum += cells
		if cells > st.TerritoryMax {
			st.TerritoryMax = cells
		}
		if k.cfg.Weights.Territory > 0 {
			k.score[a.ID] += (cells / bucket) * k.cfg.Weights.Territory
		}
	}

	var events []replay.Event
	for _, a := range k.agents {
		if !k.alivePrev[a.ID] || a.Alive {
			continue
		}
		killerTag := k.arena.WriterAt(k.arena.Index(a.PC))
		if killerTag != "" && killerTag != a.ID {
			k.score[killerTag] += k.cfg.Weights.Kill
			k.stats[killerTag].Kills++
			k.stats[a.ID].Deaths++
			events = append(events, replay.Event{Type: "kill", Victim: a.ID, By: killerTag})
			glog.V(1).Infof("kernel: tick %d: %s killed by %s", k.tick, a.ID, killerTag)
		} else {
			k.stats[a.ID].Deaths++
			events = append(events, replay.Event{Type: "death", Victim: a.ID})
			glog.V(1).Infof("kernel: tick %d: %s died (self)", k.tick, a.ID)
		}
	}
	return events
}

func (k *Kernel) buildTickRecord(events []replay.Event) *replay.TickRecord {
	views := make([]replay.AgentView, len(k.agents))
	for i, a := range k.agents {
		views[i] = replay.AgentView{
			ID:        a.ID,
			PC:        a.PC,
			Alive:     a.Alive,
			CPUUsed:   a.CPUUsed,
			MemWrites: a.MemWrites,
			Region:    a.Region,
		}
	}

	scoreCopy := make(map[string]int, len(k.score))
	for id, s := range k.score {
		scoreCopy[id] = s
	}

	diffs := k.arena.Diffs()
	mds := make([]replay.MemoryDiff, len(diffs))
	for i, d := range diffs {
		mds[i] = replay.MemoryDiff{Addr: d.Start, Len: d.Length, Owner: d.Writer}
	}

	return &replay.TickRecord{
		Tick:        k.tick,
		Agents:      views,
		Score:       scoreCopy,
		Events:      events,
		MemoryDiffs: mds,
	}
}

func (k *Kernel) countAlive() int {
	n := 0
	for _, a := range k.agents {
		if a.Alive {
			n++
		}
	}
	return n
}
