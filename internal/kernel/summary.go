package kernel

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/libertaine/battle2/internal/config"
)

// AgentSummary is one entry of summary.json's agents list.
type AgentSummary struct {
	ID               string  `json:"id"`
	Alive            bool    `json:"alive"`
	Score            int     `json:"score"`
	AliveTicks       int     `json:"alive_ticks"`
	Kills            int     `json:"kills"`
	Deaths           int     `json:"deaths"`
	CPUTotal         int     `json:"cpu_total"`
	MemWrites        int     `json:"mem_writes"`
	TerritoryLast    int     `json:"territory_last"`
	TerritoryMax     int     `json:"territory_max"`
	TerritoryAvg     float64 `json:"territory_avg"`
	TerritoryPctLast float64 `json:"territory_pct_last"`
	TerritoryPctMax  float64 `json:"territory_pct_max"`
	TerritoryPctAvg  float64 `json:"territory_pct_avg"`
}

// Summary is the full contents of summary.json.
type Summary struct {
	Winner    string         `json:"winner"`
	WinMode   config.WinMode `json:"win_mode"`
	Ticks     int            `json:"ticks"`
	ArenaSize int            `json:"arena_size"`
	Config    config.Config  `json:"config"`
	Score     map[string]int `json:"score"`
	Agents    []AgentSummary `json:"agents"`
}

// resolveWinner implements the §4.5 winner rule: a sole survivor always
// wins outright; otherwise win_mode decides, with survival mode never
// naming a winner and score/score_fallback requiring a uniquely highest
// scorer.
func (k *Kernel) resolveWinner() string {
	alive := k.aliveIDs()
	if len(alive) == 1 {
		return alive[0]
	}

	switch k.cfg.WinMode {
	case config.WinSurvival:
		return ""
	default: // WinScore, WinScoreFallback
		return k.uniqueHighestScorer()
	}
}

func (k *Kernel) aliveIDs() []string {
	var ids []string
	for _, a := range k.agents {
		if a.Alive {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// uniqueHighestScorer returns the id with the strictly highest score, or ""
// if the top score is tied across two or more agents.
func (k *Kernel) uniqueHighestScorer() string {
	ids := k.sortedByScoreDesc()
	if len(ids) == 0 {
		return ""
	}
	if len(ids) == 1 {
		return ids[0]
	}
	if k.score[ids[0]] == k.score[ids[1]] {
		return ""
	}
	return ids[0]
}

// sortedByScoreDesc returns agent ids ordered by (-score, id ascending),
// the same ordering summary.json's agents list uses.
func (k *Kernel) sortedByScoreDesc() []string {
	ids := make([]string, len(k.agents))
	for i, a := range k.agents {
		ids[i] = a.ID
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := k.score[ids[i]], k.score[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// buildSummary assembles the final Summary object. ticksRun is clamped to a
// minimum of 1 before dividing territory sums, per §6.
func (k *Kernel) buildSummary(winner string) *Summary {
	divisor := k.ticksRun
	if divisor < 1 {
		divisor = 1
	}
	arenaSize := float64(k.arena.Size())

	scoreCopy := make(map[string]int, len(k.score))
	for id, s := range k.score {
		scoreCopy[id] = s
	}

	ids := k.sortedByScoreDesc()
	aliveByID := make(map[string]bool, len(k.agents))
	for _, a := range k.agents {
		aliveByID[a.ID] = a.Alive
	}

	summaries := make([]AgentSummary, 0, len(ids))
	for _, id := range ids {
		st := k.stats[id]
		avg := float64(st.TerritorySum) / float64(divisor)
		summaries = append(summaries, AgentSummary{
			ID:               id,
			Alive:            aliveByID[id],
			Score:            k.score[id],
			AliveTicks:       st.AliveTicks,
			Kills:            st.Kills,
			Deaths:           st.Deaths,
			CPUTotal:         st.TotalCPU,
			MemWrites:        st.TotalMemWrites,
			TerritoryLast:    st.TerritoryLast,
			TerritoryMax:     st.TerritoryMax,
			TerritoryAvg:     avg,
			TerritoryPctLast: pct(float64(st.TerritoryLast), arenaSize),
			TerritoryPctMax:  pct(float64(st.TerritoryMax), arenaSize),
			TerritoryPctAvg:  pct(avg, arenaSize),
		})
	}

	return &Summary{
		Winner:    winner,
		WinMode:   k.cfg.WinMode,
		Ticks:     k.ticksRun,
		ArenaSize: k.arena.Size(),
		Config:    k.cfg,
		Score:     scoreCopy,
		Agents:    summaries,
	}
}

func pct(n, total float64) float64 {
	if total == 0 {
		return 0
	}
	return n / total * 100
}

// writeSummary marshals s and writes it to path. Per spec.md §7 point 4, a
// failure here is not fatal to the run — the replay file remains the
// authoritative record — so callers are expected to log rather than abort
// on a non-nil error.
func writeSummary(path string, s *Summary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
