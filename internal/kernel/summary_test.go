package kernel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/libertaine/battle2/internal/config"
)

func TestBuildSummaryComputesTerritoryAveragesAndPercentages(t *testing.T) {
	cfg := config.Config{WinMode: config.WinScoreFallback}
	k, _ := newRawKernel(t, cfg, 1000)
	if err := k.Spawn("A", 0, []byte{0}); err != nil {
		t.Fatalf("spawn A: %v", err)
	}
	k.ticksRun = 4
	k.stats["A"].TerritorySum = 400
	k.stats["A"].TerritoryLast = 150
	k.stats["A"].TerritoryMax = 200
	k.score["A"] = 42

	s := k.buildSummary("A")
	if len(s.Agents) != 1 {
		t.Fatalf("len(Agents) = %d, want 1", len(s.Agents))
	}
	as := s.Agents[0]
	if as.TerritoryAvg != 100 { // 400 / 4
		t.Fatalf("TerritoryAvg = %v, want 100", as.TerritoryAvg)
	}
	if as.TerritoryPctLast != 15 { // 150/1000 * 100
		t.Fatalf("TerritoryPctLast = %v, want 15", as.TerritoryPctLast)
	}
	if as.TerritoryPctMax != 20 { // 200/1000 * 100
		t.Fatalf("TerritoryPctMax = %v, want 20", as.TerritoryPctMax)
	}
	if as.TerritoryPctAvg != 10 { // 100/1000 * 100
		t.Fatalf("TerritoryPctAvg = %v, want 10", as.TerritoryPctAvg)
	}
}

func TestBuildSummaryDividesByAtLeastOneTick(t *testing.T) {
	cfg := config.Config{WinMode: config.WinScoreFallback}
	k, _ := newRawKernel(t, cfg, 256)
	if err := k.Spawn("A", 0, []byte{0}); err != nil {
		t.Fatalf("spawn A: %v", err)
	}
	k.ticksRun = 0 // Run never completed a tick
	k.stats["A"].TerritorySum = 0

	s := k.buildSummary("")
	if s.Agents[0].TerritoryAvg != 0 {
		t.Fatalf("TerritoryAvg = %v, want 0 (sum 0 / divisor clamped to 1)", s.Agents[0].TerritoryAvg)
	}
}

func TestWriteSummaryProducesValidJSON(t *testing.T) {
	cfg := config.DefaultConfig()
	k, _ := newRawKernel(t, cfg, cfg.ArenaSize)
	if err := k.Spawn("A", 0, []byte{0}); err != nil {
		t.Fatalf("spawn A: %v", err)
	}
	k.ticksRun = 1

	path := filepath.Join(t.TempDir(), "summary.json")
	if err := writeSummary(path, k.buildSummary("A")); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("summary.json is not valid JSON: %v", err)
	}
	for _, field := range []string{"winner", "win_mode", "ticks", "arena_size", "config", "score", "agents"} {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("summary.json missing required field %q", field)
		}
	}
}
