// Command battlevm runs a single battle to completion: it loads a config
// file and one code blob per agent, drives the kernel for up to max-ticks
// ticks, and writes replay.jsonl and summary.json into the output
// directory.
//
// It is deliberately not the launcher: it does not discover agents from a
// directory, does not run tournaments, and does not pick renderers. Those
// remain the job of external tooling that consumes this command's output.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/libertaine/battle2/internal/config"
	"github.com/libertaine/battle2/internal/kernel"
	"github.com/libertaine/battle2/internal/replay"
)

// agentFlag collects repeated -agent id=entry:path flags into a slice.
type agentFlag struct {
	ID    string
	Entry int
	Path  string
}

type agentFlags []agentFlag

func (f *agentFlags) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(*f))
	for i, a := range *f {
		parts[i] = fmt.Sprintf("%s=%d:%s", a.ID, a.Entry, a.Path)
	}
	return strings.Join(parts, ",")
}

func (f *agentFlags) Set(value string) error {
	idRest := strings.SplitN(value, "=", 2)
	if len(idRest) != 2 {
		return fmt.Errorf("battlevm: -agent must be id=entry:path, got %q", value)
	}
	entryPath := strings.SplitN(idRest[1], ":", 2)
	if len(entryPath) != 2 {
		return fmt.Errorf("battlevm: -agent must be id=entry:path, got %q", value)
	}
	entry, err := strconv.Atoi(entryPath[0])
	if err != nil {
		return fmt.Errorf("battlevm: -agent entry must be an integer: %w", err)
	}
	*f = append(*f, agentFlag{ID: idRest[0], Entry: entry, Path: entryPath[1]})
	return nil
}

func main() {
	var agents agentFlags
	configPath := flag.String("config", "", "path to a JSON config file (optional; defaults applied for missing fields)")
	outDir := flag.String("out", ".", "directory to write replay.jsonl and summary.json into")
	maxTicks := flag.Int("max-ticks", 1000, "maximum ticks to run before forcing termination")
	flag.Var(&agents, "agent", "id=entry:path, repeatable (2-3 agents)")
	flag.Parse()

	if len(agents) < 2 || len(agents) > 3 {
		glog.Exitf("battlevm: need 2-3 -agent flags, got %d", len(agents))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Exitf("battlevm: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		glog.Exitf("battlevm: creating output dir: %v", err)
	}

	replayFile, err := os.Create(filepath.Join(*outDir, "replay.jsonl"))
	if err != nil {
		glog.Exitf("battlevm: creating replay file: %v", err)
	}
	sink := replay.NewSink(replayFile)

	k, err := kernel.New(cfg, sink)
	if err != nil {
		glog.Exitf("battlevm: constructing kernel: %v", err)
	}
	k.SummaryPath = filepath.Join(*outDir, "summary.json")

	for _, a := range agents {
		code, err := os.ReadFile(a.Path)
		if err != nil {
			glog.Exitf("battlevm: reading code for %s: %v", a.ID, err)
		}
		if err := k.Spawn(a.ID, a.Entry, code); err != nil {
			glog.Exitf("battlevm: spawning %s: %v", a.ID, err)
		}
	}

	winner, err := k.Run(*maxTicks)
	if err != nil {
		glog.Exitf("battlevm: run failed: %v", err)
	}

	if winner == "" {
		fmt.Println("no winner")
	} else {
		fmt.Printf("winner: %s\n", winner)
	}
}

// loadConfig reads a JSON config file if path is non-empty, overlaying it
// onto config.DefaultConfig(); missing fields keep their default. An empty
// path returns the defaults untouched.
func loadConfig(path string) (config.Config, error) {
	cfg := config.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
