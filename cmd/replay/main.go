package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/persistence/episodes"
	"gridworld.ai/internal/persistence/snapshot"
	"gridworld.ai/internal/sim/physics"
	"gridworld.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (for default paths)")
		snapPath   = flag.String("snapshot", "", "dataset snapshot (default: <data>/dataset.snap.zst)")
		demo       = flag.Bool("demo", false, "episodes were recorded on the built-in staircase session")
		episodeDir = flag.String("episodes", "", "directory of ep_*.jsonl.zst files (default: record.dir)")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: replay [-snapshot path | -demo] [-episodes dir] [episode files...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}
	tune.ApplyEnv(os.Getenv)

	reg, err := loadRegistry(*demo, *snapPath, tune)
	if err != nil {
		logger.Fatalf("load tasks: %v", err)
	}

	files := flag.Args()
	if len(files) == 0 {
		dir := strings.TrimSpace(*episodeDir)
		if dir == "" {
			dir = tune.Record.Dir
		}
		files, err = listEpisodeFiles(dir)
		if err != nil {
			logger.Fatalf("list episodes: %v", err)
		}
	}
	if len(files) == 0 {
		logger.Println("no episode files")
		return
	}

	ok, diverged, failed := 0, 0, 0
	for _, path := range files {
		sum, err := episodes.Verify(path, reg, physics.NewCursorAgent())
		switch {
		case err == nil:
			ok++
			logger.Printf("OK %s %s turn=%d steps=%d return=%.3f", filepath.Base(path), sum.StructureID, sum.Turn, sum.Steps, sum.Return)
		case errors.Is(err, episodes.ErrDiverged):
			diverged++
			logger.Printf("DIVERGED %s: %v", filepath.Base(path), err)
		default:
			failed++
			logger.Printf("ERROR %s: %v", filepath.Base(path), err)
		}
	}
	logger.Printf("verified=%d diverged=%d errors=%d", ok, diverged, failed)
	if diverged > 0 || failed > 0 {
		os.Exit(1)
	}
}

func loadRegistry(demo bool, snapPath string, tune tuning.Tuning) (*registry.Registry, error) {
	if demo {
		return registry.Demo(), nil
	}
	p := strings.TrimSpace(snapPath)
	if p == "" {
		p = filepath.Join(tune.Dataset.DataDir, "dataset.snap.zst")
	}
	return snapshot.LoadRegistry(p)
}

func listEpisodeFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "ep_*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
