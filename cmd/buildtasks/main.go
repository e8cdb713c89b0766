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

	"gridworld.ai/internal/dataset/ingest"
	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/persistence/archive"
	"gridworld.ai/internal/persistence/indexdb"
	"gridworld.ai/internal/persistence/snapshot"
	"gridworld.ai/internal/sim/tasks"
	"gridworld.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		rawDir     = flag.String("raw", "", "raw dataset directory (default: dataset.raw_dir)")
		outPath    = flag.String("out", "", "dataset snapshot path (default: <data>/dataset.snap.zst)")
		dbPath     = flag.String("db", "", "sqlite index path (default: <data>/index.sqlite)")
		disableDB  = flag.Bool("disable_db", false, "skip the sqlite index")
		verbose    = flag.Bool("v", false, "log every skipped session")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[buildtasks] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	tune.ApplyEnv(os.Getenv)
	if v := strings.TrimSpace(*rawDir); v != "" {
		tune.Dataset.RawDir = v
	}

	cfg, err := registry.ConfigFromTuning(tune.Dataset)
	if err != nil {
		logger.Fatalf("dataset config: %v", err)
	}
	var buildLog *log.Logger
	if *verbose {
		buildLog = logger
	}
	reg, rep, err := registry.Build(cfg, buildLog)
	if err != nil {
		logger.Fatalf("build: %v", err)
	}
	logger.Printf("sessions=%d added=%d failed=%d no_builder_data=%d empty=%d",
		rep.Sessions, len(rep.Added), len(rep.Failed), rep.NoBuilderData, rep.Empty)
	logger.Printf("structures=%d sessions=%d subtasks=%d",
		reg.NumStructures(), reg.NumSessions(), reg.TotalSubtaskCount())
	for _, line := range failureReasons(rep.Failed) {
		logger.Printf("failed: %s", line)
	}
	if reg.NumStructures() == 0 {
		logger.Fatalf("no usable sessions under %s", cfg.RawDir)
	}

	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = filepath.Join(tune.Dataset.DataDir, "dataset.snap.zst")
	}
	snap := snapshot.FromRegistry(reg, tune.Dataset.GroundLevel, tune.Dataset.FixSnapshotCoords)
	if prev, archived, err := archive.ArchiveDataset(filepath.Dir(out), out, snap.Header.Digest); err != nil {
		logger.Printf("archive previous snapshot: %v", err)
	} else if archived {
		logger.Printf("archived previous snapshot to %s", prev)
	}
	if err := snapshot.WriteDataset(out, snap); err != nil {
		logger.Fatalf("write snapshot: %v", err)
	}
	logger.Printf("snapshot %s digest=%s", out, snap.Header.Digest)

	if *disableDB {
		return
	}
	db := strings.TrimSpace(*dbPath)
	if db == "" {
		db = filepath.Join(tune.Dataset.DataDir, "index.sqlite")
	}
	idx, err := indexdb.OpenSQLite(db)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	if _, err := idx.UpsertTuning(tune); err != nil {
		logger.Printf("index tuning: %v", err)
	}
	if err := idx.ReplaceDataset(reg, rep); err != nil {
		logger.Printf("index dataset: %v", err)
	}
	idx.RecordSnapshot(out, snap.Header)
}

// failureReasons buckets failures by their sentinel cause, sorted by reason.
func failureReasons(failed []registry.SessionError) []string {
	known := []error{
		ingest.ErrBadRow,
		ingest.ErrBadSnapshot,
		ingest.ErrStructureMismatch,
		tasks.ErrMisaligned,
	}
	counts := map[string]int{}
	for _, f := range failed {
		reason := "other"
		for _, k := range known {
			if errors.Is(f, k) {
				reason = k.Error()
				break
			}
		}
		counts[reason]++
	}
	out := make([]string, 0, len(counts))
	for reason, n := range counts {
		out = append(out, fmt.Sprintf("%s x%d", reason, n))
	}
	sort.Strings(out)
	return out
}
