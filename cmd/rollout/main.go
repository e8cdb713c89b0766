package main

import (
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/persistence/episodes"
	"gridworld.ai/internal/persistence/indexdb"
	"gridworld.ai/internal/persistence/snapshot"
	"gridworld.ai/internal/sim/env"
	"gridworld.ai/internal/sim/physics"
	"gridworld.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		snapPath   = flag.String("snapshot", "", "dataset snapshot (default: <data>/dataset.snap.zst)")
		demo       = flag.Bool("demo", false, "train on the built-in staircase session instead of a snapshot")
		n          = flag.Int("episodes", 10, "number of episodes")
		seed       = flag.Int64("seed", 0, "rng seed (default: env.seed from tuning)")
		turn       = flag.Int("turn", -1, "pin every episode to this turn (-1 samples)")
		full       = flag.Bool("full", false, "target the session's final structure")
		record     = flag.Bool("record", false, "record episodes (also enabled by record.enabled)")
		dbPath     = flag.String("db", "", "sqlite index path (default: <data>/index.sqlite)")
		disableDB  = flag.Bool("disable_db", false, "do not index recorded episodes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[rollout] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	tune.ApplyEnv(os.Getenv)

	reg, err := loadRegistry(*demo, *snapPath, tune)
	if err != nil {
		logger.Fatalf("load tasks: %v", err)
	}
	logger.Printf("structures=%d sessions=%d subtasks=%d", reg.NumStructures(), reg.NumSessions(), reg.TotalSubtaskCount())

	var opts []env.Option
	if *record || tune.Record.Enabled {
		recOpts := []episodes.Option{episodes.WithLogger(logger)}
		if !*disableDB {
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
			recOpts = append(recOpts, episodes.WithIndexer(idx))
		}
		opts = append(opts, env.WithRecorder(episodes.NewRecorder(tune.Record.Dir, tune.Env, recOpts...)))
	}

	s := *seed
	if s == 0 {
		s = tune.Env.Seed
	}
	rng := rand.New(rand.NewSource(s))
	policy := rand.New(rand.NewSource(s + 1))

	e, err := env.New(env.ConfigFromTuning(tune.Env), reg, physics.NewCursorAgent(), rng, opts...)
	if err != nil {
		logger.Fatalf("env: %v", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}()
	if *turn >= 0 {
		e.SetTask(*turn, *full)
	}

	var completed int
	var sum float64
	for i := 0; i < *n; i++ {
		if _, err := e.Reset(); err != nil {
			logger.Printf("episode %d: reset: %v", i, err)
			continue
		}
		ret, last, err := runEpisode(e, policy)
		info := e.Episode()
		if err != nil {
			logger.Printf("episode %d: %s/%s turn=%d aborted after %d steps: %v",
				i, info.Ref.StructureID, info.Ref.SessionID, info.Turn, e.StepNo(), err)
			continue
		}
		if last.Score.Complete {
			completed++
		}
		sum += ret
		logger.Printf("episode %d: %s/%s turn=%d steps=%d return=%.3f best=%d/%d",
			i, info.Ref.StructureID, info.Ref.SessionID, info.Turn, last.Step, ret,
			last.Score.BestIntersection, info.TargetSize)
	}
	if *n > 0 {
		logger.Printf("done: episodes=%d completed=%d mean_return=%.3f", *n, completed, sum/float64(*n))
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

// runEpisode drives one episode with uniformly random discrete actions.
// Rejected actions do not consume a step and are skipped.
func runEpisode(e *env.Env, policy *rand.Rand) (float64, env.StepResult, error) {
	var (
		ret  float64
		last env.StepResult
	)
	for {
		r, err := e.Step(env.Discrete(policy.Intn(e.NumActions())))
		if err != nil {
			if errors.Is(err, env.ErrBadAction) {
				continue
			}
			return ret, last, err
		}
		ret += r.Reward
		last = r
		if r.Done {
			return ret, last, nil
		}
	}
}
