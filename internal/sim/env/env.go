package env

import (
	"errors"
	"fmt"
	"math/rand"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/scoring"
	"gridworld.ai/internal/sim/tasks"
	"gridworld.ai/internal/sim/tuning"
)

var (
	ErrNotReset       = errors.New("no running episode; call Reset")
	ErrEpisodeDone    = errors.New("episode finished; call Reset")
	ErrEpisodeAborted = errors.New("episode aborted")
)

type Config struct {
	MaxSteps          int
	Scales            scoring.Scales
	SelectAndPlace    bool
	Discretize        bool
	SizeReward        bool
	SizeRewardPenalty float64
	ActionMap         []int
	Spawn             Pose
	InventoryPerColor int
	FullTarget        bool
}

func ConfigFromTuning(t tuning.Env) Config {
	cfg := Config{
		MaxSteps:          t.MaxSteps,
		Scales:            scoring.Scales{Right: t.RightPlacementScale, Wrong: t.WrongPlacementScale},
		SelectAndPlace:    t.SelectAndPlace,
		Discretize:        t.Discretize,
		SizeReward:        t.SizeReward,
		SizeRewardPenalty: t.SizeRewardWrongPenalty,
		ActionMap:         append([]int(nil), t.ActionMap...),
		InventoryPerColor: t.InventoryPerColor,
		FullTarget:        t.FullTarget,
	}
	if len(t.Spawn) == 3 {
		cfg.Spawn = Pose{X: t.Spawn[0], Y: t.Spawn[1], Z: t.Spawn[2]}
	}
	return cfg
}

func DefaultConfig() Config { return ConfigFromTuning(tuning.Defaults().Env) }

// Source supplies session sequences at reset. *registry.Registry is one.
type Source interface {
	Sample(rng *rand.Rand) (registry.Ref, *tasks.Subtasks, error)
}

// Fixed is a Source that always yields the same session.
type Fixed struct {
	Ref   registry.Ref
	Tasks *tasks.Subtasks
}

func (f Fixed) Sample(*rand.Rand) (registry.Ref, *tasks.Subtasks, error) {
	if f.Tasks == nil {
		return f.Ref, nil, registry.ErrEmpty
	}
	return f.Ref, f.Tasks, nil
}

// EpisodeInfo identifies the task an episode trains on.
type EpisodeInfo struct {
	Ref          registry.Ref
	Turn         int
	Full         bool
	Discretize   bool
	StartDigest  string
	TargetDigest string
	TargetSize   int
}

// Recorder receives every step of every episode. RecordStep must not block
// on I/O; EndEpisode runs at reset boundaries and on Close.
type Recorder interface {
	BeginEpisode(info EpisodeInfo)
	RecordStep(r StepResult)
	EndEpisode() error
}

type Option func(*Env)

func WithRecorder(r Recorder) Option { return func(e *Env) { e.rec = r } }

// Env runs one single-agent build episode at a time.
type Env struct {
	cfg     Config
	src     Source
	agent   Agent
	rng     *rand.Rand
	actions ActionMap
	rec     Recorder
	stages  []Stage

	grid    *grid.Grid
	tracker *scoring.Tracker
	sel     tasks.Selector
	info    EpisodeInfo
	task    *tasks.Subtask
	stepNo  int
	started bool
	done    bool
	aborted error
}

func New(cfg Config, src Source, agent Agent, rng *rand.Rand, opts ...Option) (*Env, error) {
	if src == nil || agent == nil || rng == nil {
		return nil, errors.New("env: source, agent and rng are required")
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("env: max steps must be > 0, got %d", cfg.MaxSteps)
	}
	am, err := NewActionMap(cfg.ActionMap)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	e := &Env{
		cfg:     cfg,
		src:     src,
		agent:   agent,
		rng:     rng,
		actions: am,
		grid:    grid.New(),
		sel:     tasks.Selector{Full: cfg.FullTarget},
	}
	for _, o := range opts {
		o(e)
	}
	e.stages = e.buildStages()
	return e, nil
}

// Stages lists pipeline stage names in execution order.
func (e *Env) Stages() []string {
	out := make([]string, len(e.stages))
	for i, s := range e.stages {
		out[i] = s.Name
	}
	return out
}

// NumActions is the size of the action space exposed to the agent.
func (e *Env) NumActions() int { return e.actions.Size() }

// SetTask pins the turn later resets train on. full targets the session's
// final structure.
func (e *Env) SetTask(turn int, full bool) {
	e.sel = tasks.Selector{Pinned: true, Next: turn, Full: full}
}

// Unpin returns to uniform turn sampling.
func (e *Env) Unpin() { e.sel = tasks.Selector{Full: e.cfg.FullTarget} }

func (e *Env) Episode() EpisodeInfo { return e.info }
func (e *Env) Task() *tasks.Subtask { return e.task }
func (e *Env) StepNo() int          { return e.stepNo }
func (e *Env) Grid() *grid.Grid     { return e.grid }
func (e *Env) Observe() Observation { return e.observe() }

// Reset ends the current episode, samples a new task and replays its
// starting grid.
func (e *Env) Reset() (Observation, error) {
	flushErr := e.endEpisode()
	e.started = false
	if flushErr != nil {
		return e.observe(), fmt.Errorf("flush episode: %w", flushErr)
	}
	ref, seq, err := e.src.Sample(e.rng)
	if err != nil {
		return e.observe(), fmt.Errorf("sample task: %w", err)
	}
	st, err := e.sel.Pick(seq, e.rng)
	if err != nil {
		return e.observe(), fmt.Errorf("pick turn: %w", err)
	}
	if err := e.grid.Reset(st.StartingGrid); err != nil {
		return e.observe(), err
	}
	start := e.grid.Cells()
	target := scoring.NewTarget(st.TargetGrid)
	if e.tracker == nil {
		e.tracker = scoring.NewTracker(target, start)
	} else {
		e.tracker.Reset(target, start)
	}
	e.agent.Reset(e.cfg.Spawn, st.StartingInventory(e.cfg.InventoryPerColor))

	e.task = st
	e.stepNo = 0
	e.done = false
	e.aborted = nil
	e.started = true
	e.info = EpisodeInfo{
		Ref:          ref,
		Turn:         st.Turn,
		Full:         e.sel.Full,
		Discretize:   e.cfg.Discretize,
		StartDigest:  start.Digest(),
		TargetDigest: st.TargetGrid.Digest(),
		TargetSize:   target.Size,
	}
	if e.rec != nil {
		e.rec.BeginEpisode(e.info)
	}
	return e.observe(), nil
}

// Step runs one action through the stage pipeline.
func (e *Env) Step(in Input) (StepResult, error) {
	switch {
	case !e.started:
		return StepResult{}, ErrNotReset
	case e.aborted != nil:
		return StepResult{}, fmt.Errorf("%w: %v", ErrEpisodeAborted, e.aborted)
	case e.done:
		return StepResult{}, ErrEpisodeDone
	}
	e.stepNo++
	r := StepResult{Step: e.stepNo, Input: in}
	for _, s := range e.stages {
		if err := s.Run(e, &r); err != nil {
			if !s.Fatal {
				e.stepNo--
				return r, fmt.Errorf("%s: %w", s.Name, err)
			}
			e.aborted = fmt.Errorf("step %d %s: %w", e.stepNo, s.Name, err)
			return r, fmt.Errorf("%w: %w", ErrEpisodeAborted, e.aborted)
		}
	}
	e.done = r.Done
	return r, nil
}

// Close flushes the episode in progress.
func (e *Env) Close() error {
	err := e.endEpisode()
	e.started = false
	return err
}

func (e *Env) endEpisode() error {
	if e.rec == nil || !e.started {
		return nil
	}
	return e.rec.EndEpisode()
}
