package env

import (
	"fmt"

	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/scoring"
)

// StepResult is the shared record every stage reads and fills in.
type StepResult struct {
	Step  int
	Input Input
	// Primitive is the discrete action after remapping, -1 for structured input.
	Primitive int
	Intent    Intent
	Edits     []grid.Edit
	Mutation  grid.Mutation
	Score     scoring.Result
	PriorBest int
	Reward    float64
	Done      bool
	// Truncated is set when the step budget, not completion, ended the episode.
	Truncated bool
	Digest    string
	Obs       Observation
}

// Stage is one named step of the pipeline. A failing stage before the first
// Fatal one rejects the action and leaves the episode untouched; a failing
// Fatal stage aborts the episode.
type Stage struct {
	Name  string
	Fatal bool
	Run   func(e *Env, r *StepResult) error
}

func (e *Env) buildStages() []Stage {
	stages := []Stage{
		{Name: "remap", Run: stageRemap},
		{Name: "parse", Run: stageParse},
		{Name: "physics", Fatal: true, Run: stagePhysics},
		{Name: "mutate", Fatal: true, Run: stageMutate},
		{Name: "score", Run: stageScore},
	}
	if e.cfg.SizeReward {
		stages = append(stages, Stage{Name: "size_reward", Run: stageSizeReward})
	}
	stages = append(stages,
		Stage{Name: "budget", Run: stageBudget},
		Stage{Name: "observe", Run: stageObserve},
	)
	if e.rec != nil {
		stages = append(stages, Stage{Name: "record", Run: stageRecord})
	}
	return stages
}

func stageRemap(e *Env, r *StepResult) error {
	r.Primitive = -1
	if !e.cfg.Discretize {
		if r.Input.Action == nil {
			return fmt.Errorf("%w: structured action required", ErrBadAction)
		}
		return nil
	}
	if r.Input.Action != nil {
		return fmt.Errorf("%w: discrete index required", ErrBadAction)
	}
	p, err := e.actions.Map(r.Input.Index)
	if err != nil {
		return err
	}
	r.Primitive = p
	return nil
}

func stageParse(e *Env, r *StepResult) error {
	var err error
	if r.Primitive >= 0 {
		r.Intent, err = ParseDiscrete(r.Primitive)
	} else {
		r.Intent, err = ParseAction(*r.Input.Action)
	}
	if err != nil {
		return err
	}
	if e.cfg.SelectAndPlace && r.Intent.Hotbar != 0 {
		r.Intent.Add = true
		r.Intent.Remove = false
	}
	return nil
}

func stagePhysics(e *Env, r *StepResult) error {
	edits, err := e.agent.Act(r.Intent, e.grid)
	if err != nil {
		return err
	}
	r.Edits = edits
	return nil
}

func stageMutate(e *Env, r *StepResult) error {
	m, err := e.grid.Apply(r.Edits)
	if err != nil {
		return err
	}
	r.Mutation = m
	return nil
}

func stageScore(e *Env, r *StepResult) error {
	r.Score, r.PriorBest = e.tracker.Observe(e.grid.Cells())
	r.Reward = e.cfg.Scales.Reward(r.Score)
	return nil
}

func stageSizeReward(e *Env, r *StepResult) error {
	r.Reward = scoring.SizeReward(r.PriorBest, r.Score, e.cfg.SizeRewardPenalty)
	return nil
}

func stageBudget(e *Env, r *StepResult) error {
	r.Done = r.Score.Complete
	if !r.Done && e.stepNo >= e.cfg.MaxSteps {
		r.Done = true
		r.Truncated = true
	}
	return nil
}

func stageObserve(e *Env, r *StepResult) error {
	r.Obs = e.observe()
	r.Digest = r.Obs.Grid.Digest()
	return nil
}

func stageRecord(e *Env, r *StepResult) error {
	e.rec.RecordStep(*r)
	return nil
}
