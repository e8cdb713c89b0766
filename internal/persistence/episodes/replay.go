package episodes

import (
	"errors"
	"fmt"
	"math/rand"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/sim/env"
)

var ErrDiverged = errors.New("replay diverged")

// SessionLookup resolves the session an episode was recorded on.
// *registry.Registry is one.
type SessionLookup interface {
	Lookup(structureID string, index int) (registry.Session, error)
}

// Verify re-runs a recorded episode on a fresh environment and compares the
// start digest and every step's digest and reward with the recording.
func Verify(path string, sessions SessionLookup, agent env.Agent) (Summary, error) {
	h, steps, err := ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	sum := summarize(path, h, steps)

	sess, err := sessions.Lookup(h.StructureID, h.SessionIndex)
	if err != nil {
		return sum, err
	}
	if sess.SessionID != h.SessionID {
		return sum, fmt.Errorf("%w: session %s/%d is %q, recorded %q",
			ErrDiverged, h.StructureID, h.SessionIndex, sess.SessionID, h.SessionID)
	}
	src := env.Fixed{
		Ref:   registry.Ref{StructureID: h.StructureID, Index: h.SessionIndex, SessionID: h.SessionID},
		Tasks: sess.Tasks,
	}
	e, err := env.New(env.ConfigFromTuning(h.Env), src, agent, rand.New(rand.NewSource(0)))
	if err != nil {
		return sum, err
	}
	e.SetTask(h.Turn, h.Full)
	if _, err := e.Reset(); err != nil {
		return sum, err
	}
	if got := e.Episode().StartDigest; got != h.StartDigest {
		return sum, fmt.Errorf("%w: start digest %s, recorded %s", ErrDiverged, got, h.StartDigest)
	}
	for _, want := range steps {
		got, err := e.Step(want.Input)
		if err != nil {
			return sum, fmt.Errorf("step %d: %w", want.Step, err)
		}
		if got.Step != want.Step || got.Digest != want.Digest {
			return sum, fmt.Errorf("%w: step %d digest %s, recorded step %d %s",
				ErrDiverged, got.Step, got.Digest, want.Step, want.Digest)
		}
		if got.Reward != want.Reward || got.Done != want.Done {
			return sum, fmt.Errorf("%w: step %d reward=%v done=%v, recorded reward=%v done=%v",
				ErrDiverged, got.Step, got.Reward, got.Done, want.Reward, want.Done)
		}
	}
	return sum, nil
}
