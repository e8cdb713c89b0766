package episodes

import (
	"encoding/json"
	"errors"
	"fmt"

	persistlog "gridworld.ai/internal/persistence/log"
	"gridworld.ai/internal/sim/env"
	"gridworld.ai/internal/sim/tuning"
)

const (
	Version = 1
	Kind    = "episode"
)

var (
	ErrNoHeader = errors.New("episode file has no header line")
	ErrVersion  = errors.New("unsupported episode file version")
)

// Header is the first line of an episode file.
type Header struct {
	Version   int    `json:"version"`
	Kind      string `json:"kind"`
	EpisodeID string `json:"episode_id"`
	CreatedAt string `json:"created_at"`

	StructureID  string `json:"structure_id"`
	SessionID    string `json:"session_id"`
	SessionIndex int    `json:"session_index"`
	Turn         int    `json:"turn"`
	Full         bool   `json:"full"`

	StartDigest  string `json:"start_digest"`
	TargetDigest string `json:"target_digest"`
	TargetSize   int    `json:"target_size"`

	Env tuning.Env `json:"env"`
}

type EditV1 struct {
	Kind      string `json:"kind"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	Color     int    `json:"color"`
	BuildZone bool   `json:"build_zone"`
}

// Step is one line per environment step after the header.
type Step struct {
	Step      int       `json:"step"`
	Input     env.Input `json:"input"`
	Primitive int       `json:"primitive"`
	Edits     []EditV1  `json:"edits,omitempty"`
	Right     int       `json:"right"`
	Wrong     int       `json:"wrong"`
	Best      int       `json:"best"`
	Reward    float64   `json:"reward"`
	Complete  bool      `json:"complete"`
	Done      bool      `json:"done"`
	Truncated bool      `json:"truncated"`
	Digest    string    `json:"digest"`
}

func stepFromResult(r env.StepResult) Step {
	s := Step{
		Step:      r.Step,
		Input:     r.Input,
		Primitive: r.Primitive,
		Right:     r.Score.RightPlacement,
		Wrong:     r.Score.WrongPlacement,
		Best:      r.Score.BestIntersection,
		Reward:    r.Reward,
		Complete:  r.Score.Complete,
		Done:      r.Done,
		Truncated: r.Truncated,
		Digest:    r.Digest,
	}
	if r.Input.Action != nil {
		a := *r.Input.Action
		s.Input.Action = &a
	}
	for _, e := range r.Edits {
		s.Edits = append(s.Edits, EditV1{
			Kind:      e.Kind.String(),
			X:         e.Pos.X,
			Y:         e.Pos.Y,
			Z:         e.Pos.Z,
			Color:     int(e.Color),
			BuildZone: e.BuildZone,
		})
	}
	return s
}

// Summary is what the index keeps about a written episode.
type Summary struct {
	EpisodeID    string
	Path         string
	CreatedAt    string
	StructureID  string
	SessionID    string
	SessionIndex int
	Turn         int
	Full         bool
	TargetSize   int
	Steps        int
	Return       float64
	Best         int
	Complete     bool
	Truncated    bool
	FinalDigest  string
}

func summarize(path string, h Header, steps []Step) Summary {
	s := Summary{
		EpisodeID:    h.EpisodeID,
		Path:         path,
		CreatedAt:    h.CreatedAt,
		StructureID:  h.StructureID,
		SessionID:    h.SessionID,
		SessionIndex: h.SessionIndex,
		Turn:         h.Turn,
		Full:         h.Full,
		TargetSize:   h.TargetSize,
		Steps:        len(steps),
		FinalDigest:  h.StartDigest,
	}
	for _, st := range steps {
		s.Return += st.Reward
		if st.Best > s.Best {
			s.Best = st.Best
		}
	}
	if n := len(steps); n > 0 {
		last := steps[n-1]
		s.Complete = last.Complete
		s.Truncated = last.Truncated
		s.FinalDigest = last.Digest
	}
	return s
}

// ReadFile loads an episode file written by Recorder.
func ReadFile(path string) (Header, []Step, error) {
	var (
		h      Header
		steps  []Step
		gotHdr bool
	)
	err := persistlog.ReadLines(path, func(line []byte) error {
		if !gotHdr {
			if err := json.Unmarshal(line, &h); err != nil {
				return err
			}
			if h.Kind != Kind {
				return ErrNoHeader
			}
			if h.Version != Version {
				return fmt.Errorf("%w: %d", ErrVersion, h.Version)
			}
			gotHdr = true
			return nil
		}
		var s Step
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		steps = append(steps, s)
		return nil
	})
	if err != nil {
		return h, nil, err
	}
	if !gotHdr {
		return h, nil, ErrNoHeader
	}
	return h, steps, nil
}

// Summarize reads an episode file and returns its index summary.
func Summarize(path string) (Summary, error) {
	h, steps, err := ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	return summarize(path, h, steps), nil
}
