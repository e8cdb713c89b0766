package tasks

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

var (
	ErrEmptySession = errors.New("session has no turns")
	ErrBadTurn      = errors.New("turn out of range")
	ErrMisaligned   = errors.New("utterance groups and block lists differ in length")
)

// Subtask is one instruction-aligned increment of a build. It is immutable
// once built and safe to share between episodes.
type Subtask struct {
	Turn int
	// Utterances is every utterance group up to and including Turn, flattened
	// in chronological order.
	Utterances []string

	StartingGrid []grid.Block
	TargetBlocks []grid.Block
	TargetGrid   grid.Cells
	TargetSize   int
}

// Dialog joins the utterance context with newlines.
func (s *Subtask) Dialog() string { return strings.Join(s.Utterances, "\n") }

// StartingCells rasterizes StartingGrid.
func (s *Subtask) StartingCells() grid.Cells {
	c, _ := grid.FromBlocks(s.StartingGrid)
	return c
}

// StartingInventory gives perColor blocks of every color minus those already
// used by the starting grid.
func (s *Subtask) StartingInventory(perColor int) [palette.NumColors]int {
	var inv [palette.NumColors]int
	for i := range inv {
		inv[i] = perColor
	}
	for _, b := range s.StartingGrid {
		if palette.IsPlaceable(b.Color) {
			inv[b.Color-1]--
		}
	}
	return inv
}

// Subtasks is one recorded session: aligned utterance groups and the full
// block state after each builder turn.
type Subtasks struct {
	dialogs    [][]string
	structures [][]grid.Block
	subtasks   []*Subtask
}

// New builds a session sequence. dialogs[i] is the utterance group that led
// to structures[i].
func New(dialogs [][]string, structures [][]grid.Block) (*Subtasks, error) {
	if len(structures) == 0 {
		return nil, ErrEmptySession
	}
	if len(dialogs) != len(structures) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrMisaligned, len(dialogs), len(structures))
	}
	s := &Subtasks{
		dialogs:    make([][]string, len(dialogs)),
		structures: make([][]grid.Block, len(structures)),
	}
	for i := range dialogs {
		s.dialogs[i] = append([]string(nil), dialogs[i]...)
		s.structures[i] = append([]grid.Block(nil), structures[i]...)
	}
	var context []string
	for i := range s.structures {
		context = append(context, s.dialogs[i]...)
		var start []grid.Block
		if i > 0 {
			start = s.structures[i-1]
		}
		target, _ := grid.FromBlocks(s.structures[i])
		s.subtasks = append(s.subtasks, &Subtask{
			Turn:         i,
			Utterances:   append([]string(nil), context...),
			StartingGrid: start,
			TargetBlocks: s.structures[i],
			TargetGrid:   target,
			TargetSize:   target.Count(),
		})
	}
	return s, nil
}

// Len is the number of turns (subtasks) in the session.
func (s *Subtasks) Len() int { return len(s.subtasks) }

// Dialogs returns the aligned utterance groups.
func (s *Subtasks) Dialogs() [][]string { return s.dialogs }

// Structures returns the block state after each turn.
func (s *Subtasks) Structures() [][]grid.Block { return s.structures }

// Turn returns the subtask for one turn. With full set, the target is the
// session's final structure instead of the turn's.
func (s *Subtasks) Turn(turn int, full bool) (*Subtask, error) {
	if turn < 0 || turn >= len(s.subtasks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadTurn, turn, len(s.subtasks))
	}
	st := s.subtasks[turn]
	if !full || turn == len(s.subtasks)-1 {
		return st, nil
	}
	last := s.subtasks[len(s.subtasks)-1]
	return &Subtask{
		Turn:         turn,
		Utterances:   last.Utterances,
		StartingGrid: st.StartingGrid,
		TargetBlocks: last.TargetBlocks,
		TargetGrid:   last.TargetGrid,
		TargetSize:   last.TargetSize,
	}, nil
}

// Sample picks a turn uniformly.
func (s *Subtasks) Sample(rng *rand.Rand) *Subtask {
	return s.subtasks[rng.Intn(len(s.subtasks))]
}

// Selector chooses which turn of a session an episode trains on.
type Selector struct {
	Pinned bool
	Next   int
	Full   bool
}

// Pick applies the selector to a session.
func (sel Selector) Pick(s *Subtasks, rng *rand.Rand) (*Subtask, error) {
	if !sel.Pinned {
		st := s.Sample(rng)
		if sel.Full {
			return s.Turn(st.Turn, true)
		}
		return st, nil
	}
	return s.Turn(sel.Next, sel.Full)
}
