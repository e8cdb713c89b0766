package segment

import (
	"fmt"

	"gridworld.ai/internal/dataset/ingest"
	"gridworld.ai/internal/dataset/logfix"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

// StepLoader loads a builder step snapshot. Missing files must satisfy
// ingest.IsMissing.
type StepLoader interface {
	Load(sessionID string, step int) (ingest.StepSnapshot, error)
}

type Options struct {
	Palette *palette.Palette
	// GroundLevel is the recorder's world y of the ground plane.
	GroundLevel int
	// FixCoords remaps snapshot coordinates through logfix.FixXYZ before the
	// ground offset is removed.
	FixCoords bool
}

func DefaultOptions() Options {
	return Options{Palette: palette.Default(), GroundLevel: 63}
}

// Result holds index-aligned utterance groups and block lists. Every block
// list is non-empty.
type Result struct {
	UtteranceGroups [][]string
	BlockLists      [][]grid.Block

	// Diagnostics.
	MissingSteps int
	Merged       int
	Truncated    int
}

func (r Result) Len() int { return len(r.BlockLists) }

type entry struct {
	utterances []string
	blocks     []grid.Block
}

// Segment turns one session's rows (sorted by step) into aligned subtask
// material. Utterances accumulate into the current group until a builder
// action closes it; a builder turn that asks a clarifying question adds to
// the group instead of opening an action. Actions whose snapshot is missing
// stay empty and are folded forward by the merge pass.
func Segment(s ingest.Session, loader StepLoader, opts Options) (Result, error) {
	if opts.Palette == nil {
		opts.Palette = palette.Default()
	}
	var (
		res     Result
		entries []entry
		pending []string
	)
	for _, row := range s.Rows {
		if row.IsArchitect() {
			if row.Instruction != "" {
				pending = append(pending, row.Instruction)
			}
			if row.Answer != "" {
				pending = append(pending, row.Answer)
			}
			continue
		}
		if row.ClarifyingQuestion != "" {
			pending = append(pending, row.ClarifyingQuestion)
			continue
		}
		e := entry{utterances: pending}
		pending = nil
		snap, err := loader.Load(s.ID, row.StepID)
		switch {
		case err == nil:
			e.blocks = convertBlocks(snap.Blocks, opts)
		case ingest.IsMissing(err):
			res.MissingSteps++
		default:
			return Result{}, fmt.Errorf("session %s step %d: %w", s.ID, row.StepID, err)
		}
		entries = append(entries, e)
	}

	entries, res.Merged, res.Truncated = mergeEmpty(entries)
	for _, e := range entries {
		res.UtteranceGroups = append(res.UtteranceGroups, e.utterances)
		res.BlockLists = append(res.BlockLists, e.blocks)
	}
	return res, nil
}

// mergeEmpty removes entries with no blocks. An empty entry's utterances are
// prepended to the next entry's; an empty last entry is dropped with its
// utterances. The scan index does not advance after a removal.
func mergeEmpty(entries []entry) (out []entry, merged, truncated int) {
	i := 0
	for i < len(entries) {
		if len(entries[i].blocks) != 0 {
			i++
			continue
		}
		if i == len(entries)-1 {
			truncated = len(entries) - i
			entries = entries[:i]
			break
		}
		next := entries[i+1]
		joined := make([]string, 0, len(entries[i].utterances)+len(next.utterances))
		joined = append(joined, entries[i].utterances...)
		joined = append(joined, next.utterances...)
		next.utterances = joined
		entries = append(entries[:i], append([]entry{next}, entries[i+2:]...)...)
		merged++
	}
	return entries, merged, truncated
}

func convertBlocks(raw []ingest.RawBlock, opts Options) []grid.Block {
	out := make([]grid.Block, 0, len(raw))
	for _, b := range raw {
		x, y, z := b.X, b.Y, b.Z
		if opts.FixCoords {
			x, y, z = logfix.FixXYZ(x, y, z)
		}
		col := opts.Palette.Color(b.ID)
		if col == palette.Air {
			continue
		}
		out = append(out, grid.Block{X: x, Y: y - opts.GroundLevel - 1, Z: z, Color: col})
	}
	return out
}
