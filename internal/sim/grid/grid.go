package grid

import (
	"errors"
	"fmt"
	"sort"

	"gridworld.ai/internal/sim/palette"
)

var (
	ErrInvalidRemoval   = errors.New("invalid removal")
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrOutOfBounds      = errors.New("position outside grid")
)

// RemovalError reports removal of an air cell. It carries the array indices
// of the offending cell and of every non-air cell at the time.
type RemovalError struct {
	At     Vec3i
	NonAir []Vec3i
}

func (e *RemovalError) Error() string {
	return fmt.Sprintf("removal of non-existing block. address: y=%d, x=%d, z=%d; non-air cells (y,x,z): %v",
		e.At.Y, e.At.X, e.At.Z, formatCells(e.NonAir))
}

func (e *RemovalError) Unwrap() error { return ErrInvalidRemoval }

func formatCells(cells []Vec3i) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, fmt.Sprintf("(%d,%d,%d)", c.Y, c.X, c.Z))
	}
	return out
}

// Grid is the live voxel state of one episode. Cells only move air->color
// or color->air.
type Grid struct {
	cells   Cells
	outside map[Vec3i]palette.Color
}

func New() *Grid {
	return &Grid{outside: map[Vec3i]palette.Color{}}
}

// Reset clears the grid and replays blocks as build-zone placements when they
// fall inside the grid, and as outside placements otherwise.
func (g *Grid) Reset(blocks []Block) error {
	g.cells = Cells{}
	g.outside = map[Vec3i]palette.Color{}
	for _, b := range blocks {
		if err := g.AddBlock(b.X, b.Y, b.Z, b.Color, InBounds(b.Pos())); err != nil {
			return fmt.Errorf("replay start block %+v: %w", b, err)
		}
	}
	return nil
}

// Cells returns a copy of the current cell array.
func (g *Grid) Cells() Cells { return g.cells }

// At reads an agent-relative position.
func (g *Grid) At(x, y, z int) palette.Color { return g.cells.At(Vec3i{X: x, Y: y, Z: z}) }

// ColorAt reads any agent-relative position, including blocks placed outside
// the build zone.
func (g *Grid) ColorAt(p Vec3i) palette.Color {
	if InBounds(p) {
		return g.cells.At(p)
	}
	return g.outside[p]
}

// Outside lists blocks placed outside the build zone, sorted by position.
func (g *Grid) Outside() []Block {
	out := make([]Block, 0, len(g.outside))
	for p, c := range g.outside {
		out = append(out, Block{X: p.X, Y: p.Y, Z: p.Z, Color: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}

// AddBlock places col at an agent-relative position.
func (g *Grid) AddBlock(x, y, z int, col palette.Color, buildZone bool) error {
	p := Vec3i{X: x, Y: y, Z: z}
	if !palette.IsPlaceable(col) {
		return fmt.Errorf("%w: color %d at (%d,%d,%d)", ErrInvalidPlacement, col, x, y, z)
	}
	if !buildZone {
		g.outside[p] = col
		return nil
	}
	i, ok := Index(p)
	if !ok {
		return fmt.Errorf("%w: (%d,%d,%d)", ErrOutOfBounds, x, y, z)
	}
	if cur := g.cells[i.Y][i.X][i.Z]; cur != palette.Air {
		return fmt.Errorf("%w: cell y=%d, x=%d, z=%d already holds %s", ErrInvalidPlacement, i.Y, i.X, i.Z, palette.Name(cur))
	}
	g.cells[i.Y][i.X][i.Z] = col
	return nil
}

// RemoveBlock clears an agent-relative position. Removing air is a
// *RemovalError: the caller fed the grid an edit that never happened.
func (g *Grid) RemoveBlock(x, y, z int, buildZone bool) error {
	p := Vec3i{X: x, Y: y, Z: z}
	if !buildZone {
		delete(g.outside, p)
		return nil
	}
	i, ok := Index(p)
	if !ok {
		return fmt.Errorf("%w: (%d,%d,%d)", ErrOutOfBounds, x, y, z)
	}
	if g.cells[i.Y][i.X][i.Z] == palette.Air {
		return &RemovalError{At: i, NonAir: g.cells.NonAir()}
	}
	g.cells[i.Y][i.X][i.Z] = palette.Air
	return nil
}

// Apply applies a batch of edits atomically: on error the grid is unchanged.
func (g *Grid) Apply(edits []Edit) (Mutation, error) {
	var m Mutation
	if len(edits) == 0 {
		return m, nil
	}
	work := &Grid{cells: g.cells, outside: make(map[Vec3i]palette.Color, len(g.outside))}
	for p, c := range g.outside {
		work.outside[p] = c
	}
	seen := map[Vec3i]bool{}
	for _, e := range edits {
		var err error
		switch e.Kind {
		case EditAdd:
			err = work.AddBlock(e.Pos.X, e.Pos.Y, e.Pos.Z, e.Color, e.BuildZone)
		case EditRemove:
			err = work.RemoveBlock(e.Pos.X, e.Pos.Y, e.Pos.Z, e.BuildZone)
		default:
			err = fmt.Errorf("unknown edit kind %d", e.Kind)
		}
		if err != nil {
			return Mutation{}, err
		}
		if !e.BuildZone {
			m.Outside++
			continue
		}
		if !seen[e.Pos] {
			seen[e.Pos] = true
			m.Changed = append(m.Changed, e.Pos)
		}
	}
	g.cells = work.cells
	g.outside = work.outside
	return m, nil
}
