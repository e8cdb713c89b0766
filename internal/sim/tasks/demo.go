package tasks

import (
	"strings"

	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

// Staircase is a built-in six-turn session: each turn adds an L of three
// blocks in a new color, stepping diagonally across the build zone. It needs
// no dataset and serves smoke runs and tests.
func Staircase() *Subtasks {
	colors := []palette.Color{palette.Purple, palette.Blue, palette.Green, palette.Yellow, palette.Orange, palette.Red}
	var (
		dialogs    [][]string
		structures [][]grid.Block
		cur        []grid.Block
	)
	for i, c := range colors {
		d := i - 3
		cur = append(cur,
			grid.Block{X: d, Y: -1, Z: d, Color: c},
			grid.Block{X: d, Y: -1, Z: d + 1, Color: c},
			grid.Block{X: d, Y: 0, Z: d, Color: c},
		)
		dialogs = append(dialogs, []string{"place three " + strings.ToLower(palette.Name(c)) + " blocks"})
		structures = append(structures, append([]grid.Block(nil), cur...))
	}
	s, err := New(dialogs, structures)
	if err != nil {
		panic(err)
	}
	return s
}
