package palette

import (
	"fmt"
	"sort"
)

// Color is a canonical block color id. 0 is air, 1..6 are placeable colors.
type Color int8

const (
	Air    Color = 0
	Blue   Color = 1
	Yellow Color = 2
	Green  Color = 3
	Orange Color = 4
	Purple Color = 5
	Red    Color = 6

	// NumColors is the number of placeable colors.
	NumColors = 6

	// OutOfEpisode fills observation cells when no episode is running.
	OutOfEpisode Color = -1
	// MaxObserved is the largest value an observed grid cell may hold.
	MaxObserved Color = 7

	DefaultFallback = Purple
)

var names = map[Color]string{
	Air:    "AIR",
	Blue:   "BLUE",
	Yellow: "YELLOW",
	Green:  "GREEN",
	Orange: "ORANGE",
	Purple: "PURPLE",
	Red:    "RED",
}

func Name(c Color) string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("COLOR_%d", c)
}

// IsPlaceable reports whether c is one of the six block colors.
func IsPlaceable(c Color) bool { return c >= 1 && c <= NumColors }

// Palette maps raw recorded block ids onto canonical colors.
type Palette struct {
	byRaw    map[int]Color
	fallback Color
}

// Default is the voxelworld recorder mapping.
func Default() *Palette {
	p, _ := New(map[int]Color{
		0:  Air,
		57: Blue,
		50: Yellow,
		59: Green,
		47: Orange,
		56: Purple,
		60: Red,
	}, DefaultFallback)
	return p
}

func New(byRaw map[int]Color, fallback Color) (*Palette, error) {
	if !IsPlaceable(fallback) {
		return nil, fmt.Errorf("fallback color %d out of range [1,%d]", fallback, NumColors)
	}
	m := make(map[int]Color, len(byRaw))
	for raw, c := range byRaw {
		if c != Air && !IsPlaceable(c) {
			return nil, fmt.Errorf("raw id %d maps to invalid color %d", raw, c)
		}
		m[raw] = c
	}
	return &Palette{byRaw: m, fallback: fallback}, nil
}

// Color returns the canonical color for a raw id. Unknown ids map to the fallback.
func (p *Palette) Color(raw int) Color {
	if c, ok := p.byRaw[raw]; ok {
		return c
	}
	return p.fallback
}

// Known reports whether raw has an explicit mapping.
func (p *Palette) Known(raw int) bool {
	_, ok := p.byRaw[raw]
	return ok
}

func (p *Palette) Fallback() Color { return p.fallback }

// RawIDs lists mapped raw ids in ascending order.
func (p *Palette) RawIDs() []int {
	out := make([]int, 0, len(p.byRaw))
	for raw := range p.byRaw {
		out = append(out, raw)
	}
	sort.Ints(out)
	return out
}
