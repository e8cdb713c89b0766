package scoring

import (
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

// Result is one tick's comparison of the live grid against the target.
type Result struct {
	// RightPlacement counts cells that changed this tick into the target's
	// non-air color.
	RightPlacement int
	// WrongPlacement counts cells that changed this tick into anything other
	// than the target color at that cell (stray blocks, wrong colors, and
	// removals of correct blocks).
	WrongPlacement int
	// Intersection counts all currently correct non-air cells.
	Intersection int
	// BestIntersection is max(prior best, Intersection).
	BestIntersection int
	// Complete is true when the live grid equals the target exactly.
	Complete bool
}

// Target is a read-only target grid with its size precomputed.
type Target struct {
	Cells grid.Cells
	Size  int
}

func NewTarget(c grid.Cells) Target {
	return Target{Cells: c, Size: c.Count()}
}

// Intersection counts cells where live matches the target's non-air color.
func Intersection(live, target *grid.Cells) int {
	n := 0
	for y := 0; y < grid.SizeY; y++ {
		for x := 0; x < grid.SizeX; x++ {
			for z := 0; z < grid.SizeZ; z++ {
				t := target[y][x][z]
				if t != palette.Air && live[y][x][z] == t {
					n++
				}
			}
		}
	}
	return n
}

// Score compares live against target. prev is the grid as of the previous
// tick; only cells that differ between prev and live contribute to the
// right/wrong counts.
func Score(prev, live *grid.Cells, target Target, priorBest int) Result {
	var r Result
	for y := 0; y < grid.SizeY; y++ {
		for x := 0; x < grid.SizeX; x++ {
			for z := 0; z < grid.SizeZ; z++ {
				cur := live[y][x][z]
				if cur == prev[y][x][z] {
					continue
				}
				want := target.Cells[y][x][z]
				switch {
				case cur != palette.Air && cur == want:
					r.RightPlacement++
				case cur != want:
					r.WrongPlacement++
				}
			}
		}
	}
	r.Intersection = Intersection(live, &target.Cells)
	r.BestIntersection = priorBest
	if r.Intersection > r.BestIntersection {
		r.BestIntersection = r.Intersection
	}
	r.Complete = *live == target.Cells
	return r
}

// Scales weights the per-tick placement counts.
type Scales struct {
	Right float64
	Wrong float64
}

// Reward is the dense per-tick signal: wrong placements scaled when nothing
// went right this tick, right placements scaled otherwise.
func (s Scales) Reward(r Result) float64 {
	if r.RightPlacement == 0 {
		return float64(r.WrongPlacement) * s.Wrong
	}
	return float64(r.RightPlacement) * s.Right
}

// SizeReward is the monotone shaped signal: only newly reached overlap pays,
// and each wrong placement costs penalty.
func SizeReward(priorBest int, r Result, penalty float64) float64 {
	reward := float64(r.BestIntersection - priorBest)
	if p := -float64(r.WrongPlacement) * penalty; p < 0 {
		reward += p
	}
	return reward
}

// Tracker carries ScoreState across one episode. Reset at episode start.
type Tracker struct {
	target Target
	prev   grid.Cells
	best   int
}

func NewTracker(target Target, start grid.Cells) *Tracker {
	t := &Tracker{}
	t.Reset(target, start)
	return t
}

func (t *Tracker) Reset(target Target, start grid.Cells) {
	t.target = target
	t.prev = start
	t.best = Intersection(&start, &target.Cells)
}

// Observe scores live against the target, then advances prev and best.
func (t *Tracker) Observe(live grid.Cells) (Result, int) {
	prior := t.best
	r := Score(&t.prev, &live, t.target, prior)
	t.prev = live
	t.best = r.BestIntersection
	return r, prior
}

func (t *Tracker) Best() int      { return t.best }
func (t *Tracker) Target() Target { return t.target }
