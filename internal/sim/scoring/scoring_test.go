package scoring

import (
	"math/rand"
	"testing"

	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

func targetOf(blocks ...grid.Block) Target {
	c, _ := grid.FromBlocks(blocks)
	return NewTarget(c)
}

func TestScenario_RightThenWrongColor(t *testing.T) {
	target := targetOf(
		grid.Block{X: 0, Y: 0, Z: 0, Color: 1},
		grid.Block{X: 0, Y: 0, Z: 1, Color: 1},
		grid.Block{X: 1, Y: 0, Z: 0, Color: 2},
	)
	g := grid.New()
	tr := NewTracker(target, g.Cells())

	if err := g.AddBlock(0, 0, 0, 1, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	r, prior := tr.Observe(g.Cells())
	if r.RightPlacement != 1 || r.WrongPlacement != 0 || r.BestIntersection != 1 || prior != 0 {
		t.Fatalf("first placement: %+v prior=%d", r, prior)
	}

	if err := g.AddBlock(1, 0, 0, 1, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	r, prior = tr.Observe(g.Cells())
	if r.RightPlacement != 0 || r.WrongPlacement != 1 || r.BestIntersection != 1 || prior != 1 {
		t.Fatalf("wrong color: %+v prior=%d", r, prior)
	}
	if r.Complete {
		t.Fatalf("not complete yet")
	}
}

func TestScore_CompleteOnExactMatch(t *testing.T) {
	target := targetOf(grid.Block{X: 0, Y: 0, Z: 0, Color: palette.Red}, grid.Block{X: 0, Y: 1, Z: 0, Color: palette.Red})
	g := grid.New()
	tr := NewTracker(target, g.Cells())
	_ = g.AddBlock(0, 0, 0, palette.Red, true)
	_ = g.AddBlock(0, 1, 0, palette.Red, true)
	r, _ := tr.Observe(g.Cells())
	if !r.Complete || r.RightPlacement != 2 || r.Intersection != 2 {
		t.Fatalf("complete: %+v", r)
	}
	// A stray block breaks exact equality even though intersection is full.
	_ = g.AddBlock(3, 0, 3, palette.Blue, true)
	r, _ = tr.Observe(g.Cells())
	if r.Complete || r.WrongPlacement != 1 || r.Intersection != 2 {
		t.Fatalf("stray: %+v", r)
	}
}

func TestScore_RemovingCorrectBlockIsWrongButBestHolds(t *testing.T) {
	target := targetOf(grid.Block{X: 0, Y: 0, Z: 0, Color: palette.Green})
	g := grid.New()
	tr := NewTracker(target, g.Cells())
	_ = g.AddBlock(0, 0, 0, palette.Green, true)
	tr.Observe(g.Cells())
	_ = g.RemoveBlock(0, 0, 0, true)
	r, prior := tr.Observe(g.Cells())
	if r.WrongPlacement != 1 || r.Intersection != 0 || r.BestIntersection != 1 || prior != 1 {
		t.Fatalf("after destroy: %+v", r)
	}
	if got := SizeReward(prior, r, 0.02); got != -0.02 {
		t.Fatalf("size reward after destroy: %v", got)
	}
}

func TestTracker_PrebuiltStartSetsBaseline(t *testing.T) {
	target := targetOf(
		grid.Block{X: 0, Y: 0, Z: 0, Color: palette.Red},
		grid.Block{X: 1, Y: 0, Z: 0, Color: palette.Red},
		grid.Block{X: 2, Y: 0, Z: 0, Color: palette.Red},
	)
	g := grid.New()
	_ = g.AddBlock(0, 0, 0, palette.Red, true)
	_ = g.AddBlock(1, 0, 0, palette.Red, true)
	tr := NewTracker(target, g.Cells())
	if tr.Best() != 2 {
		t.Fatalf("baseline best: %d", tr.Best())
	}

	// An idle first step earns nothing for blocks that were already there.
	r, prior := tr.Observe(g.Cells())
	if got := SizeReward(prior, r, 0.02); got != 0 {
		t.Fatalf("idle step reward: %v (%+v prior=%d)", got, r, prior)
	}
	_ = g.AddBlock(2, 0, 0, palette.Red, true)
	r, prior = tr.Observe(g.Cells())
	if got := SizeReward(prior, r, 0.02); got != 1 || !r.Complete {
		t.Fatalf("last block reward: %v (%+v)", got, r)
	}
}

func TestTracker_BestIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var blocks []grid.Block
	for i := 0; i < 30; i++ {
		blocks = append(blocks, grid.Block{X: rng.Intn(11) - 5, Y: rng.Intn(9) - 1, Z: rng.Intn(11) - 5, Color: palette.Color(1 + rng.Intn(6))})
	}
	target := targetOf(blocks...)
	g := grid.New()
	tr := NewTracker(target, g.Cells())
	last := tr.Best()
	for step := 0; step < 3000; step++ {
		p := grid.Vec3i{X: rng.Intn(11) - 5, Y: rng.Intn(9) - 1, Z: rng.Intn(11) - 5}
		if g.At(p.X, p.Y, p.Z) == palette.Air {
			_ = g.AddBlock(p.X, p.Y, p.Z, palette.Color(1+rng.Intn(6)), true)
		} else {
			_ = g.RemoveBlock(p.X, p.Y, p.Z, true)
		}
		r, prior := tr.Observe(g.Cells())
		if prior != last || r.BestIntersection < prior {
			t.Fatalf("step %d: best went %d -> %d", step, prior, r.BestIntersection)
		}
		if SizeReward(prior, r, 0) < 0 {
			t.Fatalf("step %d: shaped reward negative without penalty", step)
		}
		last = r.BestIntersection
	}
}

func TestScales_Reward(t *testing.T) {
	s := Scales{Right: 1, Wrong: -0.1}
	if got := s.Reward(Result{RightPlacement: 2, WrongPlacement: 5}); got != 2 {
		t.Fatalf("right reward: %v", got)
	}
	if got := s.Reward(Result{WrongPlacement: 3}); got < -0.3000001 || got > -0.2999999 {
		t.Fatalf("wrong reward: %v", got)
	}
	if got := s.Reward(Result{}); got != 0 {
		t.Fatalf("idle reward: %v", got)
	}
}
