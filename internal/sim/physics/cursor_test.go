package physics

import (
	"math/rand"
	"testing"

	"gridworld.ai/internal/sim/env"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
	"gridworld.ai/internal/sim/tasks"
)

type memWorld map[grid.Vec3i]palette.Color

func (m memWorld) ColorAt(p grid.Vec3i) palette.Color { return m[p] }

func full() [palette.NumColors]int { return [palette.NumColors]int{20, 20, 20, 20, 20, 20} }

func agentAt(x, y, z float64) *CursorAgent {
	a := NewCursorAgent()
	a.Reset(env.Pose{X: x, Y: y, Z: z}, full())
	return a
}

func TestCursor_FallsToFloor(t *testing.T) {
	a := agentAt(0, 1, -3)
	if _, err := a.Act(env.Intent{}, memWorld{}); err != nil {
		t.Fatalf("act: %v", err)
	}
	if p := a.Pose(); p.Y != FloorY+1 {
		t.Fatalf("expected to land at y=%d, got %+v", FloorY+1, p)
	}
}

func TestCursor_PlaceAndBreak(t *testing.T) {
	w := memWorld{{X: 0, Y: 0, Z: 0}: palette.Red}
	a := agentAt(0, -1, -3)

	edits, _ := a.Act(env.Intent{Add: true}, w)
	want := grid.Edit{Kind: grid.EditAdd, Pos: grid.Vec3i{X: 0, Y: 0, Z: -1}, Color: palette.Blue, BuildZone: true}
	if len(edits) != 1 || edits[0] != want {
		t.Fatalf("place: %+v", edits)
	}
	if a.Inventory()[palette.Blue-1] != 19 {
		t.Fatalf("inventory after place: %v", a.Inventory())
	}

	edits, _ = a.Act(env.Intent{Remove: true}, w)
	want = grid.Edit{Kind: grid.EditRemove, Pos: grid.Vec3i{X: 0, Y: 0, Z: 0}, Color: palette.Red, BuildZone: true}
	if len(edits) != 1 || edits[0] != want {
		t.Fatalf("break: %+v", edits)
	}
	if a.Inventory()[palette.Red-1] != 21 {
		t.Fatalf("inventory after break: %v", a.Inventory())
	}
}

func TestCursor_PlaceOutsideBuildZone(t *testing.T) {
	w := memWorld{{X: 0, Y: 0, Z: -7}: palette.Green}
	a := agentAt(0, -1, -10)
	edits, _ := a.Act(env.Intent{Add: true, Hotbar: palette.Yellow}, w)
	if len(edits) != 1 || edits[0].BuildZone || edits[0].Pos != (grid.Vec3i{X: 0, Y: 0, Z: -8}) || edits[0].Color != palette.Yellow {
		t.Fatalf("edits: %+v", edits)
	}
}

func TestCursor_NoPlacementIntoSelfOrWithoutStock(t *testing.T) {
	a := agentAt(0, -1, -3)
	edits, _ := a.Act(env.Intent{Add: true, Camera: [2]float64{0, 200}}, memWorld{})
	if len(edits) != 0 {
		t.Fatalf("placed into own cell: %+v", edits)
	}
	if a.Pose().Pitch != 90 {
		t.Fatalf("pitch not clamped: %v", a.Pose().Pitch)
	}
	edits, _ = a.Act(env.Intent{Remove: true}, memWorld{})
	if len(edits) != 0 {
		t.Fatalf("broke the floor: %+v", edits)
	}

	b := NewCursorAgent()
	b.Reset(env.Pose{X: 0, Y: -1, Z: -3}, [palette.NumColors]int{})
	edits, _ = b.Act(env.Intent{Add: true}, memWorld{{X: 0, Y: 0, Z: 0}: palette.Red})
	if len(edits) != 0 {
		t.Fatalf("placed without inventory: %+v", edits)
	}
}

func TestCursor_BlockedThenClimb(t *testing.T) {
	w := memWorld{{X: 0, Y: -1, Z: 0}: palette.Red}
	a := agentAt(0, -1, -1)
	a.Act(env.Intent{Strafe: [2]int{-1, 0}}, w)
	if p := a.Pose(); p.Z != -1 {
		t.Fatalf("walked through a block: %+v", p)
	}
	a.Act(env.Intent{Jump: true, Strafe: [2]int{-1, 0}}, w)
	if p := a.Pose(); p.X != 0 || p.Y != 0 || p.Z != 0 {
		t.Fatalf("expected to stand on the block, got %+v", p)
	}
	a.Act(env.Intent{Strafe: [2]int{-1, 0}}, w)
	if p := a.Pose(); p.Y != -1 || p.Z != 1 {
		t.Fatalf("expected to step off and fall, got %+v", p)
	}
}

func TestCursor_DrivesEnvironmentToCompletion(t *testing.T) {
	seq, err := tasks.New(
		[][]string{{"put a red block down"}, {"now a blue one in front of it"}},
		[][]grid.Block{
			{{X: 0, Y: 0, Z: 0, Color: palette.Red}},
			{{X: 0, Y: 0, Z: 0, Color: palette.Red}, {X: 0, Y: 0, Z: -1, Color: palette.Blue}},
		},
	)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	e, err := env.New(env.DefaultConfig(), env.Fixed{Tasks: seq}, NewCursorAgent(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	e.SetTask(1, false)
	obs, err := e.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if obs.Inventory[palette.Red-1] != 19 {
		t.Fatalf("inventory: %v", obs.Inventory)
	}
	if _, err := e.Step(env.Discrete(env.ActNoop)); err != nil {
		t.Fatalf("settle: %v", err)
	}
	r, err := e.Step(env.Discrete(env.ActHotbarFirst))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !r.Done || !r.Score.Complete || r.Score.RightPlacement != 1 || r.Reward != 1 {
		t.Fatalf("result: done=%v score=%+v reward=%v", r.Done, r.Score, r.Reward)
	}
	if r.Obs.Inventory[palette.Blue-1] != 19 {
		t.Fatalf("blue not consumed: %v", r.Obs.Inventory)
	}
}
