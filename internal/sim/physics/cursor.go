// Package physics holds a deterministic reference implementation of the
// environment's agent layer. Movement is cell-based: the agent is two cells
// tall, moves one cell per step and settles onto the floor or a block after
// every step.
package physics

import (
	"math"

	"gridworld.ai/internal/sim/env"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

const (
	// FloorY is the solid layer directly under the build zone.
	FloorY = -2
	// Bound limits |x| and |z| of the agent's feet.
	Bound = 8
	// CeilingY limits how high the feet may rise.
	CeilingY = 12
	// Reach is how far the view ray travels, in cells.
	Reach   = 5.0
	rayStep = 0.05
)

// CursorAgent builds where its view ray lands: breaking hits the first solid
// cell, placing fills the last air cell before it.
type CursorAgent struct {
	pose     env.Pose
	inv      [palette.NumColors]int
	selected palette.Color
	// hang skips gravity for the update that jumped.
	hang int
}

func NewCursorAgent() *CursorAgent { return &CursorAgent{selected: palette.Blue} }

func (a *CursorAgent) Reset(spawn env.Pose, inventory [palette.NumColors]int) {
	a.pose = spawn
	a.inv = inventory
	a.selected = palette.Blue
	a.hang = 0
}

func (a *CursorAgent) Pose() env.Pose                    { return a.pose }
func (a *CursorAgent) Inventory() [palette.NumColors]int { return a.inv }
func (a *CursorAgent) Selected() palette.Color           { return a.selected }

func (a *CursorAgent) feet() grid.Vec3i { return cellOf(a.pose.X, a.pose.Y, a.pose.Z) }

func (a *CursorAgent) occupies(p grid.Vec3i) bool {
	f := a.feet()
	return p == f || p == f.Add(grid.Vec3i{Y: 1})
}

func solid(w env.World, p grid.Vec3i) bool { return p.Y <= FloorY || w.ColorAt(p) != palette.Air }

func cellOf(x, y, z float64) grid.Vec3i {
	return grid.Vec3i{X: round(x), Y: round(y), Z: round(z)}
}

func round(v float64) int { return int(math.Floor(v + 0.5)) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// Act applies one intent: hotbar, camera, block interaction, then movement.
func (a *CursorAgent) Act(in env.Intent, w env.World) ([]grid.Edit, error) {
	if palette.IsPlaceable(in.Hotbar) {
		a.selected = in.Hotbar
	}
	a.pose.Yaw = math.Mod(a.pose.Yaw+in.Camera[0], 360)
	if a.pose.Yaw < 0 {
		a.pose.Yaw += 360
	}
	a.pose.Pitch = clamp(a.pose.Pitch+in.Camera[1], -90, 90)

	var edits []grid.Edit
	switch {
	case in.Remove:
		if e, ok := a.breakBlock(w); ok {
			edits = append(edits, e)
		}
	case in.Add:
		if e, ok := a.placeBlock(w); ok {
			edits = append(edits, e)
		}
	}
	a.move(in, w, edits)
	return edits, nil
}

// Target returns the first solid cell on the view ray and the air cell
// before it.
func (a *CursorAgent) Target(w env.World) (hit, before grid.Vec3i, ok bool) {
	yaw := a.pose.Yaw * math.Pi / 180
	pitch := a.pose.Pitch * math.Pi / 180
	dx := math.Sin(yaw) * math.Cos(pitch)
	dy := -math.Sin(pitch)
	dz := math.Cos(yaw) * math.Cos(pitch)
	ex, ey, ez := a.pose.X, a.pose.Y+1, a.pose.Z

	before = cellOf(ex, ey, ez)
	for t := rayStep; t <= Reach; t += rayStep {
		c := cellOf(ex+dx*t, ey+dy*t, ez+dz*t)
		if c == before {
			continue
		}
		if solid(w, c) {
			return c, before, true
		}
		before = c
	}
	return grid.Vec3i{}, grid.Vec3i{}, false
}

func (a *CursorAgent) breakBlock(w env.World) (grid.Edit, bool) {
	hit, _, ok := a.Target(w)
	if !ok || hit.Y <= FloorY {
		return grid.Edit{}, false
	}
	col := w.ColorAt(hit)
	if palette.IsPlaceable(col) {
		a.inv[col-1]++
	}
	return grid.Edit{Kind: grid.EditRemove, Pos: hit, Color: col, BuildZone: grid.InBounds(hit)}, true
}

func (a *CursorAgent) placeBlock(w env.World) (grid.Edit, bool) {
	_, at, ok := a.Target(w)
	if !ok || a.occupies(at) || a.inv[a.selected-1] <= 0 {
		return grid.Edit{}, false
	}
	a.inv[a.selected-1]--
	return grid.Edit{Kind: grid.EditAdd, Pos: at, Color: a.selected, BuildZone: grid.InBounds(at)}, true
}

// view overlays this step's edits on the world so movement sees them.
type view struct {
	w     env.World
	edits []grid.Edit
}

func (v view) ColorAt(p grid.Vec3i) palette.Color {
	for i := len(v.edits) - 1; i >= 0; i-- {
		if e := v.edits[i]; e.Pos == p {
			if e.Kind == grid.EditAdd {
				return e.Color
			}
			return palette.Air
		}
	}
	return v.w.ColorAt(p)
}

func (a *CursorAgent) move(in env.Intent, w env.World, edits []grid.Edit) {
	v := view{w: w, edits: edits}
	feet := a.feet()
	up := grid.Vec3i{Y: 1}
	free := func(p grid.Vec3i) bool {
		return p.X >= -Bound && p.X <= Bound && p.Z >= -Bound && p.Z <= Bound && p.Y <= CeilingY &&
			!solid(v, p) && !solid(v, p.Add(up))
	}
	standing := solid(v, feet.Sub(up))

	if in.Jump && standing && free(feet.Add(up)) {
		feet = feet.Add(up)
		a.hang = 1
	}
	if in.Strafe != [2]int{} {
		yaw := a.pose.Yaw * math.Pi / 180
		fx, fz := math.Sin(yaw), math.Cos(yaw)
		rx, rz := math.Cos(yaw), -math.Sin(yaw)
		mx := -float64(in.Strafe[0])*fx + float64(in.Strafe[1])*rx
		mz := -float64(in.Strafe[0])*fz + float64(in.Strafe[1])*rz
		next := feet.Add(grid.Vec3i{X: round(mx), Z: round(mz)})
		if next != feet && free(next) {
			feet = next
		}
	}
	if a.hang > 0 {
		a.hang--
	} else {
		for !solid(v, feet.Sub(up)) {
			feet = feet.Sub(up)
		}
	}
	a.pose.X, a.pose.Y, a.pose.Z = float64(feet.X), float64(feet.Y), float64(feet.Z)
}
