package env

import (
	"math"

	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

type Observation struct {
	// AgentPos is x, y, z, pitch, yaw.
	AgentPos  [5]float64
	Inventory [palette.NumColors]int
	// Compass is yaw-180.
	Compass float64
	Grid    grid.Cells
	Target  grid.Cells
}

// idleObservation is what an environment without a running episode reports.
func idleObservation() Observation {
	var o Observation
	o.Grid.Fill(palette.OutOfEpisode)
	o.Target.Fill(palette.OutOfEpisode)
	return o
}

// normYaw wraps yaw into [0, 360).
func normYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 360)
	if yaw < 0 {
		yaw += 360
	}
	return yaw
}

func (e *Env) observe() Observation {
	if !e.started {
		return idleObservation()
	}
	p := e.agent.Pose()
	yaw := normYaw(p.Yaw)
	return Observation{
		AgentPos:  [5]float64{p.X, p.Y, p.Z, p.Pitch, yaw},
		Inventory: e.agent.Inventory(),
		Compass:   yaw - 180,
		Grid:      e.grid.Cells(),
		Target:    e.task.TargetGrid,
	}
}
