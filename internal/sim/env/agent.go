package env

import (
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
)

// Pose is the agent's position (feet, agent-relative) and view angles in
// degrees. Positive pitch looks down.
type Pose struct {
	X, Y, Z    float64
	Yaw, Pitch float64
}

// World is the read-only block view handed to the physics layer.
type World interface {
	ColorAt(p grid.Vec3i) palette.Color
}

// Agent is the physics layer. Act moves the agent and reports the block edits
// it caused; the environment applies them to the grid.
type Agent interface {
	Reset(spawn Pose, inventory [palette.NumColors]int)
	Act(in Intent, w World) ([]grid.Edit, error)
	Pose() Pose
	Inventory() [palette.NumColors]int
}
