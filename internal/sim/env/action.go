package env

import (
	"errors"
	"fmt"
	"math"

	"gridworld.ai/internal/sim/palette"
	"gridworld.ai/internal/sim/tuning"
)

var ErrBadAction = errors.New("bad action")

// Primitive discrete actions.
const (
	ActNoop        = 0
	ActForward     = 1
	ActBack        = 2
	ActLeft        = 3
	ActRight       = 4
	ActJump        = 5
	ActHotbarFirst = 6 // 6..11 select colors 1..6
	ActHotbarLast  = 11
	ActCameraLeft  = 12
	ActCameraRight = 13
	ActCameraUp    = 14
	ActCameraDown  = 15
	ActAttack      = 16
	ActUse         = 17

	NumActions = tuning.NumDiscreteActions
)

// CameraStep is the camera nudge of a discrete camera action, and the bound on
// each structured camera component.
const CameraStep = 5.0

// Action is the structured action form.
type Action struct {
	Forward bool       `json:"forward,omitempty"`
	Back    bool       `json:"back,omitempty"`
	Left    bool       `json:"left,omitempty"`
	Right   bool       `json:"right,omitempty"`
	Jump    bool       `json:"jump,omitempty"`
	Attack  bool       `json:"attack,omitempty"`
	Use     bool       `json:"use,omitempty"`
	Camera  [2]float64 `json:"camera"`
	// Hotbar selects a color, 0 keeps the current one.
	Hotbar int `json:"hotbar"`
}

// Intent is what the physics layer is asked to do this step.
type Intent struct {
	// Strafe is (forward/back, left/right); forward is -1, left is -1.
	Strafe [2]int
	Jump   bool
	// Hotbar is the selected color, Air when unchanged.
	Hotbar palette.Color
	// Camera is (yaw, pitch) delta in degrees.
	Camera [2]float64
	Remove bool
	Add    bool
}

func ParseAction(a Action) (Intent, error) {
	var in Intent
	if a.Hotbar < 0 || a.Hotbar > palette.NumColors {
		return in, fmt.Errorf("%w: hotbar %d", ErrBadAction, a.Hotbar)
	}
	for i, c := range a.Camera {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return in, fmt.Errorf("%w: camera[%d]=%v", ErrBadAction, i, c)
		}
		in.Camera[i] = math.Max(-CameraStep, math.Min(CameraStep, c))
	}
	if a.Forward {
		in.Strafe[0]--
	}
	if a.Back {
		in.Strafe[0]++
	}
	if a.Left {
		in.Strafe[1]--
	}
	if a.Right {
		in.Strafe[1]++
	}
	in.Jump = a.Jump
	in.Hotbar = palette.Color(a.Hotbar)
	in.Remove = a.Attack
	in.Add = a.Use
	return in, nil
}

func ParseDiscrete(i int) (Intent, error) {
	var in Intent
	switch {
	case i < 0 || i >= NumActions:
		return in, fmt.Errorf("%w: index %d", ErrBadAction, i)
	case i == ActForward:
		in.Strafe[0] = -1
	case i == ActBack:
		in.Strafe[0] = 1
	case i == ActLeft:
		in.Strafe[1] = -1
	case i == ActRight:
		in.Strafe[1] = 1
	case i == ActJump:
		in.Jump = true
	case i >= ActHotbarFirst && i <= ActHotbarLast:
		in.Hotbar = palette.Color(i - ActHotbarFirst + 1)
	case i == ActCameraLeft:
		in.Camera[0] = -CameraStep
	case i == ActCameraRight:
		in.Camera[0] = CameraStep
	case i == ActCameraUp:
		in.Camera[1] = -CameraStep
	case i == ActCameraDown:
		in.Camera[1] = CameraStep
	case i == ActAttack:
		in.Remove = true
	case i == ActUse:
		in.Add = true
	}
	return in, nil
}

// ActionMap maps a reduced action space onto the primitive enumeration.
type ActionMap struct {
	table []int
}

// NewActionMap validates table. An empty table is the identity over all
// primitive actions.
func NewActionMap(table []int) (ActionMap, error) {
	seen := map[int]bool{}
	for i, a := range table {
		if a < 0 || a >= NumActions {
			return ActionMap{}, fmt.Errorf("action map[%d]: %d out of range", i, a)
		}
		if seen[a] {
			return ActionMap{}, fmt.Errorf("action map[%d]: duplicate %d", i, a)
		}
		seen[a] = true
	}
	return ActionMap{table: append([]int(nil), table...)}, nil
}

// Size is the number of actions exposed to the agent.
func (m ActionMap) Size() int {
	if len(m.table) == 0 {
		return NumActions
	}
	return len(m.table)
}

func (m ActionMap) Map(i int) (int, error) {
	if i < 0 || i >= m.Size() {
		return 0, fmt.Errorf("%w: index %d of %d", ErrBadAction, i, m.Size())
	}
	if len(m.table) == 0 {
		return i, nil
	}
	return m.table[i], nil
}

// Input is one agent step request. Discrete environments read Index, others
// read Action.
type Input struct {
	Index  int     `json:"index"`
	Action *Action `json:"action,omitempty"`
}

func Discrete(i int) Input     { return Input{Index: i} }
func Structured(a Action) Input { return Input{Action: &a} }
