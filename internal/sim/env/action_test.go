package env

import (
	"errors"
	"math"
	"testing"

	"gridworld.ai/internal/sim/palette"
)

func TestParseDiscrete_Enumeration(t *testing.T) {
	cases := map[int]Intent{
		ActNoop:        {},
		ActForward:     {Strafe: [2]int{-1, 0}},
		ActBack:        {Strafe: [2]int{1, 0}},
		ActLeft:        {Strafe: [2]int{0, -1}},
		ActRight:       {Strafe: [2]int{0, 1}},
		ActJump:        {Jump: true},
		ActHotbarFirst: {Hotbar: palette.Blue},
		ActHotbarLast:  {Hotbar: palette.Red},
		ActCameraLeft:  {Camera: [2]float64{-5, 0}},
		ActCameraRight: {Camera: [2]float64{5, 0}},
		ActCameraUp:    {Camera: [2]float64{0, -5}},
		ActCameraDown:  {Camera: [2]float64{0, 5}},
		ActAttack:      {Remove: true},
		ActUse:         {Add: true},
	}
	for i, want := range cases {
		got, err := ParseDiscrete(i)
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		if got != want {
			t.Fatalf("%d: got %+v want %+v", i, got, want)
		}
	}
	for _, bad := range []int{-1, NumActions} {
		if _, err := ParseDiscrete(bad); !errors.Is(err, ErrBadAction) {
			t.Fatalf("%d: expected ErrBadAction, got %v", bad, err)
		}
	}
}

func TestParseAction(t *testing.T) {
	in, err := ParseAction(Action{Forward: true, Back: true, Right: true, Jump: true, Camera: [2]float64{12, -1}, Hotbar: 4, Use: true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Intent{Strafe: [2]int{0, 1}, Jump: true, Hotbar: palette.Orange, Camera: [2]float64{5, -1}, Add: true}
	if in != want {
		t.Fatalf("got %+v want %+v", in, want)
	}
	if _, err := ParseAction(Action{Hotbar: 7}); !errors.Is(err, ErrBadAction) {
		t.Fatalf("hotbar 7: %v", err)
	}
	if _, err := ParseAction(Action{Camera: [2]float64{math.NaN(), 0}}); !errors.Is(err, ErrBadAction) {
		t.Fatalf("NaN camera: %v", err)
	}
}

func TestActionMap(t *testing.T) {
	id, err := NewActionMap(nil)
	if err != nil || id.Size() != NumActions {
		t.Fatalf("identity: size=%d err=%v", id.Size(), err)
	}
	if p, _ := id.Map(ActUse); p != ActUse {
		t.Fatalf("identity map: %d", p)
	}
	m, err := NewActionMap([]int{ActNoop, ActAttack})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if p, _ := m.Map(1); p != ActAttack {
		t.Fatalf("map(1)=%d", p)
	}
	if _, err := m.Map(2); !errors.Is(err, ErrBadAction) {
		t.Fatalf("out of range: %v", err)
	}
	if _, err := NewActionMap([]int{1, 1}); err == nil {
		t.Fatalf("duplicate accepted")
	}
	if _, err := NewActionMap([]int{18}); err == nil {
		t.Fatalf("out of range accepted")
	}
}

func TestNormYaw(t *testing.T) {
	for in, want := range map[float64]float64{0: 0, 365: 5, -5: 355, 720: 0} {
		if got := normYaw(in); got != want {
			t.Fatalf("normYaw(%v)=%v want %v", in, got, want)
		}
	}
}
