package tuning

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gridworld.ai/internal/sim/palette"
)

func repoConfig(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "tuning.yaml")
}

func TestLoad_RepoConfigMatchesDefaults(t *testing.T) {
	got, err := Load(repoConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if got.Env.MaxSteps != want.Env.MaxSteps || got.Env.WrongPlacementScale != want.Env.WrongPlacementScale {
		t.Fatalf("env mismatch: %+v", got.Env)
	}
	if len(got.Env.ActionMap) != NumDiscreteActions-1 {
		t.Fatalf("action map len %d", len(got.Env.ActionMap))
	}
	p, err := got.Dataset.BuildPalette()
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	if p.Color(57) != palette.Blue || p.Color(12345) != palette.Purple {
		t.Fatalf("palette mapping wrong")
	}
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Env.InventoryPerColor != 20 || got.Dataset.GroundLevel != 63 {
		t.Fatalf("defaults: %+v", got)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("env:\n  max_steps: 10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Env.MaxSteps != 10 || !got.Env.SelectAndPlace || got.Env.RightPlacementScale != 1.0 {
		t.Fatalf("merge: %+v", got.Env)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"steps":     "env:\n  max_steps: 0\n",
		"action":    "env:\n  action_map: [0, 18]\n",
		"duplicate": "env:\n  action_map: [1, 1]\n",
		"spawn":     "env:\n  spawn: [1, 2]\n",
		"palette":   "dataset:\n  palette:\n    57: 9\n",
		"fallback":  "dataset:\n  fallback_color: 7\n",
	}
	for name, body := range cases {
		p := filepath.Join(t.TempDir(), name+".yaml")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(p); err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	tu := Defaults()
	env := map[string]string{EnvRawDir: " /raw ", EnvRecordDir: "/rec"}
	tu.ApplyEnv(func(k string) string { return env[k] })
	if tu.Dataset.RawDir != "/raw" || tu.Record.Dir != "/rec" || tu.Dataset.DataDir != "./data" {
		t.Fatalf("overrides: %+v %+v", tu.Dataset, tu.Record)
	}
}
