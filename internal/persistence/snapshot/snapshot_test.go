package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
	"gridworld.ai/internal/sim/tasks"
)

func sampleRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	two, err := tasks.New(
		[][]string{{"a red block"}, {"which side?", "left", "a blue one"}},
		[][]grid.Block{
			{{X: 0, Y: -1, Z: 0, Color: palette.Red}},
			{{X: 0, Y: -1, Z: 0, Color: palette.Red}, {X: -1, Y: -1, Z: 0, Color: palette.Blue}},
		},
	)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if err := reg.AddSession("C7", "s-2", two); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.AddSession("C1", "s-1", tasks.Staircase()); err != nil {
		t.Fatalf("add: %v", err)
	}
	return reg
}

func TestDataset_WriteReadRebuild(t *testing.T) {
	reg := sampleRegistry(t)
	path := filepath.Join(t.TempDir(), "snapshots", "dataset.snap.zst")
	d := FromRegistry(reg, 63, false)
	if err := WriteDataset(path, d); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Structures != 2 || h.Sessions != 2 || h.Subtasks != 8 || h.Digest == "" {
		t.Fatalf("header: %+v", h)
	}

	got, err := ReadDataset(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.GroundLevel != 63 || got.Structures[0].ID != "C1" {
		t.Fatalf("dataset: ground=%d first=%s", got.GroundLevel, got.Structures[0].ID)
	}
	back, err := got.Registry()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if back.TotalSubtaskCount() != reg.TotalSubtaskCount() || back.NumStructures() != 2 {
		t.Fatalf("rebuilt registry: %d subtasks", back.TotalSubtaskCount())
	}
	s, err := back.Lookup("C7", 0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	st, _ := s.Tasks.Turn(1, false)
	orig, _ := reg.Sessions("C7")[0].Tasks.Turn(1, false)
	if st.TargetGrid != orig.TargetGrid || st.Dialog() != orig.Dialog() {
		t.Fatalf("turn 1 differs after round trip")
	}
	if FromRegistry(back, 63, false).Header.Digest != h.Digest {
		t.Fatalf("digest not stable across rebuild")
	}
}

func TestDataset_RejectsTamperedBody(t *testing.T) {
	reg := sampleRegistry(t)
	d := FromRegistry(reg, 63, false)
	d.Header.Digest = "00"
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := WriteDataset(path, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadDataset(path); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestDataset_RejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v9.snap.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, _ := zstd.NewWriter(f)
	_, _ = enc.Write([]byte(`{"version":9,"kind":"dataset"}` + "\n"))
	_ = enc.Close()
	_ = f.Close()
	if _, err := ReadHeader(path); !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.snap.zst")
	if err := WriteDataset(path, FromRegistry(sampleRegistry(t), 63, false)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reg.NumSessions() != 2 {
		t.Fatalf("sessions: %d", reg.NumSessions())
	}
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.snap.zst")); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}
