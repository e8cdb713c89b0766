package logfix

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const rawLog = "1 chat hello\n1 block_change (0, 64, 2, 1, 57)"

func TestRepairFile_InPlaceSecondRunRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte(rawLog), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st, err := RepairFile(path, path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if st.Fixed != 1 || !Repaired(path) {
		t.Fatalf("first run: stats=%+v marked=%v", st, Repaired(path))
	}
	want := "1 chat hello\n1 block_change (0, 64, 0, 1, 57)"
	if b, _ := os.ReadFile(path); string(b) != want {
		t.Fatalf("after first run:\n%q\nwant\n%q", b, want)
	}

	if _, err := RepairFile(path, path); !errors.Is(err, ErrAlreadyRepaired) {
		t.Fatalf("second run: expected ErrAlreadyRepaired, got %v", err)
	}
	if b, _ := os.ReadFile(path); string(b) != want {
		t.Fatalf("second run changed the file: %q", b)
	}
}

func TestRepairFile_OutputDirIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw", "session.log")
	dst := filepath.Join(dir, "out", "session.log")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte(rawLog), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := RepairFile(src, dst); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if b, _ := os.ReadFile(dst); string(b) != "1 chat hello\n1 block_change (0, 64, 0, 1, 57)" {
		t.Fatalf("output: %q", b)
	}
	if Repaired(src) {
		t.Fatalf("source must stay unmarked")
	}
	// The repaired output cannot be fed back in.
	if _, err := RepairFile(dst, filepath.Join(dir, "again", "session.log")); !errors.Is(err, ErrAlreadyRepaired) {
		t.Fatalf("expected ErrAlreadyRepaired, got %v", err)
	}
}
