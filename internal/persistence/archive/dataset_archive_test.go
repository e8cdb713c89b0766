package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/persistence/snapshot"
)

func TestArchiveDataset(t *testing.T) {
	dataDir := t.TempDir()
	snapPath := filepath.Join(dataDir, "dataset.snap.zst")

	// Nothing to archive on the first build.
	if _, archived, err := ArchiveDataset(dataDir, snapPath, "next"); err != nil || archived {
		t.Fatalf("first build: archived=%v err=%v", archived, err)
	}

	d := snapshot.FromRegistry(registry.Demo(), 63, false)
	if err := snapshot.WriteDataset(snapPath, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, archived, err := ArchiveDataset(dataDir, snapPath, d.Header.Digest); err != nil || archived {
		t.Fatalf("same digest: archived=%v err=%v", archived, err)
	}

	dst, archived, err := ArchiveDataset(dataDir, snapPath, "different")
	if err != nil || !archived {
		t.Fatalf("archive: archived=%v err=%v", archived, err)
	}
	want := filepath.Join(dataDir, "archives", "dataset_"+d.Header.Digest[:12], "dataset.snap.zst")
	if dst != want {
		t.Fatalf("archived path=%s want=%s", dst, want)
	}
	if _, err := snapshot.ReadDataset(dst); err != nil {
		t.Fatalf("archived snapshot unreadable: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(filepath.Dir(dst), "meta.json"))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta DatasetArchiveMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta.Digest != d.Header.Digest || meta.Subtasks != 6 || meta.Snapshot != "dataset.snap.zst" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}
