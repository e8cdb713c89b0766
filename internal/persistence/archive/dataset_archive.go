package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gridworld.ai/internal/persistence/snapshot"
)

type DatasetArchiveMeta struct {
	Digest     string `json:"digest"`
	Snapshot   string `json:"snapshot"`
	BuiltAt    string `json:"built_at"`
	ArchivedAt string `json:"archived_at"`
	Structures int    `json:"structures"`
	Sessions   int    `json:"sessions"`
	Subtasks   int    `json:"subtasks"`
}

// ArchiveDataset copies an existing dataset snapshot into
// `dataDir/archives/dataset_<digest12>/` before it is replaced by a build
// with digest nextDigest. Nothing is archived when no snapshot exists or the
// content is unchanged.
func ArchiveDataset(dataDir, snapshotPath, nextDigest string) (archivedPath string, archived bool, err error) {
	h, err := snapshot.ReadHeader(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if h.Digest == nextDigest {
		return "", false, nil
	}

	short := h.Digest
	if len(short) > 12 {
		short = short[:12]
	}
	archiveDir := filepath.Join(dataDir, "archives", fmt.Sprintf("dataset_%s", short))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := DatasetArchiveMeta{
		Digest:     h.Digest,
		Snapshot:   filepath.Base(dst),
		BuiltAt:    h.CreatedAt,
		ArchivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Structures: h.Structures,
		Sessions:   h.Sessions,
		Subtasks:   h.Subtasks,
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
