package logfix

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerSuffix names the file written next to every repaired log. A log with
// a marker has already been through FixXYZ and must not be repaired again.
const MarkerSuffix = ".fixed"

var ErrAlreadyRepaired = errors.New("log already repaired")

func MarkerPath(path string) string { return path + MarkerSuffix }

// Repaired reports whether path carries a repair marker.
func Repaired(path string) bool {
	_, err := os.Stat(MarkerPath(path))
	return err == nil
}

// RepairFile repairs src into dst through a temp file and rename, so src may
// equal dst, then writes dst's marker. A src that carries a marker is refused
// with ErrAlreadyRepaired.
func RepairFile(src, dst string) (Stats, error) {
	if Repaired(src) {
		return Stats{}, ErrAlreadyRepaired
	}
	in, err := os.Open(src)
	if err != nil {
		return Stats{}, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Stats{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return Stats{}, err
	}
	defer os.Remove(tmp.Name())

	st, err := FixStream(in, tmp)
	if err != nil {
		_ = tmp.Close()
		return st, err
	}
	if err := tmp.Close(); err != nil {
		return st, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return st, err
	}
	marker := fmt.Sprintf("source=%s lines=%d fixed=%d unparsed=%d\n", filepath.Base(src), st.Lines, st.Fixed, st.Unparsed)
	return st, os.WriteFile(MarkerPath(dst), []byte(marker), 0o644)
}
