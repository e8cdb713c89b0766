package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/sim/grid"
	"gridworld.ai/internal/sim/palette"
	"gridworld.ai/internal/sim/tasks"
)

const (
	Version = 1
	Kind    = "dataset"
)

var (
	ErrVersion        = errors.New("unsupported snapshot version")
	ErrDigestMismatch = errors.New("snapshot digest mismatch")
)

// Header is the plain JSON first line; it can be read without decoding the body.
type Header struct {
	Version    int    `json:"version"`
	Kind       string `json:"kind"`
	CreatedAt  string `json:"created_at"`
	Structures int    `json:"structures"`
	Sessions   int    `json:"sessions"`
	Subtasks   int    `json:"subtasks"`
	Digest     string `json:"digest"`
}

type DatasetV1 struct {
	Header Header `json:"header"`

	GroundLevel       int  `json:"ground_level"`
	FixSnapshotCoords bool `json:"fix_snapshot_coords"`

	Structures []StructureV1 `json:"structures"`
}

type StructureV1 struct {
	ID       string      `json:"id"`
	Sessions []SessionV1 `json:"sessions"`
}

type SessionV1 struct {
	SessionID string      `json:"session_id"`
	Dialogs   [][]string  `json:"dialogs"`
	Steps     [][]BlockV1 `json:"steps"`
}

type BlockV1 struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Z     int  `json:"z"`
	Color int8 `json:"c"`
}

// FromRegistry captures every session of reg, structures in sorted order.
func FromRegistry(reg *registry.Registry, groundLevel int, fixCoords bool) DatasetV1 {
	d := DatasetV1{GroundLevel: groundLevel, FixSnapshotCoords: fixCoords}
	for _, id := range reg.StructureIDs() {
		st := StructureV1{ID: id}
		for _, s := range reg.Sessions(id) {
			sv := SessionV1{SessionID: s.SessionID}
			for _, g := range s.Tasks.Dialogs() {
				sv.Dialogs = append(sv.Dialogs, append([]string(nil), g...))
			}
			for _, blocks := range s.Tasks.Structures() {
				var step []BlockV1
				for _, b := range blocks {
					step = append(step, BlockV1{X: b.X, Y: b.Y, Z: b.Z, Color: int8(b.Color)})
				}
				sv.Steps = append(sv.Steps, step)
			}
			st.Sessions = append(st.Sessions, sv)
		}
		d.Structures = append(d.Structures, st)
	}
	d.Header = Header{
		Version:    Version,
		Kind:       Kind,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Structures: reg.NumStructures(),
		Sessions:   reg.NumSessions(),
		Subtasks:   reg.TotalSubtaskCount(),
		Digest:     d.ContentDigest(),
	}
	return d
}

// ContentDigest hashes the session content, not the header. Nil and empty
// slices hash alike, since gob does not keep the difference.
func (d DatasetV1) ContentDigest() string {
	h := sha256.New()
	for _, st := range d.Structures {
		fmt.Fprintf(h, "S%q\n", st.ID)
		for _, s := range st.Sessions {
			fmt.Fprintf(h, "s%q %d %d\n", s.SessionID, len(s.Dialogs), len(s.Steps))
			for _, g := range s.Dialogs {
				fmt.Fprintf(h, "d%q\n", g)
			}
			for _, step := range s.Steps {
				fmt.Fprintf(h, "b%v\n", step)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Registry rebuilds the task registry the snapshot was taken from.
func (d DatasetV1) Registry() (*registry.Registry, error) {
	reg := registry.New()
	for _, st := range d.Structures {
		for _, sv := range st.Sessions {
			structures := make([][]grid.Block, 0, len(sv.Steps))
			for _, step := range sv.Steps {
				blocks := make([]grid.Block, 0, len(step))
				for _, b := range step {
					blocks = append(blocks, grid.Block{X: b.X, Y: b.Y, Z: b.Z, Color: palette.Color(b.Color)})
				}
				structures = append(structures, blocks)
			}
			seq, err := tasks.New(sv.Dialogs, structures)
			if err != nil {
				return nil, fmt.Errorf("structure %s session %s: %w", st.ID, sv.SessionID, err)
			}
			if err := reg.AddSession(st.ID, sv.SessionID, seq); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

func WriteDataset(path string, d DatasetV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(d.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&d); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func openReader(path string) (*os.File, *zstd.Decoder, *bufio.Reader, Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, h, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, h, err
	}
	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		dec.Close()
		f.Close()
		return nil, nil, nil, h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		dec.Close()
		f.Close()
		return nil, nil, nil, h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version || h.Kind != Kind {
		dec.Close()
		f.Close()
		return nil, nil, nil, h, fmt.Errorf("%w: %s v%d", ErrVersion, h.Kind, h.Version)
	}
	return f, dec, br, h, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (Header, error) {
	f, dec, _, h, err := openReader(path)
	if err != nil {
		return h, err
	}
	dec.Close()
	f.Close()
	return h, nil
}

// ReadDataset decodes a snapshot and checks its content digest.
func ReadDataset(path string) (DatasetV1, error) {
	var d DatasetV1
	f, dec, br, _, err := openReader(path)
	if err != nil {
		return d, err
	}
	defer f.Close()
	defer dec.Close()

	if err := gob.NewDecoder(br).Decode(&d); err != nil {
		return d, fmt.Errorf("gob decode: %w", err)
	}
	if got := d.ContentDigest(); got != d.Header.Digest {
		return d, fmt.Errorf("%w: header=%s content=%s", ErrDigestMismatch, d.Header.Digest, got)
	}
	return d, nil
}

// LoadRegistry reads a dataset snapshot and rebuilds its registry.
func LoadRegistry(path string) (*registry.Registry, error) {
	d, err := ReadDataset(path)
	if err != nil {
		return nil, err
	}
	return d.Registry()
}
