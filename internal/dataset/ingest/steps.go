package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/step.schema.json
var stepSchemaJSON []byte

const stepSchemaURL = "step.schema.json"

var ErrBadSnapshot = errors.New("bad step snapshot")

// RawBlock is a block as recorded in a step snapshot, in world coordinates.
type RawBlock struct {
	X, Y, Z int
	ID      int
}

type StepSnapshot struct {
	SessionID string
	StepID    int
	Blocks    []RawBlock
}

type stepFile struct {
	WorldEndingState struct {
		Blocks [][4]int `json:"blocks"`
	} `json:"worldEndingState"`
}

// StepStore reads per-step world snapshots laid out as
// <root>/<session>/step-<n>.
type StepStore struct {
	root   string
	schema *jsonschema.Schema
}

func NewStepStore(root string) (*StepStore, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(stepSchemaURL, bytes.NewReader(stepSchemaJSON)); err != nil {
		return nil, fmt.Errorf("step schema: %w", err)
	}
	sch, err := c.Compile(stepSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("step schema: %w", err)
	}
	return &StepStore{root: root, schema: sch}, nil
}

func (s *StepStore) Root() string { return s.root }

// HasSession reports whether any builder data was recorded for the session.
func (s *StepStore) HasSession(sessionID string) bool {
	fi, err := os.Stat(filepath.Join(s.root, sessionID))
	return err == nil && fi.IsDir()
}

func (s *StepStore) StepPath(sessionID string, step int) string {
	return filepath.Join(s.root, sessionID, "step-"+strconv.Itoa(step))
}

// Load reads and validates one step snapshot. A missing file returns an error
// satisfying errors.Is(err, fs.ErrNotExist).
func (s *StepStore) Load(sessionID string, step int) (StepSnapshot, error) {
	snap := StepSnapshot{SessionID: sessionID, StepID: step}
	b, err := os.ReadFile(s.StepPath(sessionID, step))
	if err != nil {
		return snap, err
	}
	blocks, err := s.Decode(b)
	if err != nil {
		return snap, fmt.Errorf("%s step-%d: %w", sessionID, step, err)
	}
	snap.Blocks = blocks
	return snap, nil
}

// Decode validates raw step JSON against the step schema and returns its
// ending block list.
func (s *StepStore) Decode(b []byte) ([]RawBlock, error) {
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	var sf stepFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	out := make([]RawBlock, 0, len(sf.WorldEndingState.Blocks))
	for _, blk := range sf.WorldEndingState.Blocks {
		out = append(out, RawBlock{X: blk[0], Y: blk[1], Z: blk[2], ID: blk[3]})
	}
	return out, nil
}

// IsMissing reports whether err means the snapshot file does not exist.
func IsMissing(err error) bool { return errors.Is(err, fs.ErrNotExist) }
