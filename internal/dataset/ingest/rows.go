package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Session index column names.
const (
	ColSession     = "PartitionKey"
	ColStep        = "StepId"
	ColStructure   = "structureId"
	ColInstruction = "instruction"
	ColQuestion    = "ClarifyingQuestion"
	ColAnswer      = "Answer4ClarifyingQuestion"
)

var (
	ErrStructureMismatch = errors.New("session rows disagree on structure id")
	ErrMissingColumn     = errors.New("missing column")
	ErrBadRow            = errors.New("bad row")
)

// SessionRow is one conversational turn. Odd steps are architect turns, even
// steps builder turns. Empty text fields are absent.
type SessionRow struct {
	SessionID   string
	StepID      int
	StructureID string

	Instruction        string
	ClarifyingQuestion string
	Answer             string
}

func (r SessionRow) IsArchitect() bool { return r.StepID%2 != 0 }

type Session struct {
	ID   string
	Rows []SessionRow
	// RowErrors holds rows that could not be parsed; a session with any is rejected.
	RowErrors []error
}

// StructureID returns the structure every row agrees on.
func (s Session) StructureID() (string, error) {
	if len(s.Rows) == 0 {
		return "", fmt.Errorf("session %s: no rows", s.ID)
	}
	id := s.Rows[0].StructureID
	for _, r := range s.Rows[1:] {
		if r.StructureID != id {
			return "", fmt.Errorf("session %s: %w: %q vs %q (step %d)", s.ID, ErrStructureMismatch, id, r.StructureID, r.StepID)
		}
	}
	return id, nil
}

// ReadIndexFile reads the session index CSV at path.
func ReadIndexFile(path string) ([]Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadIndex(f)
}

// ReadIndex groups index rows by session; sessions come back sorted by id and
// each session's rows sorted by step. Unparseable rows are attached to their
// session rather than failing the whole read.
func ReadIndex(r io.Reader) ([]Session, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range []string{ColSession, ColStep, ColStructure} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	bySession := map[string]*Session{}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id := strings.TrimSpace(get(rec, ColSession))
		if id == "" {
			continue
		}
		s := bySession[id]
		if s == nil {
			s = &Session{ID: id}
			bySession[id] = s
		}
		step, err := parseStep(get(rec, ColStep))
		if err != nil {
			s.RowErrors = append(s.RowErrors, fmt.Errorf("%w: line %d: %v", ErrBadRow, line, err))
			continue
		}
		s.Rows = append(s.Rows, SessionRow{
			SessionID:          id,
			StepID:             step,
			StructureID:        strings.TrimSpace(get(rec, ColStructure)),
			Instruction:        textCell(get(rec, ColInstruction)),
			ClarifyingQuestion: textCell(get(rec, ColQuestion)),
			Answer:             textCell(get(rec, ColAnswer)),
		})
	}

	out := make([]Session, 0, len(bySession))
	for _, s := range bySession {
		sort.SliceStable(s.Rows, func(i, j int) bool { return s.Rows[i].StepID < s.Rows[j].StepID })
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// parseStep accepts "3" and "3.0" (exported spreadsheets write both).
func parseStep(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("step id %q", s)
	}
	return int(f), nil
}

// textCell treats empty and NaN cells as absent.
func textCell(s string) string {
	if strings.TrimSpace(s) == "" || s == "NaN" || s == "nan" {
		return ""
	}
	return s
}
