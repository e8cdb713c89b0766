package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleIndex = `PartitionKey,StepId,structureId,instruction,ClarifyingQuestion,Answer4ClarifyingQuestion
s2,1,C7,place a red block,,
s1,2,C1,,,
s1,1,C1,build a wall,,
s1,3.0,C1,,,"yes, blue"
s1,4,C1,,which color?,
bad,x,C9,,,
`

func TestReadIndex_GroupsAndSorts(t *testing.T) {
	sessions, err := ReadIndex(strings.NewReader(sampleIndex))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("sessions=%d want 3", len(sessions))
	}
	if sessions[0].ID != "bad" || sessions[1].ID != "s1" || sessions[2].ID != "s2" {
		t.Fatalf("order: %s %s %s", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}
	if len(sessions[0].RowErrors) != 1 || !errors.Is(sessions[0].RowErrors[0], ErrBadRow) {
		t.Fatalf("bad session errors: %v", sessions[0].RowErrors)
	}
	s1 := sessions[1]
	for i, want := range []int{1, 2, 3, 4} {
		if s1.Rows[i].StepID != want {
			t.Fatalf("row %d step=%d want %d", i, s1.Rows[i].StepID, want)
		}
	}
	if s1.Rows[0].Instruction != "build a wall" || !s1.Rows[0].IsArchitect() {
		t.Fatalf("row 0: %+v", s1.Rows[0])
	}
	if s1.Rows[2].Answer != "yes, blue" {
		t.Fatalf("answer: %q", s1.Rows[2].Answer)
	}
	if s1.Rows[3].ClarifyingQuestion != "which color?" || s1.Rows[3].IsArchitect() {
		t.Fatalf("row 3: %+v", s1.Rows[3])
	}
	id, err := s1.StructureID()
	if err != nil || id != "C1" {
		t.Fatalf("structure id: %q %v", id, err)
	}
}

func TestReadIndex_MissingColumn(t *testing.T) {
	_, err := ReadIndex(strings.NewReader("PartitionKey,StepId\ns1,1\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestSessionStructureID_Mismatch(t *testing.T) {
	s := Session{ID: "s", Rows: []SessionRow{{StepID: 1, StructureID: "A"}, {StepID: 2, StructureID: "B"}}}
	if _, err := s.StructureID(); !errors.Is(err, ErrStructureMismatch) {
		t.Fatalf("expected ErrStructureMismatch, got %v", err)
	}
}

func TestStepStore_LoadAndValidate(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "s1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	good := `{"worldEndingState":{"blocks":[[0,64,0,57],[1,64,0,50]]},"extra":1}`
	if err := os.WriteFile(filepath.Join(root, "s1", "step-2"), []byte(good), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	bad := `{"worldEndingState":{"blocks":[[0,64,0]]}}`
	if err := os.WriteFile(filepath.Join(root, "s1", "step-4"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	st, err := NewStepStore(root)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !st.HasSession("s1") || st.HasSession("s2") {
		t.Fatalf("HasSession wrong")
	}
	snap, err := st.Load("s1", 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Blocks) != 2 || snap.Blocks[0] != (RawBlock{X: 0, Y: 64, Z: 0, ID: 57}) {
		t.Fatalf("blocks: %+v", snap.Blocks)
	}
	if _, err := st.Load("s1", 4); !errors.Is(err, ErrBadSnapshot) {
		t.Fatalf("expected ErrBadSnapshot, got %v", err)
	}
	if _, err := st.Load("s1", 6); !IsMissing(err) {
		t.Fatalf("expected missing, got %v", err)
	}
}
