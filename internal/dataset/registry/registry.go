package registry

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gridworld.ai/internal/sim/tasks"
)

var (
	ErrEmpty    = errors.New("registry is empty")
	ErrNotFound = errors.New("session not found")
)

// Session is one recorded session's subtask sequence.
type Session struct {
	SessionID string
	Tasks     *tasks.Subtasks
}

// Ref locates a session inside the registry.
type Ref struct {
	StructureID string
	Index       int
	SessionID   string
}

// Registry groups session sequences by target structure. It is built once and
// read-only afterwards; concurrent readers need no locking.
type Registry struct {
	byStructure map[string][]Session
	ids         []string // sorted
}

func New() *Registry {
	return &Registry{byStructure: map[string][]Session{}}
}

// AddSession records a session under its structure.
func (r *Registry) AddSession(structureID, sessionID string, seq *tasks.Subtasks) error {
	if seq == nil || seq.Len() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, tasks.ErrEmptySession)
	}
	if _, ok := r.byStructure[structureID]; !ok {
		i := sort.SearchStrings(r.ids, structureID)
		r.ids = append(r.ids, "")
		copy(r.ids[i+1:], r.ids[i:])
		r.ids[i] = structureID
	}
	r.byStructure[structureID] = append(r.byStructure[structureID], Session{SessionID: sessionID, Tasks: seq})
	return nil
}

// Sample draws a structure uniformly, then one of its sessions uniformly, so
// structures with many recordings do not dominate.
func (r *Registry) Sample(rng *rand.Rand) (Ref, *tasks.Subtasks, error) {
	if len(r.ids) == 0 {
		return Ref{}, nil, ErrEmpty
	}
	id := r.ids[rng.Intn(len(r.ids))]
	sessions := r.byStructure[id]
	i := rng.Intn(len(sessions))
	return Ref{StructureID: id, Index: i, SessionID: sessions[i].SessionID}, sessions[i].Tasks, nil
}

// Lookup returns the session at ref.
func (r *Registry) Lookup(structureID string, index int) (Session, error) {
	sessions := r.byStructure[structureID]
	if index < 0 || index >= len(sessions) {
		return Session{}, fmt.Errorf("%w: %s[%d]", ErrNotFound, structureID, index)
	}
	return sessions[index], nil
}

// StructureIDs lists structure ids in sorted order.
func (r *Registry) StructureIDs() []string { return append([]string(nil), r.ids...) }

// Sessions returns the sessions recorded for a structure.
func (r *Registry) Sessions(structureID string) []Session { return r.byStructure[structureID] }

func (r *Registry) NumStructures() int { return len(r.ids) }

func (r *Registry) NumSessions() int {
	n := 0
	for _, s := range r.byStructure {
		n += len(s)
	}
	return n
}

// TotalSubtaskCount sums turns over every session of every structure.
func (r *Registry) TotalSubtaskCount() int {
	n := 0
	for _, sessions := range r.byStructure {
		for _, s := range sessions {
			n += s.Tasks.Len()
		}
	}
	return n
}

// Each visits every subtask in structure, session, turn order. Returning
// false stops the walk.
func (r *Registry) Each(fn func(ref Ref, st *tasks.Subtask) bool) {
	for _, id := range r.ids {
		for i, s := range r.byStructure[id] {
			ref := Ref{StructureID: id, Index: i, SessionID: s.SessionID}
			for turn := 0; turn < s.Tasks.Len(); turn++ {
				st, err := s.Tasks.Turn(turn, false)
				if err != nil {
					continue
				}
				if !fn(ref, st) {
					return
				}
			}
		}
	}
}

// Demo holds the built-in staircase session under structure "staircase".
func Demo() *Registry {
	r := New()
	if err := r.AddSession("staircase", "demo", tasks.Staircase()); err != nil {
		panic(err)
	}
	return r
}
