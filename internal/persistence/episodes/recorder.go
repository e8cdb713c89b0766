package episodes

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	persistlog "gridworld.ai/internal/persistence/log"
	"gridworld.ai/internal/sim/env"
	"gridworld.ai/internal/sim/tuning"
)

// Indexer receives a summary of every episode written to disk.
type Indexer interface {
	RecordEpisode(s Summary)
}

type Option func(*Recorder)

func WithIndexer(idx Indexer) Option { return func(r *Recorder) { r.idx = idx } }
func WithLogger(l *log.Logger) Option { return func(r *Recorder) { r.logger = l } }
func WithIDs(next func() string) Option { return func(r *Recorder) { r.newID = next } }
func WithClock(now func() time.Time) Option { return func(r *Recorder) { r.now = now } }

// Recorder buffers an episode in memory and writes it as one JSONL+zstd file
// when the episode ends. Episodes with no steps are not written.
type Recorder struct {
	dir    string
	cfg    tuning.Env
	idx    Indexer
	logger *log.Logger
	newID  func() string
	now    func() time.Time

	mu      sync.Mutex
	info    env.EpisodeInfo
	steps   []Step
	open    bool
	written []Summary
}

func NewRecorder(dir string, cfg tuning.Env, opts ...Option) *Recorder {
	r := &Recorder{
		dir:   dir,
		cfg:   cfg,
		newID: newEpisodeID,
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func newEpisodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// FileName is the on-disk name for an episode id.
func FileName(id string) string { return "ep_" + id + ".jsonl.zst" }

func (r *Recorder) BeginEpisode(info env.EpisodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = info
	r.steps = r.steps[:0]
	r.open = true
}

func (r *Recorder) RecordStep(res env.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return
	}
	r.steps = append(r.steps, stepFromResult(res))
}

// EndEpisode writes the buffered episode. The buffer is dropped even when the
// write fails.
func (r *Recorder) EndEpisode() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return nil
	}
	r.open = false
	if len(r.steps) == 0 {
		return nil
	}
	steps := r.steps
	r.steps = nil

	h := Header{
		Version:      Version,
		Kind:         Kind,
		CreatedAt:    r.now().UTC().Format(time.RFC3339Nano),
		StructureID:  r.info.Ref.StructureID,
		SessionID:    r.info.Ref.SessionID,
		SessionIndex: r.info.Ref.Index,
		Turn:         r.info.Turn,
		Full:         r.info.Full,
		StartDigest:  r.info.StartDigest,
		TargetDigest: r.info.TargetDigest,
		TargetSize:   r.info.TargetSize,
		Env:          r.cfg,
	}
	path, err := r.write(&h, steps)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("episode %s turn=%d: dropped %d steps: %v", h.StructureID, h.Turn, len(steps), err)
		}
		return fmt.Errorf("write episode: %w", err)
	}
	sum := summarize(path, h, steps)
	r.written = append(r.written, sum)
	if r.idx != nil {
		r.idx.RecordEpisode(sum)
	}
	if r.logger != nil {
		r.logger.Printf("episode %s: %s turn=%d steps=%d return=%.3f complete=%v",
			h.EpisodeID, h.StructureID, h.Turn, sum.Steps, sum.Return, sum.Complete)
	}
	return nil
}

const maxIDAttempts = 8

func (r *Recorder) write(h *Header, steps []Step) (string, error) {
	var (
		w   *persistlog.JSONLZstdWriter
		err error
	)
	for i := 0; i < maxIDAttempts; i++ {
		h.EpisodeID = r.newID()
		w, err = persistlog.Create(filepath.Join(r.dir, FileName(h.EpisodeID)))
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	if err != nil {
		return "", err
	}
	// A partial file would fail ReadFile later; drop it.
	discard := func(err error) (string, error) {
		_ = w.Close()
		_ = os.Remove(w.Path())
		return "", err
	}
	if err := w.Write(h); err != nil {
		return discard(err)
	}
	for _, s := range steps {
		if err := w.Write(s); err != nil {
			return discard(err)
		}
	}
	if err := w.Close(); err != nil {
		_ = os.Remove(w.Path())
		return "", err
	}
	return w.Path(), nil
}

// Written lists the episodes this recorder has written, oldest first.
func (r *Recorder) Written() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Summary(nil), r.written...)
}
