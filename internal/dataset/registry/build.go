package registry

import (
	"fmt"
	"log"
	"path/filepath"

	"gridworld.ai/internal/dataset/ingest"
	"gridworld.ai/internal/dataset/segment"
	"gridworld.ai/internal/sim/tasks"
	"gridworld.ai/internal/sim/tuning"
)

type BuildConfig struct {
	RawDir     string
	IndexFile  string
	BuilderDir string
	Segment    segment.Options
}

// ConfigFromTuning derives a build config from the dataset section.
func ConfigFromTuning(d tuning.Dataset) (BuildConfig, error) {
	pal, err := d.BuildPalette()
	if err != nil {
		return BuildConfig{}, err
	}
	return BuildConfig{
		RawDir:     d.RawDir,
		IndexFile:  d.IndexFile,
		BuilderDir: d.BuilderDir,
		Segment: segment.Options{
			Palette:     pal,
			GroundLevel: d.GroundLevel,
			FixCoords:   d.FixSnapshotCoords,
		},
	}, nil
}

// SessionError records why one session was left out.
type SessionError struct {
	SessionID string
	Err       error
}

func (e SessionError) Error() string { return fmt.Sprintf("session %s: %v", e.SessionID, e.Err) }
func (e SessionError) Unwrap() error { return e.Err }

// SessionInfo describes one session that made it into the registry.
type SessionInfo struct {
	Ref          Ref
	Segmentation segment.Result
}

type Report struct {
	Sessions int
	// NoBuilderData counts sessions without a builder-data directory.
	NoBuilderData int
	// Empty counts sessions with no non-empty builder action after merging.
	Empty  int
	Added  []SessionInfo
	Failed []SessionError
}

// Build ingests the raw dataset and fills a registry. One malformed session
// never aborts the batch: its failure lands in Report.Failed.
func Build(cfg BuildConfig, logger *log.Logger) (*Registry, Report, error) {
	var rep Report
	sessions, err := ingest.ReadIndexFile(filepath.Join(cfg.RawDir, cfg.IndexFile))
	if err != nil {
		return nil, rep, fmt.Errorf("read session index: %w", err)
	}
	store, err := ingest.NewStepStore(filepath.Join(cfg.RawDir, cfg.BuilderDir))
	if err != nil {
		return nil, rep, err
	}
	reg := New()
	for _, s := range sessions {
		rep.Sessions++
		if !store.HasSession(s.ID) {
			rep.NoBuilderData++
			continue
		}
		info, err := addSession(reg, s, store, cfg.Segment)
		if err != nil {
			se := SessionError{SessionID: s.ID, Err: err}
			rep.Failed = append(rep.Failed, se)
			if logger != nil {
				logger.Printf("skip %v", se)
			}
			continue
		}
		if info == nil {
			rep.Empty++
			continue
		}
		rep.Added = append(rep.Added, *info)
	}
	return reg, rep, nil
}

func addSession(reg *Registry, s ingest.Session, loader segment.StepLoader, opts segment.Options) (*SessionInfo, error) {
	if len(s.RowErrors) > 0 {
		return nil, s.RowErrors[0]
	}
	structureID, err := s.StructureID()
	if err != nil {
		return nil, err
	}
	res, err := segment.Segment(s, loader, opts)
	if err != nil {
		return nil, err
	}
	if res.Len() == 0 {
		return nil, nil
	}
	seq, err := tasks.New(res.UtteranceGroups, res.BlockLists)
	if err != nil {
		return nil, err
	}
	if err := reg.AddSession(structureID, s.ID, seq); err != nil {
		return nil, err
	}
	sessions := reg.Sessions(structureID)
	return &SessionInfo{
		Ref:          Ref{StructureID: structureID, Index: len(sessions) - 1, SessionID: s.ID},
		Segmentation: res,
	}, nil
}
