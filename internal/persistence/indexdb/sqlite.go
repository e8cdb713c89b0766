package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"gridworld.ai/internal/dataset/registry"
	"gridworld.ai/internal/persistence/episodes"
	"gridworld.ai/internal/persistence/snapshot"
	"gridworld.ai/internal/sim/tasks"
	"gridworld.ai/internal/sim/tuning"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index over the dataset and recorded
// episodes. Snapshot and episode files stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEpisode  atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqEpisode reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	episode  episodes.Summary
	snapshot snapshotRow
}

type snapshotRow struct {
	Path   string
	Header snapshot.Header
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS structures (
			structure_id TEXT PRIMARY KEY,
			sessions INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			structure_id TEXT NOT NULL REFERENCES structures(structure_id) ON DELETE CASCADE,
			session_index INTEGER NOT NULL,
			turns INTEGER NOT NULL,
			missing_steps INTEGER NOT NULL,
			merged INTEGER NOT NULL,
			truncated INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_structure ON sessions(structure_id, session_index);`,
		`CREATE TABLE IF NOT EXISTS subtasks (
			structure_id TEXT NOT NULL,
			session_index INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			start_size INTEGER NOT NULL,
			target_size INTEGER NOT NULL,
			dialog TEXT NOT NULL,
			PRIMARY KEY (structure_id, session_index, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS session_errors (
			session_id TEXT PRIMARY KEY,
			error TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dataset_snapshots (
			path TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			digest TEXT NOT NULL,
			structures INTEGER NOT NULL,
			sessions INTEGER NOT NULL,
			subtasks INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			episode_id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			created_at TEXT NOT NULL,
			structure_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			session_index INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			full_target INTEGER NOT NULL,
			target_size INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			total_reward REAL NOT NULL,
			best INTEGER NOT NULL,
			complete INTEGER NOT NULL,
			truncated INTEGER NOT NULL,
			final_digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_structure ON episodes(structure_id, turn);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordEpisode queues an episode summary. It never blocks: when the writer
// falls behind the row is dropped and counted.
func (s *SQLiteIndex) RecordEpisode(sum episodes.Summary) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEpisode, episode: sum}:
	default:
		s.dropEpisode.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{Path: path, Header: h}}:
	default:
		s.dropSnapshot.Add(1)
	}
}

type QueueStats struct {
	QueueDepth        int
	QueueCapacity     int
	DropEpisodeTotal  uint64
	DropSnapshotTotal uint64
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropEpisodeTotal:  s.dropEpisode.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// UpsertTuning stores the tuning values actually applied, as canonical JSON
// with its digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES('tuning',?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	return digest, tx.Commit()
}

// ReplaceDataset swaps the indexed dataset for the contents of reg in one
// transaction. rep supplies segmentation diagnostics and failed sessions.
func (s *SQLiteIndex) ReplaceDataset(reg *registry.Registry, rep registry.Report) error {
	if s == nil {
		return nil
	}
	diag := make(map[string]registry.SessionInfo, len(rep.Added))
	for _, a := range rep.Added {
		diag[a.Ref.SessionID] = a
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM subtasks`,
		`DELETE FROM sessions`,
		`DELETE FROM structures`,
		`DELETE FROM session_errors`,
	} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}

	insStructure, err := tx.Prepare(`INSERT INTO structures(structure_id,sessions) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer insStructure.Close()
	insSession, err := tx.Prepare(`INSERT INTO sessions(session_id,structure_id,session_index,turns,missing_steps,merged,truncated) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insSession.Close()
	insSubtask, err := tx.Prepare(`INSERT INTO subtasks(structure_id,session_index,turn,session_id,start_size,target_size,dialog) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insSubtask.Close()

	for _, id := range reg.StructureIDs() {
		sessions := reg.Sessions(id)
		if _, err := insStructure.Exec(id, len(sessions)); err != nil {
			return err
		}
		for i, sess := range sessions {
			d := diag[sess.SessionID].Segmentation
			if _, err := insSession.Exec(sess.SessionID, id, i, sess.Tasks.Len(), d.MissingSteps, d.Merged, d.Truncated); err != nil {
				return fmt.Errorf("session %s: %w", sess.SessionID, err)
			}
		}
	}
	var subErr error
	reg.Each(func(ref registry.Ref, st *tasks.Subtask) bool {
		_, subErr = insSubtask.Exec(ref.StructureID, ref.Index, st.Turn, ref.SessionID, len(st.StartingGrid), st.TargetSize, st.Dialog())
		return subErr == nil
	})
	if subErr != nil {
		return subErr
	}
	for _, f := range rep.Failed {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO session_errors(session_id,error) VALUES(?,?)`, f.SessionID, f.Err.Error()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEpisode, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(episode_id,path,created_at,structure_id,session_id,session_index,turn,full_target,target_size,steps,total_reward,best,complete,truncated,final_digest) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO dataset_snapshots(path,created_at,digest,structures,sessions,subtasks) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertEpisode != nil {
			_ = insertEpisode.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEpisode:
			e := r.episode
			if insertEpisode == nil {
				continue
			}
			if _, err := tx.Stmt(insertEpisode).Exec(
				e.EpisodeID,
				e.Path,
				e.CreatedAt,
				e.StructureID,
				e.SessionID,
				e.SessionIndex,
				e.Turn,
				boolInt(e.Full),
				e.TargetSize,
				e.Steps,
				e.Return,
				e.Best,
				boolInt(e.Complete),
				boolInt(e.Truncated),
				e.FinalDigest,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				sn.Path,
				sn.Header.CreatedAt,
				sn.Header.Digest,
				sn.Header.Structures,
				sn.Header.Sessions,
				sn.Header.Subtasks,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		// Commit when the queue drains too, so short runs are visible promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
