package indexdb

import (
	"context"
	"database/sql"
	"errors"

	"gridworld.ai/internal/persistence/episodes"
)

type Counts struct {
	Structures    int
	Sessions      int
	Subtasks      int
	SessionErrors int
	Snapshots     int
	Episodes      int
}

func (s *SQLiteIndex) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"structures", &c.Structures},
		{"sessions", &c.Sessions},
		{"subtasks", &c.Subtasks},
		{"session_errors", &c.SessionErrors},
		{"dataset_snapshots", &c.Snapshots},
		{"episodes", &c.Episodes},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return c, err
		}
	}
	return c, nil
}

// TuningDigest returns the digest of the stored tuning, or "" if none.
func (s *SQLiteIndex) TuningDigest(ctx context.Context) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM config WHERE name='tuning'`).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

// Episodes lists indexed episodes, newest first. An empty structureID lists
// all of them; limit <= 0 means no limit.
func (s *SQLiteIndex) Episodes(ctx context.Context, structureID string, limit int) ([]episodes.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT episode_id,path,created_at,structure_id,session_id,session_index,turn,full_target,target_size,steps,total_reward,best,complete,truncated,final_digest
		FROM episodes WHERE (?='' OR structure_id=?) ORDER BY created_at DESC, episode_id LIMIT ?`, structureID, structureID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []episodes.Summary
	for rows.Next() {
		var e episodes.Summary
		var full, complete, truncated int
		if err := rows.Scan(&e.EpisodeID, &e.Path, &e.CreatedAt, &e.StructureID, &e.SessionID, &e.SessionIndex, &e.Turn, &full,
			&e.TargetSize, &e.Steps, &e.Return, &e.Best, &complete, &truncated, &e.FinalDigest); err != nil {
			return nil, err
		}
		e.Full, e.Complete, e.Truncated = full != 0, complete != 0, truncated != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// FailedSessions maps session id to the reason it was left out of the dataset.
func (s *SQLiteIndex) FailedSessions(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id,error FROM session_errors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var id, msg string
		if err := rows.Scan(&id, &msg); err != nil {
			return nil, err
		}
		out[id] = msg
	}
	return out, rows.Err()
}
