package blogsync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// StartRun records the beginning of a sync attempt.
func (s *Store) StartRun(ctx context.Context, id string, started time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sync_runs (id, started_at) VALUES (?, ?)`), id, formatTime(started))
	return err
}

// FinishRun stores the outcome of a sync attempt. A nil runErr marks success.
func (s *Store) FinishRun(ctx context.Context, id string, finished time.Time, res SyncResult, runErr error) error {
	var stage, msg string
	if runErr != nil {
		stage = string(StageOf(runErr))
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE sync_runs SET finished_at = ?, synced = ?, deleted = ?, stage = ?, error = ? WHERE id = ?`),
		formatTime(finished), res.Synced, res.Deleted, stage, msg, id)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, started_at, finished_at, synced, deleted, stage, error FROM sync_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var (
			r        SyncRun
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Synced, &r.Deleted, &r.Stage, &r.Error); err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("decode started_at of run %s: %w", r.ID, err)
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, fmt.Errorf("decode finished_at of run %s: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneRuns deletes runs started more than retentionDays ago.
func (s *Store) PruneRuns(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sync_runs WHERE started_at < ?`), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune sync_runs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// StartPruneScheduler periodically prunes old runs. Returns a stop function.
func (s *Store) StartPruneScheduler(retentionDays int, interval time.Duration, logger *log.Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if n, err := s.PruneRuns(context.Background(), retentionDays); err != nil {
					logger.Printf("prune error: %v", err)
				} else if n > 0 {
					logger.Printf("pruned %d sync runs", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
