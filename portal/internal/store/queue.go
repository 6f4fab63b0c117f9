package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Job is one code waiting in the batch queue. A claimed job stays invisible
// for the queue's visibility window; if its worker dies the job reappears
// and another worker claims it.
type Job struct {
	ID       string
	RunID    string
	Code     string
	Row      int
	Attempts int
}

// Queue is a visibility-timeout queue of codes over the batch_jobs table.
type Queue struct {
	db         *sql.DB
	visibility time.Duration
}

// NewQueue creates the batch_jobs table when missing. Visibility defaults
// to 5 minutes, longer than any single record.
func (s *Store) NewQueue(ctx context.Context, visibility time.Duration) (*Queue, error) {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS batch_jobs (
			id         TEXT PRIMARY KEY,
			run_id     TEXT NOT NULL,
			code       TEXT NOT NULL,
			row_num    INTEGER NOT NULL DEFAULT 0,
			seq        INTEGER NOT NULL,
			visible_at INTEGER NOT NULL DEFAULT 0,
			attempts   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_batch_jobs_visible ON batch_jobs (run_id, visible_at, seq);
	`)
	if err != nil {
		return nil, fmt.Errorf("store: create queue: %w", err)
	}
	return &Queue{db: s.db, visibility: visibility}, nil
}

// Publish enqueues jobs in order; they are immediately visible.
func (q *Queue) Publish(ctx context.Context, jobs []Job) error {
	return RunTx(ctx, q.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO batch_jobs (id, run_id, code, row_num, seq) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare publish: %w", err)
		}
		defer stmt.Close()
		for i, j := range jobs {
			if _, err := stmt.ExecContext(ctx, j.ID, j.RunID, j.Code, j.Row, i); err != nil {
				return fmt.Errorf("store: publish %s: %w", j.Code, err)
			}
		}
		return nil
	})
}

// Claim atomically takes the first visible job of run, hides it for the
// visibility window and returns it. It returns nil, nil when nothing is
// visible.
func (q *Queue) Claim(ctx context.Context, runID string) (*Job, error) {
	now := time.Now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE batch_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM batch_jobs
			WHERE run_id = ? AND visible_at <= ?
			ORDER BY visible_at, seq
			LIMIT 1
		)
		RETURNING id, run_id, code, row_num, attempts`,
		now.Add(q.visibility).UnixMilli(), runID, now.UnixMilli(),
	)

	var j Job
	err := row.Scan(&j.ID, &j.RunID, &j.Code, &j.Row, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: claim: %w", err)
	}
	return &j, nil
}

// Ack removes a processed job, whatever its outcome.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := Exec(ctx, q.db, `DELETE FROM batch_jobs WHERE id = ?`, id)
	return err
}

// Nack makes a job visible again at once.
func (q *Queue) Nack(ctx context.Context, id string) error {
	_, err := Exec(ctx, q.db, `UPDATE batch_jobs SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Purge drops every job of run.
func (q *Queue) Purge(ctx context.Context, runID string) error {
	_, err := Exec(ctx, q.db, `DELETE FROM batch_jobs WHERE run_id = ?`, runID)
	return err
}

// Len counts the jobs of run, claimed or not.
func (q *Queue) Len(ctx context.Context, runID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_jobs WHERE run_id = ?`, runID,
	).Scan(&n)
	return n, err
}

// Reset drops every job, including those left by interrupted runs.
func (q *Queue) Reset(ctx context.Context) error {
	_, err := Exec(ctx, q.db, `DELETE FROM batch_jobs`)
	return err
}
