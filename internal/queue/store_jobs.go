package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enqueue appends a job to the tail of the pending sequence and returns it
// with its assigned identifier.
func (s *Store) Enqueue(ctx context.Context, sourceURL, format string) (*Job, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("enqueue: source url is empty")
	}
	id := uuid.NewString()
	now := formatTime(time.Now())

	var job *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, seq, source_url, format, status, created_at, updated_at)
             VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM jobs), ?, ?, ?, ?, ?)`,
			id, sourceURL, format, StatusQueued, now, now,
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		var err error
		job, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return job, nil
}

// Get fetches a job by identifier. It returns nil when the job does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	job, err := getJob(ensureContext(ctx), s.db, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// PeekCurrent returns the active job or nil.
func (s *Store) PeekCurrent(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	id, err := currentJobID(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("peek current: %w", err)
	}
	if id == "" {
		return nil, nil
	}
	return s.Get(ctx, id)
}

// IsCurrent reports whether id is the active job.
func (s *Store) IsCurrent(ctx context.Context, id string) (bool, error) {
	current, err := currentJobID(ensureContext(ctx), s.db)
	if err != nil {
		return false, fmt.Errorf("check current: %w", err)
	}
	return current != "" && current == id, nil
}

// Pending returns queued jobs in execution order.
func (s *Store) Pending(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY seq`, StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return collectJobs(rows)
}

// Snapshot reads the current job and the pending sequence in one consistent view.
func (s *Store) Snapshot(ctx context.Context) (State, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state := State{Pending: []*Job{}}
	id, err := currentJobID(ctx, tx)
	if err != nil {
		return State{}, fmt.Errorf("snapshot current: %w", err)
	}
	if id != "" {
		if state.Current, err = getJob(ctx, tx, id); err != nil {
			return State{}, fmt.Errorf("snapshot current: %w", err)
		}
	}
	rows, err := tx.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY seq`, StatusQueued)
	if err != nil {
		return State{}, fmt.Errorf("snapshot pending: %w", err)
	}
	pending, err := collectJobs(rows)
	if err != nil {
		return State{}, fmt.Errorf("snapshot pending: %w", err)
	}
	state.Pending = pending
	return state, nil
}

// List returns the most recently created jobs, newest first. A non-positive
// limit returns every job.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// SetTitle records the display title resolved by the metadata probe.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET title = ?, updated_at = ? WHERE id = ?`,
		nullableString(title), formatTime(time.Now()), id,
	); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

// Heartbeat stamps liveness for an active job.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusActive,
	); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
