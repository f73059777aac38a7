package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DequeueNext promotes the head of the pending sequence to current. It
// returns nil without changing anything when a job is already current or
// nothing is pending.
func (s *Store) DequeueNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var promoted *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		promoted = nil
		current, err := currentJobID(ctx, tx)
		if err != nil {
			return err
		}
		if current != "" {
			return nil
		}
		var id string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE status = ? ORDER BY seq LIMIT 1`, StatusQueued,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		now := formatTime(time.Now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, started_at = ?, last_heartbeat = ?, updated_at = ?, error_message = NULL WHERE id = ?`,
			StatusActive, now, now, now, id,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE queue_state SET current_job_id = ? WHERE singleton = 1`, id); err != nil {
			return err
		}
		promoted, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue next: %w", err)
	}
	return promoted, nil
}

// FinishCurrent clears current only if it still holds id, recording the
// terminal status. It reports false when another actor already took the job
// out of current.
func (s *Store) FinishCurrent(ctx context.Context, id string, status Status, message string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finish current: %s is not a terminal status", status)
	}
	ctx = ensureContext(ctx)
	var finished bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		finished, err = finishCurrentTx(ctx, tx, id, status, message)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("finish current: %w", err)
	}
	return finished, nil
}

func finishCurrentTx(ctx context.Context, tx *sql.Tx, id string, status Status, message string) (bool, error) {
	current, err := currentJobID(ctx, tx)
	if err != nil {
		return false, err
	}
	if current == "" || current != id {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queue_state SET current_job_id = NULL WHERE singleton = 1`); err != nil {
		return false, err
	}
	if err := markTerminal(ctx, tx, id, status, message); err != nil {
		return false, err
	}
	return true, nil
}

func markTerminal(ctx context.Context, tx *sql.Tx, id string, status Status, message string) error {
	now := formatTime(time.Now())
	_, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), now, now, id,
	)
	return err
}

// ClearCurrent unconditionally empties current. The job it held, if any, is
// marked as errored with the given reason and returned.
func (s *Store) ClearCurrent(ctx context.Context, reason string) (*Job, error) {
	ctx = ensureContext(ctx)
	if reason == "" {
		reason = ReasonCleared
	}
	var cleared *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cleared = nil
		current, err := currentJobID(ctx, tx)
		if err != nil || current == "" {
			return err
		}
		if _, err := finishCurrentTx(ctx, tx, current, StatusError, reason); err != nil {
			return err
		}
		cleared, err = getJob(ctx, tx, current)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("clear current: %w", err)
	}
	return cleared, nil
}

// RemoveFromPending cancels a job that has not started. Remaining jobs keep
// their relative order.
func (s *Store) RemoveFromPending(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = removePendingTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("remove from pending: %w", err)
	}
	return removed, nil
}

func removePendingTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	now := formatTime(time.Now())
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCancelled, now, now, id, StatusQueued,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Cancel resolves a cancellation target in one transaction: the current job
// is cleared and marked cancelled, a pending job is removed, anything else is
// reported as not found. The affected job is returned for the first two.
func (s *Store) Cancel(ctx context.Context, id string) (CancelOutcome, *Job, error) {
	ctx = ensureContext(ctx)
	outcome := CancelNotFound
	var job *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		outcome, job = CancelNotFound, nil
		finished, err := finishCurrentTx(ctx, tx, id, StatusCancelled, "")
		if err != nil {
			return err
		}
		if finished {
			outcome = CancelCurrent
		} else {
			removed, err := removePendingTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if !removed {
				return nil
			}
			outcome = CancelPending
		}
		job, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return CancelNotFound, nil, fmt.Errorf("cancel: %w", err)
	}
	return outcome, job, nil
}

// RecoverCurrent handles a current job left behind by a previous daemon run.
// The job goes back to the head of the pending sequence while its attempts
// stay below maxRecoveries; otherwise it is marked as errored.
func (s *Store) RecoverCurrent(ctx context.Context, maxRecoveries int) (*Recovery, error) {
	ctx = ensureContext(ctx)
	var recovery *Recovery
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		recovery = nil
		current, err := currentJobID(ctx, tx)
		if err != nil || current == "" {
			return err
		}
		job, err := getJob(ctx, tx, current)
		if err != nil {
			return err
		}
		if job == nil {
			_, err = tx.ExecContext(ctx, `UPDATE queue_state SET current_job_id = NULL WHERE singleton = 1`)
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE queue_state SET current_job_id = NULL WHERE singleton = 1`); err != nil {
			return err
		}
		requeue := job.Attempts < maxRecoveries
		if requeue {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, attempts = attempts + 1, started_at = NULL, last_heartbeat = NULL, updated_at = ?,
                 seq = (SELECT COALESCE(MIN(seq), 1) - 1 FROM jobs) WHERE id = ?`,
				StatusQueued, formatTime(time.Now()), current,
			); err != nil {
				return err
			}
		} else if err := markTerminal(ctx, tx, current, StatusError, ReasonInterrupted); err != nil {
			return err
		}
		job, err = getJob(ctx, tx, current)
		if err != nil {
			return err
		}
		recovery = &Recovery{Job: job, Requeued: requeue}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recover current: %w", err)
	}
	return recovery, nil
}
