package workflow

import (
	"context"
	"time"

	"ytarchiver/internal/events"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/queue"
)

const workerExitSlack = 10 * time.Second

// CancelResult reports what a cancellation did.
type CancelResult struct {
	Found   bool
	Outcome queue.CancelOutcome
	Job     *queue.Job
	Message string
}

// Cancel stops the current job or removes a pending one. An unknown id is
// reported, not treated as an error.
func (m *Manager) Cancel(ctx context.Context, id string) (CancelResult, error) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	outcome, job, err := m.store.Cancel(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	logger := m.jobLogger(ctx, id)
	switch outcome {
	case queue.CancelPending:
		logger.Info("pending job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.String("stage", "pending"),
		)
		m.publish(ctx, events.TypeJobCancelled, job, 0)
		return CancelResult{Found: true, Outcome: outcome, Job: job, Message: "Removed from queue"}, nil
	case queue.CancelCurrent:
		m.stopWorker(ctx, id)
		m.removeArtifacts(ctx, id)
		if _, err := m.progress.Clear(ctx, id); err != nil {
			logger.Warn("progress reset after cancel failed", logging.Error(err))
		}
		logger.Info("active job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.String("stage", "active"),
		)
		m.publish(ctx, events.TypeJobCancelled, job, 0)
		if _, err := m.dispatchLocked(ctx); err != nil {
			logger.Warn("dispatch after cancel failed; reconciler will retry", logging.Error(err))
		}
		return CancelResult{Found: true, Outcome: outcome, Job: job, Message: "Cancelled active job"}, nil
	default:
		return CancelResult{Found: false, Outcome: outcome, Message: "Job not found"}, nil
	}
}

// stopWorker terminates the worker's subprocess group, then the worker
// itself, and waits for the goroutine to exit.
func (m *Manager) stopWorker(ctx context.Context, jobID string) {
	t := m.lookupTask(jobID)
	if t == nil {
		return
	}
	logger := m.jobLogger(ctx, jobID)
	if pgid := int(t.pgid.Load()); pgid > 0 {
		if err := m.killer.Terminate(pgid, m.grace); err != nil {
			logging.WarnWithContext(logger, "failed to terminate yt-dlp process group", "terminate_failed",
				logging.Int("pgid", pgid),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "kill the process group manually"),
			)
		}
	}
	t.cancel()
	timer := time.NewTimer(m.grace + workerExitSlack)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		logging.WarnWithContext(logger, "worker did not exit after cancellation", "worker_exit_timeout",
			logging.String(logging.FieldImpact, "a stale worker may still be shutting down"),
		)
	}
}
