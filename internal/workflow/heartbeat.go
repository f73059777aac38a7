package workflow

import (
	"context"
	"errors"
	"time"

	"ytarchiver/internal/events"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
)

// ReconcileResult describes one reconciliation pass.
type ReconcileResult struct {
	Reclaimed  *queue.Job
	Reason     string
	Dispatched *queue.Job
}

func (m *Manager) runReconciler(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.NewComponentLogger(m.logger, "workflow-reconciler")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reconcile(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reconcile pass failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "reconcile_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}

// Reconcile reclaims a current job that no worker owns or whose heartbeat is
// older than the stale threshold, then dispatches. With force the current
// job is reclaimed regardless.
func (m *Manager) Reconcile(ctx context.Context, force bool) (ReconcileResult, error) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	var result ReconcileResult
	current, err := m.store.PeekCurrent(ctx)
	if err != nil {
		return result, err
	}
	if current != nil {
		reason := m.reclaimReason(current, force)
		if reason != "" {
			reclaimed, err := m.reclaim(ctx, current, reason, force)
			if err != nil {
				return result, err
			}
			if reclaimed {
				result.Reclaimed = current
				result.Reason = reason
			}
		}
	}
	dispatched, err := m.dispatchLocked(ctx)
	if err != nil {
		return result, err
	}
	result.Dispatched = dispatched
	return result, nil
}

func (m *Manager) reclaimReason(job *queue.Job, force bool) string {
	if force {
		return queue.ReasonCleared
	}
	if !m.HasLiveWorker(job.ID) {
		return queue.ReasonOrphaned
	}
	if m.staleThreshold > 0 && job.HeartbeatAge(time.Now()) > m.staleThreshold {
		return queue.ReasonStalled
	}
	return ""
}

// reclaim follows the cancellation path but records the job as errored.
func (m *Manager) reclaim(ctx context.Context, job *queue.Job, reason string, force bool) (bool, error) {
	if force {
		cleared, err := m.store.ClearCurrent(ctx, reason)
		if err != nil || cleared == nil {
			return false, err
		}
		job = cleared
	} else {
		won, err := m.store.FinishCurrent(ctx, job.ID, queue.StatusError, reason)
		if err != nil || !won {
			return false, err
		}
		job.Status = queue.StatusError
		job.ErrorMessage = reason
	}

	m.stopWorker(ctx, job.ID)
	m.removeArtifacts(ctx, job.ID)
	title := job.Title
	if title == "" {
		title = job.SourceURL
	}
	if _, err := m.progress.Update(ctx, progress.Record{
		JobID: job.ID,
		Phase: progress.PhaseError,
		Title: "Download failed: " + title,
	}); err != nil {
		m.logger.Warn("progress update after reclaim failed", logging.Error(err))
	}

	logging.WarnWithContext(m.jobLogger(ctx, job.ID), "reclaimed current job", "job_reclaimed",
		logging.String("reason", reason),
		logging.Duration("heartbeat_age", job.HeartbeatAge(time.Now())),
		logging.String(logging.FieldErrorHint, "resubmit the URL if the download is still wanted"),
		logging.String(logging.FieldImpact, "job marked as error and the queue advanced"),
	)
	m.publish(ctx, events.TypeJobReclaimed, job, 0)
	m.notifyFailed(ctx, job, reason)
	return true, nil
}
