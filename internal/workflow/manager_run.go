package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"ytarchiver/internal/config"
	"ytarchiver/internal/events"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/services"
)

// Start recovers any job a previous run left current, starts the
// reconciler and dispatches the head of the queue.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.started = time.Now()
	m.mu.Unlock()

	if err := m.recoverInterrupted(ctx); err != nil {
		m.Stop()
		return err
	}

	if m.heartbeatInterval > 0 {
		m.wg.Add(1)
		go m.runReconciler(runCtx)
	}

	if _, err := m.Dispatch(ctx); err != nil {
		m.logger.Warn("initial dispatch failed; reconciler will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	return nil
}

// Stop cancels every worker and waits for them. Jobs left current are
// recovered by the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	return m.isRunning()
}

func (m *Manager) recoverInterrupted(ctx context.Context) error {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	recovery, err := m.store.RecoverCurrent(ctx, m.maxRecoveries)
	if err != nil {
		return services.Wrap(services.ErrOrphanedState, "workflow", "recover", "recover interrupted job", err)
	}
	if recovery == nil || recovery.Job == nil {
		return nil
	}
	job := recovery.Job
	m.removeArtifacts(ctx, job.ID)
	if _, err := m.progress.Clear(ctx, job.ID); err != nil {
		m.logger.Warn("progress clear failed after recovery", logging.Error(err))
	}

	logger := m.jobLogger(ctx, job.ID)
	if recovery.Requeued {
		logger.Info("requeued job interrupted by restart",
			logging.String(logging.FieldEventType, "job_recovered"),
			logging.Int("attempts", job.Attempts),
		)
		m.publish(ctx, events.TypeJobQueued, job, 0)
		return nil
	}
	logging.WarnWithContext(logger, "interrupted job exceeded recovery attempts; marked as error", "job_recovery_exhausted",
		logging.Int("attempts", job.Attempts),
		logging.String(logging.FieldErrorHint, "resubmit the URL to try again"),
		logging.String(logging.FieldImpact, "job will not be retried"),
	)
	m.publish(ctx, events.TypeJobFailed, job, 0)
	m.notifyFailed(ctx, job, queue.ReasonInterrupted)
	return nil
}

// Admit enqueues a job and dispatches it when nothing is active.
func (m *Manager) Admit(ctx context.Context, sourceURL, format string) (*queue.Job, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "workflow", "admit", "source url is required", nil)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = m.cfg.YTDLP.DefaultFormat
	}
	if !config.IsSupportedFormat(format) {
		return nil, services.Wrap(services.ErrInvalidInput, "workflow", "admit", "unsupported format "+format, nil)
	}

	job, err := m.store.Enqueue(ctx, sourceURL, format)
	if err != nil {
		return nil, err
	}
	m.jobLogger(ctx, job.ID).Info("job queued",
		logging.String(logging.FieldEventType, "job_queued"),
		logging.String("source_url", sourceURL),
		logging.String("format", format),
	)
	m.publish(ctx, events.TypeJobQueued, job, 0)

	if _, err := m.Dispatch(ctx); err != nil {
		return job, err
	}
	if refreshed, err := m.store.Get(ctx, job.ID); err == nil && refreshed != nil {
		job = refreshed
	}
	return job, nil
}

// Dispatch promotes the head of pending to current and launches its worker.
// It is a no-op when a job is already current, nothing is pending, or the
// manager is not running.
func (m *Manager) Dispatch(ctx context.Context) (*queue.Job, error) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	return m.dispatchLocked(ctx)
}

func (m *Manager) dispatchLocked(ctx context.Context) (*queue.Job, error) {
	if !m.isRunning() {
		return nil, nil
	}
	job, err := m.store.DequeueNext(ctx)
	if err != nil {
		m.setLastError(err)
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	t, taskCtx, ok := m.registerTask(job.ID)
	if !ok {
		// Stopped between the check and the dequeue; the next Start recovers it.
		return job, nil
	}
	m.jobLogger(ctx, job.ID).Info("job dispatched",
		logging.String(logging.FieldEventType, "job_dispatched"),
		logging.String("source_url", job.SourceURL),
	)
	go m.runTask(taskCtx, t, job)
	return job, nil
}

// runTask hosts one worker and, when the worker finished its job itself,
// dispatches the next one after the settle delay.
func (m *Manager) runTask(ctx context.Context, t *task, job *queue.Job) {
	defer m.wg.Done()

	redispatch := m.runJob(ctx, t, job)
	m.finishTask(t)
	if !redispatch {
		return
	}

	m.mu.RLock()
	runCtx := m.runCtx
	m.mu.RUnlock()
	if m.settleDelay > 0 {
		timer := time.NewTimer(m.settleDelay)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	if _, err := m.Dispatch(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("dispatch after job completion failed; reconciler will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
}

func (m *Manager) removeArtifacts(ctx context.Context, jobID string) {
	removed, err := extractor.RemoveArtifacts(m.videosDir, jobID)
	logger := m.jobLogger(ctx, jobID)
	if err != nil {
		logging.WarnWithContext(logger, "failed to remove job artifacts", "artifact_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove files prefixed with the job id from videos_dir"),
			logging.String(logging.FieldImpact, "partial files remain on disk"),
		)
	}
	if len(removed) > 0 {
		logger.Debug("removed job artifacts", logging.Int("count", len(removed)))
	}
}
