package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ytarchiver/internal/events"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/textutil"
)

// runJob executes one job end to end. Every step that touches shared state
// is preceded by a liveness check: once the job is no longer current some
// other actor owns it and the worker leaves without side effects beyond
// deleting its own partial files. It returns true when the worker finished
// the job itself and the next job should be dispatched.
func (m *Manager) runJob(ctx context.Context, t *task, job *queue.Job) bool {
	logger := m.jobLogger(ctx, job.ID)

	if !m.stillCurrent(ctx, logger, job.ID) {
		logger.Info("job superseded before start", logging.String(logging.FieldEventType, "worker_superseded"))
		return false
	}
	if err := m.progress.Reset(ctx, progress.Record{
		JobID: job.ID,
		Phase: progress.PhaseStarting,
		Title: job.SourceURL,
	}); err != nil {
		m.workerFatal(logger, "reset progress", err)
		return false
	}
	m.publish(ctx, events.TypeJobStarted, job, 0)

	title := m.probeTitle(ctx, logger, job)
	if !m.stillCurrent(ctx, logger, job.ID) {
		logger.Info("job superseded during probe", logging.String(logging.FieldEventType, "worker_superseded"))
		return false
	}
	if err := m.store.SetTitle(ctx, job.ID, title); err != nil {
		logger.Warn("failed to store job title", logging.Error(err))
	}
	job.Title = title

	if _, err := m.progress.Update(ctx, progress.Record{
		JobID:   job.ID,
		Phase:   progress.PhaseDownloading,
		Percent: extractor.BandStart,
		Title:   title,
	}); err != nil {
		m.workerFatal(logger, "update progress", err)
		return false
	}

	downloadErr, writeErr := m.download(ctx, t, logger, job)
	if writeErr != nil {
		m.workerFatal(logger, "update progress", writeErr)
		return false
	}
	if errors.Is(downloadErr, extractor.ErrAborted) || !m.stillCurrent(ctx, logger, job.ID) {
		m.removeArtifacts(ctx, job.ID)
		logger.Info("job superseded during download", logging.String(logging.FieldEventType, "worker_superseded"))
		return false
	}

	artifact, findErr := extractor.FindArtifact(m.videosDir, job.ID)
	if findErr != nil {
		logger.Warn("artifact lookup failed", logging.Error(findErr))
	}
	if downloadErr == nil && artifact != "" {
		return m.finishSuccess(ctx, logger, job, artifact)
	}

	reason := "yt-dlp produced no output file"
	if downloadErr != nil {
		reason = downloadErr.Error()
	}
	return m.finishFailure(ctx, logger, job, reason)
}

func (m *Manager) probeTitle(ctx context.Context, logger *slog.Logger, job *queue.Job) string {
	meta, err := m.extractor.Probe(ctx, job.SourceURL)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "metadata probe failed; using synthetic title", "probe_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run yt-dlp --dump-json on the URL to inspect"),
				logging.String(logging.FieldImpact, "job proceeds with a placeholder title"),
			)
		}
		return textutil.FallbackTitle(job.ID)
	}
	return textutil.TitleOrFallback(meta.Title, job.ID)
}

// download streams the tool and maps its progress onto the job band. The
// second error is a progress write failure, which is fatal to the worker.
func (m *Manager) download(ctx context.Context, t *task, logger *slog.Logger, job *queue.Job) (downloadErr, writeErr error) {
	tracker := extractor.NewBandTracker()
	sampler := logging.NewProgressSampler(10)
	lastBeat := time.Now()

	onLine := func(line string) bool {
		if !m.stillCurrent(ctx, logger, job.ID) {
			return false
		}
		if m.heartbeatInterval > 0 && time.Since(lastBeat) >= m.heartbeatInterval {
			if err := m.store.Heartbeat(ctx, job.ID); err != nil {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
			lastBeat = time.Now()
		}
		toolPercent, ok := m.parser.Parse(line)
		if !ok {
			logger.Debug("yt-dlp output", logging.String("line", line))
			return true
		}
		percent, advanced := tracker.Advance(toolPercent)
		if !advanced {
			return true
		}
		if _, err := m.progress.Update(ctx, progress.Record{
			JobID:   job.ID,
			Phase:   progress.PhaseDownloading,
			Percent: percent,
			Title:   job.Title,
		}); err != nil {
			writeErr = err
			return false
		}
		if sampler.ShouldLog(float64(percent), string(progress.PhaseDownloading)) {
			logger.Info("download progress",
				logging.String(logging.FieldEventType, "download_progress"),
				logging.Int("percent", percent),
			)
		}
		return true
	}

	downloadErr = m.extractor.Download(ctx, extractor.DownloadRequest{
		JobID:     job.ID,
		URL:       job.SourceURL,
		Format:    job.Format,
		OutputDir: m.videosDir,
		Hooks: extractor.StreamHooks{
			OnStart: func(pgid int) { t.pgid.Store(int64(pgid)) },
			OnLine:  onLine,
		},
	})
	return downloadErr, writeErr
}

func (m *Manager) finishSuccess(ctx context.Context, logger *slog.Logger, job *queue.Job, artifact string) bool {
	if _, err := m.progress.Update(ctx, progress.Record{
		JobID:   job.ID,
		Phase:   progress.PhaseComplete,
		Percent: 100,
		Title:   job.Title,
	}); err != nil {
		m.workerFatal(logger, "update progress", err)
		return false
	}
	won, err := m.store.FinishCurrent(ctx, job.ID, queue.StatusComplete, "")
	if err != nil {
		m.workerFatal(logger, "finish job", err)
		return false
	}
	if !won {
		m.removeArtifacts(ctx, job.ID)
		logger.Info("job cancelled while finalizing", logging.String(logging.FieldEventType, "worker_superseded"))
		return false
	}

	m.recordVideo(ctx, logger, job, artifact)
	m.recordFinished(job.ID)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("title", job.Title),
		logging.String("file", artifact),
	)
	job.Status = queue.StatusComplete
	m.publish(ctx, events.TypeJobCompleted, job, 100)
	m.notifyCompleted(ctx, job, artifact)
	return true
}

func (m *Manager) recordVideo(ctx context.Context, logger *slog.Logger, job *queue.Job, artifact string) {
	if m.library == nil {
		return
	}
	video, err := library.NewVideo(job.ID, job.Title, job.SourceURL, job.Format, artifact, time.Now())
	if err != nil {
		logging.ErrorWithContext(logger, "failed to describe artifact", "library_record_failed", logging.Error(err))
		return
	}
	created, err := m.library.Record(video)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record video", "library_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check library database permissions"),
		)
		return
	}
	if !created {
		logger.Info("video already recorded; skipping", logging.String(logging.FieldEventType, "library_record_skipped"))
	}
}

func (m *Manager) finishFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, reason string) bool {
	if _, err := m.progress.Update(ctx, progress.Record{
		JobID: job.ID,
		Phase: progress.PhaseError,
		Title: "Download failed: " + job.Title,
	}); err != nil {
		m.workerFatal(logger, "update progress", err)
		return false
	}
	m.removeArtifacts(ctx, job.ID)
	won, err := m.store.FinishCurrent(ctx, job.ID, queue.StatusError, reason)
	if err != nil {
		m.workerFatal(logger, "finish job", err)
		return false
	}
	if !won {
		logger.Info("job cancelled while failing", logging.String(logging.FieldEventType, "worker_superseded"))
		return false
	}

	m.recordFinished(job.ID)
	logging.WarnWithContext(logger, "job failed", "job_failed",
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "check the URL and yt-dlp version"),
		logging.String(logging.FieldImpact, "no file was archived for this job"),
	)
	job.Status = queue.StatusError
	job.ErrorMessage = reason
	m.publish(ctx, events.TypeJobFailed, job, 0)
	m.notifyFailed(ctx, job, reason)
	return true
}

// stillCurrent is the liveness check. Read failures count as superseded so
// the worker never acts on state it could not confirm.
func (m *Manager) stillCurrent(ctx context.Context, logger *slog.Logger, jobID string) bool {
	if ctx.Err() != nil {
		return false
	}
	current, err := m.store.IsCurrent(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("liveness check failed", logging.Error(err))
		}
		return false
	}
	return current
}

func (m *Manager) workerFatal(logger *slog.Logger, op string, err error) {
	wrapped := fmt.Errorf("%s: %w", op, err)
	m.setLastError(wrapped)
	logging.ErrorWithContext(logger, "worker stopped on state write failure", "worker_state_failure",
		logging.Error(wrapped),
		logging.String(logging.FieldErrorHint, "check data_dir permissions and free space"),
		logging.String(logging.FieldImpact, "job stays current until reconciled"),
	)
}
