package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"ytarchiver/internal/events"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/notifications"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/services"
)

func (m *Manager) jobLogger(ctx context.Context, jobID string) *slog.Logger {
	if jobID != "" {
		ctx = services.WithJobID(ctx, jobID)
	}
	return logging.WithContext(ctx, m.logger)
}

func (m *Manager) publish(ctx context.Context, typ events.Type, job *queue.Job, percent int) {
	if m.publisher == nil || job == nil {
		return
	}
	err := m.publisher.Publish(context.WithoutCancel(ctx), events.Event{
		Type:    typ,
		JobID:   job.ID,
		Status:  string(job.Status),
		Title:   job.Title,
		Percent: percent,
	})
	if err != nil {
		m.logger.Debug("event publish failed",
			logging.String("event", string(typ)),
			logging.Error(err),
		)
	}
}

func (m *Manager) notifyCompleted(ctx context.Context, job *queue.Job, artifact string) {
	m.notify(ctx, notifications.EventJobCompleted, notifications.Payload{
		"title": job.Title,
		"url":   job.SourceURL,
		"file":  filepath.Base(artifact),
	})
}

func (m *Manager) notifyFailed(ctx context.Context, job *queue.Job, reason string) {
	if job == nil {
		return
	}
	m.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		"title": job.Title,
		"url":   job.SourceURL,
		"error": reason,
	})
}

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		// Check if this is a context cancellation (normal shutdown)
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification")
		} else {
			m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}
}
