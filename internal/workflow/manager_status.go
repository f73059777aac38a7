package workflow

import (
	"context"
	"time"

	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
)

// Status is the read-only view served to pollers.
type Status struct {
	Current  *queue.Job      `json:"current"`
	Pending  []*queue.Job    `json:"pending"`
	Progress progress.Record `json:"progress"`
}

// Status reads the queue and progress without mutating either. The progress
// record is collapsed against the current job id.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	return ReadStatus(ctx, m.store, m.progress)
}

// ReadStatus builds a Status from the stores directly, for callers without a
// Manager.
func ReadStatus(ctx context.Context, store *queue.Store, channel progress.Channel) (Status, error) {
	state, err := store.Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	raw, err := channel.Read(ctx)
	if err != nil {
		return Status{}, err
	}
	currentID := ""
	if state.Current != nil {
		currentID = state.Current.ID
	}
	pending := state.Pending
	if pending == nil {
		pending = []*queue.Job{}
	}
	return Status{
		Current:  state.Current,
		Pending:  pending,
		Progress: progress.View(raw, currentID),
	}, nil
}

// Summary represents lightweight workflow diagnostics.
type Summary struct {
	Running      bool                 `json:"running"`
	StartedAt    time.Time            `json:"started_at,omitempty"`
	LastError    string               `json:"last_error,omitempty"`
	LastJobID    string               `json:"last_job_id,omitempty"`
	FinishedJobs int                  `json:"finished_jobs"`
	LiveWorkers  int                  `json:"live_workers"`
	QueueStats   map[queue.Status]int `json:"queue_stats"`
}

// Summary returns the latest workflow information.
func (m *Manager) Summary(ctx context.Context) Summary {
	m.mu.RLock()
	summary := Summary{
		Running:      m.running,
		StartedAt:    m.started,
		LastJobID:    m.lastJob,
		FinishedJobs: m.finished,
		LiveWorkers:  len(m.tasks),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}
