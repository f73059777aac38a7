package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Reasons recorded on jobs the workflow finishes without a tool result.
const (
	ReasonInterrupted = "Interrupted by daemon restart"
	ReasonStalled     = "No output from yt-dlp within the stale threshold"
	ReasonOrphaned    = "No worker owned the job"
	ReasonCleared     = "Cleared by operator"
)

var allStatuses = []Status{
	StatusQueued,
	StatusActive,
	StatusComplete,
	StatusError,
	StatusCancelled,
}

// ParseStatus converts a string into a Status, reporting whether it was recognized.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status ends a job's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is one requested media acquisition.
type Job struct {
	ID            string     `json:"id"`
	SourceURL     string     `json:"source_url"`
	Format        string     `json:"format"`
	Status        Status     `json:"status"`
	Title         string     `json:"title,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// HeartbeatAge returns how long ago the job last reported liveness, falling
// back to its start time.
func (j *Job) HeartbeatAge(now time.Time) time.Duration {
	if j == nil {
		return 0
	}
	switch {
	case j.LastHeartbeat != nil:
		return now.Sub(*j.LastHeartbeat)
	case j.StartedAt != nil:
		return now.Sub(*j.StartedAt)
	default:
		return now.Sub(j.CreatedAt)
	}
}

// State is the queue view: the active job plus pending jobs in execution order.
type State struct {
	Current *Job   `json:"current"`
	Pending []*Job `json:"pending"`
}

// CancelOutcome reports which branch a cancellation took.
type CancelOutcome int

const (
	CancelNotFound CancelOutcome = iota
	CancelCurrent
	CancelPending
)

func (o CancelOutcome) String() string {
	switch o {
	case CancelCurrent:
		return "current"
	case CancelPending:
		return "pending"
	default:
		return "not_found"
	}
}

// Recovery describes what startup recovery did with an interrupted job.
type Recovery struct {
	Job      *Job
	Requeued bool
}

// HealthSummary aggregates job counts by lifecycle bucket.
type HealthSummary struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Complete  int `json:"complete"`
	Error     int `json:"error"`
	Cancelled int `json:"cancelled"`
}

// DatabaseHealth describes the on-disk queue database for diagnostics.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	Error            string `json:"error,omitempty"`
}
