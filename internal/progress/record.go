package progress

import (
	"fmt"
	"time"
)

// Phase is the worker lifecycle phase reported to pollers.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseStarting    Phase = "starting"
	PhaseDownloading Phase = "downloading"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// IsTerminal reports whether the phase ends a job.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

func (p Phase) valid() bool {
	switch p {
	case PhaseIdle, PhaseStarting, PhaseDownloading, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// Record is the single-slot progress document for the active job.
type Record struct {
	JobID     string    `json:"job_id"`
	Percent   int       `json:"percent"`
	Phase     Phase     `json:"phase"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Idle returns the record shown when no job is running.
func Idle() Record {
	return Record{Phase: PhaseIdle}
}

// IsIdle reports whether the record carries no job.
func (r Record) IsIdle() bool {
	return r.JobID == "" || r.Phase == PhaseIdle
}

func (r Record) validate() error {
	if !r.Phase.valid() {
		return fmt.Errorf("unknown phase %q", r.Phase)
	}
	if r.Percent < 0 || r.Percent > 100 {
		return fmt.Errorf("percent %d out of range", r.Percent)
	}
	if r.Phase != PhaseIdle && r.JobID == "" {
		return fmt.Errorf("phase %s requires a job id", r.Phase)
	}
	return nil
}

// View is the caller-facing form of a stored record. A record that belongs
// to a job other than currentJobID reads as idle, except that a terminal
// record stays visible while nothing is current so pollers see how the last
// job ended.
func View(stored Record, currentJobID string) Record {
	if stored.JobID == "" {
		return Idle()
	}
	if stored.JobID == currentJobID {
		return stored
	}
	if currentJobID == "" && stored.Phase.IsTerminal() {
		return stored
	}
	return Idle()
}
