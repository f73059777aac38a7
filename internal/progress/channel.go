package progress

import "context"

// Channel is the job-id-gated progress record shared by the worker and
// pollers.
type Channel interface {
	// Reset replaces the record unconditionally.
	Reset(ctx context.Context, record Record) error
	// Update replaces the record only when it belongs to the same job. Percent
	// never moves backwards within a job. It reports whether the write landed.
	Update(ctx context.Context, record Record) (bool, error)
	// Clear resets the record to idle only when it still belongs to jobID.
	Clear(ctx context.Context, jobID string) (bool, error)
	// Read returns the stored record without any view collapsing.
	Read(ctx context.Context) (Record, error)
}
