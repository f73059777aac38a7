package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput marks user-correctable submission errors.
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobNotFound marks a lookup or cancel target that does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrSubprocessFailure marks an extraction tool run that exited non-zero or produced nothing.
	ErrSubprocessFailure = errors.New("subprocess failure")
	// ErrOrphanedState marks a current job with no live worker behind it.
	ErrOrphanedState = errors.New("orphaned state")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable machine-readable name for the marker carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrJobNotFound):
		return "job_not_found"
	case errors.Is(err, ErrSubprocessFailure):
		return "subprocess_failure"
	case errors.Is(err, ErrOrphanedState):
		return "orphaned_state"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
