// Package notifications delivers job outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the workflow can publish unconditionally. Per-event toggles in the
// [notifications] config section decide which outcomes are sent.
package notifications
