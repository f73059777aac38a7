// Package api defines the wire-format types, the Service facade and the HTTP
// client shared by the daemon and the CLI. It translates queue, progress and
// library models into transport-friendly DTOs so callers never couple to
// internal types.
//
// # Key Types
//
// Job: transport representation of a queue job with formatted timestamps.
//
// StatusResponse: the read-only status view: current job, pending jobs in
// execution order and the progress record already collapsed against the
// current job id.
//
// CancelResponse / ReconcileResponse: outcomes of the two operator actions
// that clear the current job.
//
// Video / ToolVersionResponse: library and yt-dlp maintenance payloads.
//
// # Service
//
// Service wraps a workflow.Manager plus the library and yt-dlp client. The
// daemon's HTTP handlers and the CLI's direct mode call the same methods, so
// both surfaces share one set of validation and error markers.
//
// # Client
//
// Client speaks the daemon's HTTP API. Non-2xx responses decode the error
// envelope and are returned as *HTTPError, which unwraps to the matching
// services marker for 400 and 404.
//
// # Design Notes
//
// DTOs use snake_case JSON tags, matching the on-disk progress record.
// Timestamps use RFC3339 with milliseconds.
package api
