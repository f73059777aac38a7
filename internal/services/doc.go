// Package services defines the shared error taxonomy and context helpers used
// by the workflow, API, and daemon layers.
//
// Key responsibilities:
//   - Marker errors (invalid input, job not found, subprocess failure,
//     orphaned state) plus the Wrap helper that keeps the marker reachable
//     through errors.Is.
//   - Context helpers that stamp job IDs and correlation identifiers for
//     logging.
package services
