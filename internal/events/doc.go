// Package events publishes job lifecycle transitions for external consumers.
//
// The Redis publisher is optional; without an address every publish is a
// no-op. Publishing is best effort and callers log failures instead of
// failing the job.
package events
