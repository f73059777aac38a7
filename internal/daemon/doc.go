// Package daemon coordinates the long-running ytarchiver process.
//
// It wires configuration, queue storage, the workflow manager and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. Because only one daemon can hold the lock, any job left current
// in the queue at startup is orphaned and the workflow recovers it.
//
// Keep orchestration logic here: job execution lives in workflow, request
// validation in api, while the daemon focuses on startup, shutdown and the
// HTTP surface.
package daemon
