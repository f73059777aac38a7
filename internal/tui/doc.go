// Package tui renders a live terminal view of the download queue.
//
// The view polls the daemon's status endpoint, shows the active job with a
// progress bar, and lists pending jobs in execution order. Pressing `c`
// cancels the active job.
package tui
