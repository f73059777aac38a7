// Package progress implements the single-slot progress record the worker
// writes and pollers read.
//
// Writes are gated on job id: once the record has been reset for another job
// (or cleared to idle), late writes from a superseded worker are dropped.
// View applies the reader-side rule that a record for a job other than the
// current one reads as idle.
package progress
