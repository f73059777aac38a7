// Package queue persists jobs in SQLite and exposes the atomic operations the
// scheduler, worker, and canceller coordinate through.
//
// The Store keeps every job as a row ordered by an insertion sequence and a
// singleton queue_state row that names the current job. Every mutation runs in
// an IMMEDIATE transaction with synchronous=FULL, so concurrent callers
// serialize on the write lock and a successful return means the new state is
// on disk. Compare-and-clear transitions (FinishCurrent, Cancel) let the
// worker and the canceller race safely: exactly one of them takes a job out of
// current.
//
// Schema changes bump the version in schema.go; users delete queue.db to adopt
// the new schema.
package queue
