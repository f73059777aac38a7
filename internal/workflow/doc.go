// Package workflow runs the download queue with exactly one active job.
//
// The Manager promotes the head of the pending sequence to current, hosts the
// worker goroutine that probes and downloads it, and advances the queue when
// the worker finishes. Cancellation and reclamation go through the same
// compare-and-clear on the queue store as completion, so whichever actor
// clears current first owns the follow-up (artifact cleanup, progress reset,
// next dispatch) and every other actor backs off.
//
// Workers re-check that their job is still current before each externally
// visible step and on every line of yt-dlp output; progress writes are gated
// on job id, so a worker that loses a race cannot corrupt the next job.
//
// A reconciler ticks every heartbeat interval and reclaims a current job that
// no worker owns or whose heartbeat went stale. On Start, a job left current
// by a previous run is requeued at the head of the queue or, after too many
// attempts, marked as errored.
package workflow
