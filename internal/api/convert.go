package api

import (
	"time"

	"ytarchiver/internal/deps"
	"ytarchiver/internal/library"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/workflow"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

// FromJob converts a queue job to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:            job.ID,
		SourceURL:     job.SourceURL,
		Format:        job.Format,
		Status:        string(job.Status),
		Title:         job.Title,
		ErrorMessage:  job.ErrorMessage,
		Attempts:      job.Attempts,
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
		StartedAt:     formatOptionalTime(job.StartedAt),
		FinishedAt:    formatOptionalTime(job.FinishedAt),
		LastHeartbeat: formatOptionalTime(job.LastHeartbeat),
	}
}

// FromJobPtr converts a possibly nil job, keeping nil as nil.
func FromJobPtr(job *queue.Job) *Job {
	if job == nil {
		return nil
	}
	dto := FromJob(job)
	return &dto
}

// FromJobs converts queue jobs into API DTOs. The result is never nil.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromProgress converts a progress record.
func FromProgress(rec progress.Record) Progress {
	phase := rec.Phase
	if phase == "" {
		phase = progress.PhaseIdle
	}
	return Progress{
		JobID:     rec.JobID,
		Percent:   rec.Percent,
		Phase:     string(phase),
		Title:     rec.Title,
		UpdatedAt: formatTime(rec.UpdatedAt),
	}
}

// FromStatus converts the workflow status view.
func FromStatus(status workflow.Status) StatusResponse {
	return StatusResponse{
		Current:  FromJobPtr(status.Current),
		Pending:  FromJobs(status.Pending),
		Progress: FromProgress(status.Progress),
	}
}

// FromVideo converts a library entry.
func FromVideo(video library.Video) Video {
	return Video{
		ID:        video.ID,
		Title:     video.Title,
		SourceURL: video.SourceURL,
		Format:    video.Format,
		FileName:  video.FileName,
		Container: video.Container,
		Kind:      string(video.Kind),
		SizeBytes: video.SizeBytes,
		CreatedAt: video.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FromVideos converts library entries, preserving order.
func FromVideos(videos []library.Video) []Video {
	out := make([]Video, 0, len(videos))
	for _, video := range videos {
		out = append(out, FromVideo(video))
	}
	return out
}

// FromSummary converts workflow diagnostics.
func FromSummary(summary workflow.Summary) WorkflowStatus {
	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}
	return WorkflowStatus{
		Running:      summary.Running,
		StartedAt:    formatTime(summary.StartedAt),
		QueueStats:   stats,
		LastError:    summary.LastError,
		LastJobID:    summary.LastJobID,
		FinishedJobs: summary.FinishedJobs,
		LiveWorkers:  summary.LiveWorkers,
	}
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}
