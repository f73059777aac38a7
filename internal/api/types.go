package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue job in a transport-friendly format.
type Job struct {
	ID            string `json:"id"`
	SourceURL     string `json:"source_url"`
	Format        string `json:"format"`
	Status        string `json:"status"`
	Title         string `json:"title,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	Attempts      int    `json:"attempts"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
	StartedAt     string `json:"started_at,omitempty"`
	FinishedAt    string `json:"finished_at,omitempty"`
	LastHeartbeat string `json:"last_heartbeat,omitempty"`
}

// Progress mirrors the progress record as callers should see it.
type Progress struct {
	JobID     string `json:"job_id"`
	Percent   int    `json:"percent"`
	Phase     string `json:"phase"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

// SubmitResponse reports an admitted job.
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is the read-only status view.
type StatusResponse struct {
	Current  *Job     `json:"current"`
	Pending  []Job    `json:"pending"`
	Progress Progress `json:"progress"`
}

// JobListResponse wraps recent job history.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelResponse reports a cancellation. Found is false for unknown ids.
type CancelResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

// ReconcileResponse reports an operator reconcile pass.
type ReconcileResponse struct {
	Success    bool   `json:"success"`
	Reclaimed  *Job   `json:"reclaimed,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Dispatched *Job   `json:"dispatched,omitempty"`
	Message    string `json:"message"`
}

// Video describes a library entry.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Format    string `json:"format"`
	FileName  string `json:"file_name"`
	Container string `json:"container"`
	Kind      string `json:"kind"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// VideoListResponse wraps the library listing, newest first.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
}

// DeleteVideoResponse reports a library deletion.
type DeleteVideoResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToolVersionResponse reports the installed and latest yt-dlp versions.
type ToolVersionResponse struct {
	Installed       string `json:"installed"`
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
}

// ToolUpdateResponse reports an update run.
type ToolUpdateResponse struct {
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Installed string `json:"installed,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running      bool           `json:"running"`
	StartedAt    string         `json:"started_at,omitempty"`
	QueueStats   map[string]int `json:"queue_stats"`
	LastError    string         `json:"last_error,omitempty"`
	LastJobID    string         `json:"last_job_id,omitempty"`
	FinishedJobs int            `json:"finished_jobs"`
	LiveWorkers  int            `json:"live_workers"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse aggregates daemon runtime information.
type HealthResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SessionID    string             `json:"session_id"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	LogPath      string             `json:"log_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}
