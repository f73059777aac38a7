package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/services"
	"ytarchiver/internal/workflow"
)

// DefaultJobLimit bounds job history listings when no limit is given.
const DefaultJobLimit = 50

// ToolClient is the yt-dlp maintenance surface.
type ToolClient interface {
	Version(ctx context.Context) (string, error)
	LatestRelease(ctx context.Context) (string, error)
	Update(ctx context.Context) (string, error)
}

// Service exposes submission, status, cancellation, library and tool
// operations returning API DTOs.
type Service struct {
	manager *workflow.Manager
	store   *queue.Store
	library *library.Library
	tool    ToolClient
	logger  *slog.Logger
}

// NewService constructs a Service. lib and tool may be nil; the operations
// that need them then fail with a configuration error.
func NewService(manager *workflow.Manager, store *queue.Store, lib *library.Library, tool ToolClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		manager: manager,
		store:   store,
		library: lib,
		tool:    tool,
		logger:  logging.NewComponentLogger(logger, "api-service"),
	}
}

// Submit admits a job. Without a started manager the job is only queued.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	job, err := s.manager.Admit(ctx, req.URL, req.Format)
	if err != nil {
		return SubmitResponse{}, err
	}
	message := "Added to queue"
	if job.Status == queue.StatusActive {
		message = "Download started"
	}
	return SubmitResponse{
		Success: true,
		ID:      job.ID,
		Status:  string(job.Status),
		Message: message,
	}, nil
}

// Status returns the read-only status view.
func (s *Service) Status(ctx context.Context) (StatusResponse, error) {
	status, err := s.manager.Status(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	return FromStatus(status), nil
}

// Jobs returns recent job history, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) (JobListResponse, error) {
	if limit <= 0 {
		limit = DefaultJobLimit
	}
	jobs, err := s.store.List(ctx, limit)
	if err != nil {
		return JobListResponse{}, err
	}
	return JobListResponse{Jobs: FromJobs(jobs)}, nil
}

// Cancel stops or dequeues a job. Unknown ids are reported with Found=false.
func (s *Service) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CancelResponse{}, services.Wrap(services.ErrInvalidInput, "api", "cancel", "job id is required", nil)
	}
	result, err := s.manager.Cancel(ctx, id)
	if err != nil {
		return CancelResponse{}, err
	}
	return CancelResponse{
		Success: true,
		Found:   result.Found,
		Outcome: result.Outcome.String(),
		Message: result.Message,
	}, nil
}

// Reconcile reclaims an orphaned or stalled current job. With force the
// current job is cleared regardless of its worker.
func (s *Service) Reconcile(ctx context.Context, force bool) (ReconcileResponse, error) {
	result, err := s.manager.Reconcile(ctx, force)
	if err != nil {
		return ReconcileResponse{}, err
	}
	resp := ReconcileResponse{
		Success:    true,
		Reclaimed:  FromJobPtr(result.Reclaimed),
		Reason:     result.Reason,
		Dispatched: FromJobPtr(result.Dispatched),
		Message:    "Nothing to reconcile",
	}
	if result.Reclaimed != nil {
		resp.Message = fmt.Sprintf("Reclaimed %s: %s", result.Reclaimed.ID, result.Reason)
	}
	return resp, nil
}

// Videos lists the library, newest first.
func (s *Service) Videos(ctx context.Context) (VideoListResponse, error) {
	if s.library == nil {
		return VideoListResponse{}, libraryUnavailable("list")
	}
	videos, err := s.library.List()
	if err != nil {
		return VideoListResponse{}, err
	}
	return VideoListResponse{Videos: FromVideos(videos)}, nil
}

// DeleteVideo removes a library entry and its file.
func (s *Service) DeleteVideo(ctx context.Context, id string) (DeleteVideoResponse, error) {
	if s.library == nil {
		return DeleteVideoResponse{}, libraryUnavailable("delete")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return DeleteVideoResponse{}, services.Wrap(services.ErrInvalidInput, "api", "delete video", "video id is required", nil)
	}
	video, err := s.library.Delete(id)
	if err != nil {
		return DeleteVideoResponse{}, err
	}
	s.logger.Info("video deleted",
		logging.String(logging.FieldEventType, "video_deleted"),
		logging.String("video_id", video.ID),
		logging.String("file", video.FileName),
	)
	return DeleteVideoResponse{Success: true, Message: "Deleted " + video.Title}, nil
}

// FilePath resolves a library file name to its on-disk path.
func (s *Service) FilePath(name string) (string, error) {
	if s.library == nil {
		return "", libraryUnavailable("serve file")
	}
	return s.library.ResolveFile(name)
}

// ToolVersion reports the installed yt-dlp version and whether a newer
// release exists. A failed release lookup leaves Latest as "unknown".
func (s *Service) ToolVersion(ctx context.Context) (ToolVersionResponse, error) {
	if s.tool == nil {
		return ToolVersionResponse{}, toolUnavailable("version")
	}
	installed, err := s.tool.Version(ctx)
	if err != nil {
		return ToolVersionResponse{}, err
	}
	resp := ToolVersionResponse{Installed: installed, Latest: "unknown"}
	latest, err := s.tool.LatestRelease(ctx)
	if err != nil {
		s.logger.Warn("latest release lookup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "release_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check network access to the release URL"),
		)
		return resp, nil
	}
	resp.Latest = latest
	resp.UpdateAvailable = CompareVersions(installed, latest) < 0
	return resp, nil
}

// UpdateTool runs the configured update command.
func (s *Service) UpdateTool(ctx context.Context) (ToolUpdateResponse, error) {
	if s.tool == nil {
		return ToolUpdateResponse{}, toolUnavailable("update")
	}
	output, err := s.tool.Update(ctx)
	if err != nil {
		return ToolUpdateResponse{Output: output}, err
	}
	resp := ToolUpdateResponse{Success: true, Output: output}
	if installed, verErr := s.tool.Version(ctx); verErr == nil {
		resp.Installed = installed
	}
	s.logger.Info("yt-dlp updated",
		logging.String(logging.FieldEventType, "tool_updated"),
		logging.String("version", resp.Installed),
	)
	return resp, nil
}

func libraryUnavailable(op string) error {
	return services.Wrap(services.ErrConfiguration, "api", op, "video library unavailable", nil)
}

func toolUnavailable(op string) error {
	return services.Wrap(services.ErrConfiguration, "api", op, "yt-dlp client unavailable", nil)
}
