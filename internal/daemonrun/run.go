package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"ytarchiver/internal/api"
	"ytarchiver/internal/config"
	"ytarchiver/internal/daemon"
	"ytarchiver/internal/deps"
	"ytarchiver/internal/events"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/notifications"
	"ytarchiver/internal/preflight"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/staging"
	"ytarchiver/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the ytarchiver daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewDaemonLogger(cfg, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "downloads or event delivery may fail"),
		)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	sweepStaleArtifacts(signalCtx, cfg, store, logger)

	channel, err := progress.NewFileChannel(cfg.ProgressPath())
	if err != nil {
		return fmt.Errorf("open progress channel: %w", err)
	}

	lib, err := library.Open(cfg)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer lib.Close()

	client, err := extractor.New(cfg)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	publisher := events.NewPublisher(cfg)
	defer publisher.Close()

	workflowManager := workflow.NewManager(cfg, store, channel, lib, client, logger,
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithPublisher(publisher),
	)
	service := api.NewService(workflowManager, store, lib, client, logger)

	d, err := daemon.New(cfg, store, workflowManager, service, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("ytarchiver daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func sweepStaleArtifacts(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	activeID := ""
	if current, err := store.PeekCurrent(ctx); err == nil && current != nil {
		activeID = current.ID
	}
	result := staging.CleanStale(ctx, cfg.Paths.VideosDir, staging.DefaultMaxAge, activeID, logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		logger.Info("stale artifact sweep complete",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "artifact_sweep_complete"),
		)
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("redis_events", strings.TrimSpace(cfg.Events.RedisAddr) != ""),
	}
	statuses := deps.Check(cfg)
	for _, status := range statuses {
		key := strings.ReplaceAll(strings.ToLower(status.Name), "-", "_")
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String(logging.FieldErrorHint, missing.Detail),
			logging.String(logging.FieldImpact, "downloads fail until the binary is installed"),
		)
	}
}
