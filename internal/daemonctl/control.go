package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ytarchiver/internal/api"
	"ytarchiver/internal/config"
	"ytarchiver/internal/deps"
	"ytarchiver/internal/queue"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates neither the API nor the pid file point at a
// live daemon.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached `ytarchiver daemon run` process in its own
// session so it outlives the invoking terminal.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitReady polls the health endpoint until the daemon reports running.
func WaitReady(ctx context.Context, client *api.Client, timeout time.Duration) (api.HealthResponse, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		health, err := client.Health(ctx)
		if err == nil && health.Running {
			return health, nil
		}
		if err == nil {
			err = errors.New("daemon reports not running")
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return api.HealthResponse{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.HealthResponse{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if health, err := client.Health(ctx); err == nil && health.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: health.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	health, err := WaitReady(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: health.PID}, nil
}

// ReadPID returns the pid recorded by a running daemon, or 0 when the file
// is missing.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", raw, pidPath)
	}
	return pid, nil
}

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// ProcessInfo returns whether the daemon answers on its API and its pid.
// When the API is down the pid file is consulted so a wedged daemon is still
// reported.
func ProcessInfo(ctx context.Context, cfg *config.Config, client *api.Client) (bool, int, error) {
	if client != nil {
		health, err := client.Health(ctx)
		if err == nil {
			return health.Running, health.PID, nil
		}
		if !api.IsUnavailable(err) {
			return false, 0, err
		}
	}
	pid, err := ReadPID(cfg.PIDPath())
	if err != nil {
		return false, 0, err
	}
	if ProcessAlive(pid) {
		return true, pid, nil
	}
	return false, 0, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM to the daemon and escalates to SIGKILL if the
// process is still alive after gracePeriod. An active job left current by the
// kill is recovered on the next start.
func StopAndTerminate(ctx context.Context, cfg *config.Config, client *api.Client, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	_, pid, err := ProcessInfo(ctx, cfg, client)
	if err != nil {
		return StopResult{}, err
	}
	if pid <= 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			_ = os.Remove(cfg.PIDPath())
			return StopResult{}, ErrDaemonNotRunning
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(ctx, pid, gracePeriod) {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	waitForExit(ctx, pid, gracePeriod)
	if err := os.Remove(cfg.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !ProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !ProcessAlive(pid)
		case <-time.After(pollInterval):
		}
	}
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Restart stops the daemon if running, then starts a fresh one.
func Restart(ctx context.Context, cfg *config.Config, client *api.Client, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cfg, client, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// Snapshot is the daemon status view rendered by `ytarchiver daemon status`.
type Snapshot struct {
	Running           bool                   `json:"running"`
	Health            api.HealthResponse     `json:"health"`
	QueueStats        map[string]int         `json:"queue_stats"`
	Dependencies      []api.DependencyStatus `json:"dependencies"`
	DependencySummary DependencySummary      `json:"dependency_summary"`
	SystemChecks      []StatusLine           `json:"system_checks"`
}

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// BuildStatusSnapshot collects daemon status, falling back to the local
// queue database and dependency probes when the daemon is down.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, client *api.Client) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}
	snap := Snapshot{QueueStats: map[string]int{}}

	if client != nil {
		if health, err := client.Health(ctx); err == nil {
			snap.Health = health
			snap.Running = health.Running
			snap.Dependencies = health.Dependencies
			for k, v := range health.Workflow.QueueStats {
				snap.QueueStats[k] = v
			}
		}
	}

	if !snap.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := queue.Open(cfg); err == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				for status, count := range stats {
					snap.QueueStats[string(status)] = count
				}
			}
		}
	}
	if len(snap.Dependencies) == 0 {
		snap.Dependencies = ResolveDependencies(cfg)
	}

	snap.DependencySummary = BuildDependencySummary(snap.Dependencies)
	snap.SystemChecks = BuildSystemChecks(cfg, snap)
	return snap, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and
// configuration.
func BuildSystemChecks(cfg *config.Config, snap Snapshot) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if snap.Running {
		detail := fmt.Sprintf("Running (pid %d, %s)", snap.Health.PID, api.BaseURL(cfg.Paths.APIBind))
		lines = append(lines, StatusLine{Label: "ytarchiver", Severity: "ok", Detail: detail})
		if snap.Health.Workflow.LastError != "" {
			lines = append(lines, StatusLine{Label: "Last Error", Severity: "warn", Detail: snap.Health.Workflow.LastError})
		}
	} else {
		lines = append(lines, StatusLine{Label: "ytarchiver", Severity: "warn", Detail: "Not running (run `ytarchiver daemon start`)"})
	}

	if strings.TrimSpace(cfg.Paths.APIToken) != "" {
		lines = append(lines, StatusLine{Label: "API Auth", Severity: "ok", Detail: "Bearer token required"})
	} else {
		lines = append(lines, StatusLine{Label: "API Auth", Severity: "info", Detail: "Open (no api_token set)"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}

	if strings.TrimSpace(cfg.Events.RedisAddr) != "" {
		lines = append(lines, StatusLine{Label: "Event Stream", Severity: "ok", Detail: "Redis " + cfg.Events.RedisAddr})
	} else {
		lines = append(lines, StatusLine{Label: "Event Stream", Severity: "info", Detail: "Disabled"})
	}

	lines = append(lines, StatusLine{Label: "Videos", Severity: "ok", Detail: cfg.Paths.VideosDir})
	return lines
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

// ResolveDependencies probes dependency availability locally.
func ResolveDependencies(cfg *config.Config) []api.DependencyStatus {
	if cfg == nil {
		return nil
	}
	return api.FromDependencies(deps.Check(cfg))
}
