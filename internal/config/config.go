package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	VideosDir string `toml:"videos_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// YTDLP contains configuration for the external extraction tool.
type YTDLP struct {
	Binary              string   `toml:"binary"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
	DefaultFormat       string   `toml:"default_format"`
	UpdateCommand       []string `toml:"update_command"`
	ReleaseURL          string   `toml:"release_url"`
}

// Workflow contains configuration for scheduling, cancellation, and stale-job detection.
type Workflow struct {
	SettleDelayMS            int `toml:"settle_delay_ms"`
	TerminateGraceSeconds    int `toml:"terminate_grace_seconds"`
	HeartbeatIntervalSeconds int `toml:"heartbeat_interval_seconds"`
	StaleThresholdSeconds    int `toml:"stale_threshold_seconds"`
	MaxRecoveries            int `toml:"max_recoveries"`
}

// API contains configuration for the daemon HTTP surface.
type API struct {
	SubmitRatePerSecond float64 `toml:"submit_rate_per_second"`
	SubmitBurst         int     `toml:"submit_burst"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
	JobComplete    bool   `toml:"job_complete"`
	JobFailed      bool   `toml:"job_failed"`
}

// Events contains configuration for the Redis lifecycle event publisher.
type Events struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ytarchiver.
//
// Configuration sections by subsystem:
//   - Paths: state, output, and log directories plus the API bind address
//   - YTDLP: extraction tool binary and maintenance settings
//   - Workflow: settle delay, termination grace, heartbeat and stale thresholds
//   - API: submission rate limiting
//   - Notifications: ntfy push notification settings
//   - Events: Redis lifecycle event publishing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	YTDLP         YTDLP         `toml:"ytdlp"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(envFilePath(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytarchiver.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.VideosDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the queue database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// ProgressPath returns the progress record location.
func (c *Config) ProgressPath() string {
	return filepath.Join(c.Paths.DataDir, "progress.json")
}

// LibraryDBPath returns the video library database location.
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.Paths.DataDir, "library.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ytarchiver.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "ytarchiver.pid")
}

// DaemonLogPath returns the daemon log file location.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "ytarchiver.log")
}

// FFmpegBinary returns the ffmpeg executable name used for merging and audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// ProbeTimeout returns the metadata probe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.YTDLP.ProbeTimeoutSeconds) * time.Second
}

// SettleDelay returns the pause between a job finishing and the next dispatch.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Workflow.SettleDelayMS) * time.Millisecond
}

// TerminateGrace returns how long a process group gets between SIGTERM and SIGKILL.
func (c *Config) TerminateGrace() time.Duration {
	return time.Duration(c.Workflow.TerminateGraceSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat write and reconcile cadence.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatIntervalSeconds) * time.Second
}

// StaleThreshold returns the heartbeat age after which the current job is reclaimed.
// Zero disables automatic reclaim.
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Workflow.StaleThresholdSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
