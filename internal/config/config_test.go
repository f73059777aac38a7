package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ytarchiver/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvFileVariable, "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "ytarchiver")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.VideosDir != filepath.Join(tempHome, "Videos", "ytarchiver") {
		t.Fatalf("unexpected videos dir: %q", cfg.Paths.VideosDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.YTDLP.Binary != "yt-dlp" {
		t.Fatalf("unexpected binary: %q", cfg.YTDLP.Binary)
	}
	if cfg.YTDLP.DefaultFormat != "mp4" {
		t.Fatalf("unexpected default format: %q", cfg.YTDLP.DefaultFormat)
	}
	if cfg.SettleDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected settle delay: %s", cfg.SettleDelay())
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console logging, got %q", cfg.Logging.Format)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "ytarchiver.toml")
	t.Setenv(config.EnvFileVariable, "")

	type payload struct {
		Paths struct {
			VideosDir string `toml:"videos_dir"`
		} `toml:"paths"`
		YTDLP struct {
			Binary        string `toml:"binary"`
			DefaultFormat string `toml:"default_format"`
		} `toml:"ytdlp"`
		Workflow struct {
			HeartbeatInterval int `toml:"heartbeat_interval_seconds"`
			StaleThreshold    int `toml:"stale_threshold_seconds"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.VideosDir = filepath.Join(tempDir, "out")
	custom.YTDLP.Binary = "/opt/bin/yt-dlp"
	custom.YTDLP.DefaultFormat = "MP3"
	custom.Workflow.HeartbeatInterval = 20
	custom.Workflow.StaleThreshold = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.VideosDir != filepath.Join(tempDir, "out") {
		t.Fatalf("expected videos dir override, got %q", cfg.Paths.VideosDir)
	}
	if cfg.YTDLP.Binary != "/opt/bin/yt-dlp" {
		t.Fatalf("expected binary override, got %q", cfg.YTDLP.Binary)
	}
	if cfg.YTDLP.DefaultFormat != "mp3" {
		t.Fatalf("expected lower-cased format, got %q", cfg.YTDLP.DefaultFormat)
	}
	if cfg.HeartbeatInterval() != 20*time.Second {
		t.Fatalf("expected heartbeat interval 20s, got %s", cfg.HeartbeatInterval())
	}
	if cfg.StaleThreshold() != 200*time.Second {
		t.Fatalf("expected stale threshold 200s, got %s", cfg.StaleThreshold())
	}
}

func TestEnvFileAndProcessEnvOverrideSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\napi_token = \"file-token\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(tempDir, ".env")
	envBody := "YTARCHIVER_API_TOKEN=dotenv-token\nYTARCHIVER_REDIS_ADDR=redis.local:6379\n"
	if err := os.WriteFile(envPath, []byte(envBody), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv(config.EnvFileVariable, "")
	t.Setenv("YTARCHIVER_REDIS_ADDR", "")
	t.Setenv("YTARCHIVER_NTFY_TOPIC", "https://ntfy.example/topic")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "dotenv-token" {
		t.Errorf("expected token from .env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Events.RedisAddr != "redis.local:6379" {
		t.Errorf("expected redis addr from .env, got %q", cfg.Events.RedisAddr)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/topic" {
		t.Errorf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if _, ok := os.LookupEnv("YTARCHIVER_API_TOKEN"); ok {
		t.Error("expected .env values to stay out of the process environment")
	}

	t.Setenv("YTARCHIVER_API_TOKEN", "process-token")
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "process-token" {
		t.Errorf("expected process env to win, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "ytarchiver") {
		t.Fatalf("expected data dir to contain ytarchiver, got %q", cfg.Paths.DataDir)
	}
	if cfg.Workflow.TerminateGraceSeconds != 5 {
		t.Fatalf("unexpected grace from sample: %d", cfg.Workflow.TerminateGraceSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero heartbeat", func(c *config.Config) { c.Workflow.HeartbeatIntervalSeconds = 0 }},
		{"stale below heartbeat", func(c *config.Config) { c.Workflow.StaleThresholdSeconds = c.Workflow.HeartbeatIntervalSeconds }},
		{"zero grace", func(c *config.Config) { c.Workflow.TerminateGraceSeconds = 0 }},
		{"negative settle", func(c *config.Config) { c.Workflow.SettleDelayMS = -1 }},
		{"unknown format", func(c *config.Config) { c.YTDLP.DefaultFormat = "flv" }},
		{"empty binary", func(c *config.Config) { c.YTDLP.Binary = " " }},
		{"empty update command", func(c *config.Config) { c.YTDLP.UpdateCommand = nil }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"burst without rate", func(c *config.Config) { c.API.SubmitBurst = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	cfg.Workflow.StaleThresholdSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("stale threshold 0 should disable reclaim, got %v", err)
	}
}
