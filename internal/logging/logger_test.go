package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ytarchiver/internal/config"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/services"
)

func TestNewDaemonLoggerWritesDaemonLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewDaemonLogger(&cfg, "debug", false)
	if err != nil {
		t.Fatalf("NewDaemonLogger returned error: %v", err)
	}
	logger.Debug("debug from override")
	logger.Info("hello from test")

	content, err := os.ReadFile(cfg.DaemonLogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"hello from test", "debug from override"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %q in daemon log, got %q", want, content)
		}
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0123456789abcdef")
	worker := logging.NewComponentLogger(logger, "worker")
	logging.WithContext(ctx, worker).Info("download started",
		logging.String(logging.FieldPhase, "downloading"),
		logging.Int("percent", 5),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{"[worker]", "Job 01234567 (downloading)", "download started", "percent: 5%"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(services.WithJobID(context.Background(), "job-1"), "req-9")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "probe failed", "probe_failed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["job_id"] != "job-1" || entry["correlation_id"] != "req-9" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry["event_type"] != "probe_failed" || entry["impact"] == nil || entry["error_hint"] == nil {
		t.Fatalf("missing warning fields: %v", entry)
	}
	if entry["level"] != "warn" || entry["app"] != "ytarchiver" || entry["ts"] == nil {
		t.Fatalf("unexpected envelope: %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
