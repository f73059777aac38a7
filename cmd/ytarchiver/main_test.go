package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytarchiver/internal/api"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/testsupport"
)

func TestSubmitThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t, true)

	out, _, err := env.run(t, "submit", "https://example.com/watch?v=cli")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Download started")

	waitFor(t, 15*time.Second, func() bool {
		list, _, err := env.run(t, "library", "list")
		return err == nil && strings.Contains(list, "Test Video Part 1")
	})

	out, _, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "complete")

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if status.Current != nil || status.Progress.Phase != "complete" || status.Progress.Percent != 100 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSubmitWithoutDaemonQueuesLocally(t *testing.T) {
	env := setupCLITestEnv(t, false)

	out, _, err := env.run(t, "submit", "--format", "mp3", "https://example.com/watch?v=offline")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, offlineNotice)
	requireContains(t, out, "Added to queue")

	out, _, err = env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Idle")
	requireContains(t, out, "https://example.com/watch?v=offline")

	store := testsupport.MustOpenStore(t, env.cfg)
	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Format != "mp3" || pending[0].Status != queue.StatusQueued {
		t.Fatalf("unexpected pending jobs %+v", pending)
	}
}

func TestSubmitRejectsUnsupportedFormat(t *testing.T) {
	env := setupCLITestEnv(t, false)
	if _, _, err := env.run(t, "submit", "--format", "flac", "https://example.com/v"); err == nil {
		t.Fatal("expected unsupported format to fail")
	}
}

func TestCancelPendingJob(t *testing.T) {
	env := setupCLITestEnv(t, false)
	store := testsupport.MustOpenStore(t, env.cfg)
	job, err := store.Enqueue(context.Background(), "https://example.com/watch?v=cancel", "mp4")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	out, _, err := env.run(t, "cancel", job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Removed from queue")

	if _, _, err := env.run(t, "cancel", "does-not-exist"); err == nil || !strings.Contains(err.Error(), "Job not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestQueueReconcileWithoutDaemonReclaimsOrphan(t *testing.T) {
	env := setupCLITestEnv(t, false)
	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	job, err := store.Enqueue(ctx, "https://example.com/watch?v=orphan", "mp4")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.DequeueNext(ctx); err != nil {
		t.Fatalf("DequeueNext: %v", err)
	}

	out, _, err := env.run(t, "queue", "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "Reclaimed "+job.ID)

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusError {
		t.Fatalf("expected orphan to be marked error, got %s", got.Status)
	}

	out, _, err = env.run(t, "queue", "reconcile")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	requireContains(t, out, "Nothing to reconcile")
}

func TestLibraryDeleteUnknown(t *testing.T) {
	env := setupCLITestEnv(t, true)
	if _, _, err := env.run(t, "library", "delete", "missing"); err == nil {
		t.Fatal("expected delete of unknown video to fail")
	}
	out, _, err := env.run(t, "library", "list")
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	requireContains(t, out, "Library is empty")
}

func TestToolVersionShowsInstalled(t *testing.T) {
	release := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"2024.10.07"}`))
	}))
	defer release.Close()

	env := setupCLITestEnv(t, false)
	env.cfg.YTDLP.ReleaseURL = release.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := env.run(t, "tool", "version", "--json")
	if err != nil {
		t.Fatalf("tool version: %v", err)
	}
	var resp api.ToolVersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if resp.Installed != "2024.08.06" || resp.Latest != "2024.10.07" || !resp.UpdateAvailable {
		t.Fatalf("unexpected tool version %+v", resp)
	}

	out, _, err = env.run(t, "tool", "version")
	if err != nil {
		t.Fatalf("tool version: %v", err)
	}
	requireContains(t, out, "update available")
}

func TestDaemonStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t, false)
	out, _, err := env.run(t, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "yt-dlp")
	requireContains(t, out, "Queue is empty")
}

func TestDaemonStatusRunning(t *testing.T) {
	env := setupCLITestEnv(t, true)
	out, _, err := env.run(t, "daemon", "status", "--json")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	var snap struct {
		Running bool `json:"running"`
		Health  struct {
			PID int `json:"pid"`
		} `json:"health"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !snap.Running || snap.Health.PID != os.Getpid() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestDaemonStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t, false)
	out, _, err := env.run(t, "daemon", "stop")
	if err != nil {
		t.Fatalf("daemon stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ytarchiver.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "http://127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "http://127.0.0.1:1", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	env := setupCLITestEnv(t, false, testsupport.WithAPIToken("s3cret"))
	out, _, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, redacted)
	if strings.Contains(out, "s3cret") {
		t.Fatalf("config show leaked the api token:\n%s", out)
	}
}

func TestWatchRequiresTerminal(t *testing.T) {
	env := setupCLITestEnv(t, true)
	if _, _, err := env.run(t, "watch"); err == nil {
		t.Fatal("expected watch to require a TTY")
	}
}

func TestDaemonLogsPrintsTail(t *testing.T) {
	env := setupCLITestEnv(t, false)
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(env.cfg.DaemonLogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := env.run(t, "daemon", "logs", "-n", "2")
	if err != nil {
		t.Fatalf("daemon logs: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestQueuePurgeAndHealth(t *testing.T) {
	env := setupCLITestEnv(t, false)
	ctx := context.Background()

	store := testsupport.MustOpenStore(t, env.cfg)
	if _, err := store.Enqueue(ctx, "https://example.com/watch?v=done", "mp4"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.DequeueNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("DequeueNext: %v", err)
	}
	if ok, err := store.FinishCurrent(ctx, job.ID, queue.StatusComplete, "done"); err != nil || !ok {
		t.Fatalf("FinishCurrent: ok=%v err=%v", ok, err)
	}
	if _, err := store.Enqueue(ctx, "https://example.com/watch?v=waiting", "mp4"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	out, _, err := env.run(t, "queue", "purge", "--older-than", "24h")
	if err != nil {
		t.Fatalf("queue purge --older-than: %v", err)
	}
	requireContains(t, out, "No finished jobs to purge")

	out, _, err = env.run(t, "queue", "purge")
	if err != nil {
		t.Fatalf("queue purge: %v", err)
	}
	requireContains(t, out, "Purged 1 finished job")

	out, _, err = env.run(t, "queue", "health", "--json")
	if err != nil {
		t.Fatalf("queue health --json: %v", err)
	}
	var report queueHealthReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode health: %v\n%s", err, out)
	}
	if !report.Database.DatabaseReadable || report.Jobs.Total != 1 || report.Jobs.Queued != 1 {
		t.Fatalf("unexpected health report %+v", report)
	}

	out, _, err = env.run(t, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Readable: yes")
	requireContains(t, out, "Total jobs: 1")
}

func TestConfigValidateRunsPreflight(t *testing.T) {
	env := setupCLITestEnv(t, false)

	out, _, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Videos directory")
	requireContains(t, out, "read/write ok")
}
