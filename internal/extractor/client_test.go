package extractor_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"ytarchiver/internal/extractor"
	"ytarchiver/internal/services"
	"ytarchiver/internal/testsupport"
)

func newClient(t *testing.T, mode string, opts ...extractor.Option) (*extractor.Client, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFakeYTDLP(mode))
	client, err := extractor.New(cfg, opts...)
	if err != nil {
		t.Fatalf("extractor.New: %v", err)
	}
	return client, cfg.Paths.VideosDir
}

func TestProbeReturnsTitle(t *testing.T) {
	client, _ := newClient(t, testsupport.YTDLPOK)
	meta, err := client.Probe(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if meta.Title != testsupport.FakeTitle || meta.ID != "abc123" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestProbeHonoursContext(t *testing.T) {
	client, _ := newClient(t, testsupport.YTDLPSlowProbe)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Probe(ctx, "https://example.com/v")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("probe did not stop promptly: %v", elapsed)
	}
}

func TestDownloadStreamsProgressAndProducesFile(t *testing.T) {
	client, dir := newClient(t, testsupport.YTDLPOK)

	var (
		mu    sync.Mutex
		lines []string
		pgid  int
	)
	err := client.Download(context.Background(), extractor.DownloadRequest{
		JobID:     "job1",
		URL:       "https://example.com/v",
		Format:    "mp4",
		OutputDir: dir,
		Hooks: extractor.StreamHooks{
			OnStart: func(id int) { pgid = id },
			OnLine: func(line string) bool {
				mu.Lock()
				lines = append(lines, line)
				mu.Unlock()
				return true
			},
		},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if pgid <= 0 {
		t.Fatal("expected OnStart to receive a process group id")
	}
	parser := extractor.DefaultParser()
	var seen int
	for _, line := range lines {
		if _, ok := parser.Parse(line); ok {
			seen++
		}
	}
	if seen != 5 {
		t.Fatalf("expected 5 progress lines, got %d in %v", seen, lines)
	}
	artifact, err := extractor.FindArtifact(dir, "job1")
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if filepath.Base(artifact) != "job1_Test Video Part 1.mp4" {
		t.Fatalf("unexpected artifact %q", artifact)
	}
}

func TestDownloadAudioFormat(t *testing.T) {
	client, dir := newClient(t, testsupport.YTDLPOK)
	err := client.Download(context.Background(), extractor.DownloadRequest{
		JobID: "job2", URL: "https://example.com/v", Format: "mp3", OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	artifact, _ := extractor.FindArtifact(dir, "job2")
	if !strings.HasSuffix(artifact, ".mp3") {
		t.Fatalf("expected mp3 artifact, got %q", artifact)
	}
}

func TestDownloadFailureIsSubprocessFailure(t *testing.T) {
	client, dir := newClient(t, testsupport.YTDLPFail)
	err := client.Download(context.Background(), extractor.DownloadRequest{
		JobID: "job1", URL: "https://example.com/v", Format: "mp4", OutputDir: dir,
	})
	if !errors.Is(err, services.ErrSubprocessFailure) {
		t.Fatalf("expected subprocess failure, got %v", err)
	}
	var exitErr *extractor.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError in chain, got %T", err)
	}
	if !strings.Contains(exitErr.Error(), "403") {
		t.Fatalf("expected stderr tail in error, got %q", exitErr.Error())
	}
}

func TestDownloadAbortKillsProcessGroup(t *testing.T) {
	client, dir := newClient(t, testsupport.YTDLPHang)

	var pgid int
	start := time.Now()
	err := client.Download(context.Background(), extractor.DownloadRequest{
		JobID: "job1", URL: "https://example.com/v", Format: "mp4", OutputDir: dir,
		Hooks: extractor.StreamHooks{
			OnStart: func(id int) { pgid = id },
			OnLine: func(line string) bool {
				return !strings.Contains(line, "25.0%")
			},
		},
	})
	if !errors.Is(err, extractor.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("abort took too long: %v", elapsed)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		err := unix.Kill(-pgid, 0)
		if errors.Is(err, unix.ESRCH) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected process group %d to be gone, got %v", pgid, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDownloadContextCancel(t *testing.T) {
	client, dir := newClient(t, testsupport.YTDLPHang)
	ctx, cancel := context.WithCancel(context.Background())
	err := client.Download(ctx, extractor.DownloadRequest{
		JobID: "job1", URL: "https://example.com/v", Format: "mp4", OutputDir: dir,
		Hooks: extractor.StreamHooks{
			OnLine: func(line string) bool {
				if strings.Contains(line, "25.0%") {
					cancel()
				}
				return true
			},
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTerminateGroupMissingIsNoop(t *testing.T) {
	if err := extractor.TerminateGroup(0, time.Second); err != nil {
		t.Fatalf("TerminateGroup(0): %v", err)
	}
	if err := extractor.TerminateGroup(4194000, 10*time.Millisecond); err != nil {
		t.Fatalf("TerminateGroup(missing): %v", err)
	}
}

func TestVersion(t *testing.T) {
	client, _ := newClient(t, testsupport.YTDLPOK)
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "2024.08.06" {
		t.Fatalf("unexpected version %q", version)
	}
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/vnd.github+json" {
			t.Errorf("unexpected Accept header %q", r.Header.Get("Accept"))
		}
		_, _ = w.Write([]byte(`{"tag_name":"2024.09.01","name":"yt-dlp 2024.09.01"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithFakeYTDLP(testsupport.YTDLPOK))
	cfg.YTDLP.ReleaseURL = srv.URL
	client, err := extractor.New(cfg, extractor.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tag, err := client.LatestRelease(context.Background())
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}
	if tag != "2024.09.01" {
		t.Fatalf("unexpected tag %q", tag)
	}
}

func TestLatestReleaseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithFakeYTDLP(testsupport.YTDLPOK))
	cfg.YTDLP.ReleaseURL = srv.URL
	client, _ := extractor.New(cfg)
	if _, err := client.LatestRelease(context.Background()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestUpdateRunsConfiguredCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeYTDLP(testsupport.YTDLPOK))
	script := filepath.Join(testsupport.BaseDir(cfg), "bin", "updater")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"updated $1\"\n"), 0o755); err != nil {
		t.Fatalf("write updater: %v", err)
	}
	cfg.YTDLP.UpdateCommand = []string{script, "yt-dlp"}
	client, _ := extractor.New(cfg)
	out, err := client.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out != "updated yt-dlp" {
		t.Fatalf("unexpected output %q", out)
	}

	cfg.YTDLP.UpdateCommand = nil
	client, _ = extractor.New(cfg)
	if _, err := client.Update(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
