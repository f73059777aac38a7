package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ytarchiver/internal/config"
	"ytarchiver/internal/events"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/testsupport"
	"ytarchiver/internal/workflow"
)

// recordingChannel remembers every write that landed.
type recordingChannel struct {
	progress.Channel
	mu     sync.Mutex
	writes []progress.Record
}

func (r *recordingChannel) Reset(ctx context.Context, rec progress.Record) error {
	if err := r.Channel.Reset(ctx, rec); err != nil {
		return err
	}
	r.append(rec)
	return nil
}

func (r *recordingChannel) Update(ctx context.Context, rec progress.Record) (bool, error) {
	ok, err := r.Channel.Update(ctx, rec)
	if ok {
		stored, readErr := r.Channel.Read(ctx)
		if readErr == nil {
			rec = stored
		}
		r.append(rec)
	}
	return ok, err
}

func (r *recordingChannel) append(rec progress.Record) {
	r.mu.Lock()
	r.writes = append(r.writes, rec)
	r.mu.Unlock()
}

func (r *recordingChannel) forJob(id string) []progress.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Record
	for _, rec := range r.writes {
		if rec.JobID == id {
			out = append(out, rec)
		}
	}
	return out
}

type countingKiller struct {
	calls atomic.Int32
}

func (k *countingKiller) Terminate(pgid int, grace time.Duration) error {
	k.calls.Add(1)
	return extractor.TerminateGroup(pgid, grace)
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	progress *recordingChannel
	library  *library.Library
	killer   *countingKiller
	events   *events.Memory
	manager  *workflow.Manager
}

type harnessOptions struct {
	mode      string
	extractor workflow.Extractor
	tweak     func(*config.Config)
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	if opts.mode == "" {
		opts.mode = testsupport.YTDLPOK
	}
	cfg := testsupport.NewConfig(t, testsupport.WithFakeYTDLP(opts.mode))
	if opts.tweak != nil {
		opts.tweak(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	channel, err := progress.NewFileChannel(cfg.ProgressPath())
	if err != nil {
		t.Fatalf("NewFileChannel: %v", err)
	}
	lib, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	ext := opts.extractor
	if ext == nil {
		client, err := extractor.New(cfg)
		if err != nil {
			t.Fatalf("extractor.New: %v", err)
		}
		ext = client
	}

	h := &harness{
		cfg:      cfg,
		store:    store,
		progress: &recordingChannel{Channel: channel},
		library:  lib,
		killer:   &countingKiller{},
		events:   &events.Memory{},
	}
	h.manager = workflow.NewManager(cfg, store, h.progress, lib, ext, logging.NewNop(),
		workflow.WithProcessKiller(h.killer),
		workflow.WithPublisher(h.events),
	)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

func (h *harness) admit(t *testing.T, url string) *queue.Job {
	t.Helper()
	job, err := h.manager.Admit(context.Background(), url, "mp4")
	if err != nil {
		t.Fatalf("Admit(%q): %v", url, err)
	}
	return job
}

func (h *harness) job(t *testing.T, id string) *queue.Job {
	t.Helper()
	job, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	if job == nil {
		t.Fatalf("job %s missing", id)
	}
	return job
}

func (h *harness) waitStatus(t *testing.T, id string, status queue.Status) *queue.Job {
	t.Helper()
	var job *queue.Job
	waitFor(t, 15*time.Second, func() bool {
		job = h.job(t, id)
		return job.Status == status
	}, "job "+id+" to reach "+string(status))
	return job
}

func (h *harness) artifacts(t *testing.T, id string) []string {
	t.Helper()
	matches, err := extractor.JobArtifacts(h.cfg.Paths.VideosDir, id)
	if err != nil {
		t.Fatalf("JobArtifacts: %v", err)
	}
	return matches
}

func (h *harness) currentID(t *testing.T) string {
	t.Helper()
	current, err := h.store.PeekCurrent(context.Background())
	if err != nil {
		t.Fatalf("PeekCurrent: %v", err)
	}
	if current == nil {
		return ""
	}
	return current.ID
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// stubExtractor fakes the tool in-process.
type stubExtractor struct {
	probeErr error
	title    string
	block    bool
	lines    []string
	write    bool
}

func (s *stubExtractor) Probe(ctx context.Context, url string) (extractor.Metadata, error) {
	if s.probeErr != nil {
		return extractor.Metadata{}, s.probeErr
	}
	return extractor.Metadata{Title: s.title}, nil
}

func (s *stubExtractor) Download(ctx context.Context, req extractor.DownloadRequest) error {
	for _, line := range s.lines {
		if req.Hooks.OnLine != nil && !req.Hooks.OnLine(line) {
			return extractor.ErrAborted
		}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.write {
		name := req.JobID + "_" + strings.ReplaceAll(s.title, "/", "") + ".mp4"
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte("media"), 0o644); err != nil {
			return err
		}
	}
	return nil
}
