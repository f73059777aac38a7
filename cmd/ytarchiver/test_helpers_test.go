package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytarchiver/internal/api"
	"ytarchiver/internal/config"
	"ytarchiver/internal/daemon"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/testsupport"
	"ytarchiver/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	apiURL     string
	configPath string
}

// setupCLITestEnv writes a config file for a fresh state directory. With
// startDaemon the full daemon is served in-process and apiURL points at it;
// otherwise apiURL points at a closed port so commands use the local store.
func setupCLITestEnv(t *testing.T, startDaemon bool, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithFakeYTDLP(testsupport.YTDLPOK)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		apiURL:     "http://127.0.0.1:1",
		configPath: configPath,
	}
	if !startDaemon {
		return env
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
	client, err := extractor.New(cfg)
	if err != nil {
		t.Fatalf("extractor.New: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, channel, lib, client, logger)
	svc := api.NewService(mgr, store, lib, client, logger)
	d, err := daemon.New(cfg, store, mgr, svc, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(t.Context()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	env.store = store
	env.daemon = d
	env.apiURL = "http://" + d.Address()
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.apiURL, e.configPath)
}

func runCLI(t *testing.T, args []string, apiURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", apiURL}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
