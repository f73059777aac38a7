package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ytarchiver/internal/config"
	"ytarchiver/internal/services"
)

const (
	defaultGrace         = 5 * time.Second
	defaultProbeTimeout  = 60 * time.Second
	versionTimeout       = 30 * time.Second
	updateTimeout        = 5 * time.Minute
	releaseLookupTimeout = 10 * time.Second
)

// Metadata is the subset of the tool's JSON description the archiver uses.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
}

// DownloadRequest describes one streaming download.
type DownloadRequest struct {
	JobID     string
	URL       string
	Format    string
	OutputDir string
	Hooks     StreamHooks
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithHTTPClient overrides the client used for release lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary        string
	probeTimeout  time.Duration
	grace         time.Duration
	updateCommand []string
	releaseURL    string
	http          *http.Client
	exec          Executor
}

// New constructs a client from the ytdlp and workflow settings.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	binary := strings.TrimSpace(cfg.YTDLP.Binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	grace := cfg.TerminateGrace()
	if grace <= 0 {
		grace = defaultGrace
	}
	probeTimeout := cfg.ProbeTimeout()
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	client := &Client{
		binary:        binary,
		probeTimeout:  probeTimeout,
		grace:         grace,
		updateCommand: append([]string(nil), cfg.YTDLP.UpdateCommand...),
		releaseURL:    cfg.YTDLP.ReleaseURL,
		http:          &http.Client{Timeout: releaseLookupTimeout},
		exec:          commandExecutor{grace: grace},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// Probe fetches metadata for url without downloading.
func (c *Client) Probe(ctx context.Context, url string) (Metadata, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	stdout, stderr, err := c.exec.Run(probeCtx, c.binary, ProbeArgs(url))
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrExternalTool, "extractor", "probe", firstLine(stderr), err)
	}
	stdout = bytes.TrimSpace(stdout)
	if len(stdout) == 0 {
		return Metadata{}, services.Wrap(services.ErrExternalTool, "extractor", "probe", "empty metadata output", nil)
	}
	// Playlists print one document per line; the first entry is enough.
	if idx := bytes.IndexByte(stdout, '\n'); idx >= 0 {
		stdout = stdout[:idx]
	}
	var meta Metadata
	if err := json.Unmarshal(stdout, &meta); err != nil {
		return Metadata{}, services.Wrap(services.ErrExternalTool, "extractor", "probe", "decode metadata", err)
	}
	return meta, nil
}

// Download runs the tool for req and blocks until it exits. It returns
// ErrAborted when a hook stopped the stream and an *ExitError (wrapped in
// ErrSubprocessFailure) when the tool failed.
func (c *Client) Download(ctx context.Context, req DownloadRequest) error {
	if strings.TrimSpace(req.JobID) == "" {
		return services.Wrap(services.ErrInvalidInput, "extractor", "download", "job id required", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return services.Wrap(services.ErrInvalidInput, "extractor", "download", "output directory required", nil)
	}
	args, err := DownloadArgs(req.Format, OutputTemplate(req.OutputDir, req.JobID), req.URL)
	if err != nil {
		return err
	}
	err = c.exec.Stream(ctx, c.binary, args, req.Hooks)
	if err == nil || errors.Is(err, ErrAborted) || ctx.Err() != nil {
		return err
	}
	return services.Wrap(services.ErrSubprocessFailure, "extractor", "download", "yt-dlp exited with failure", err)
}

// Version returns the installed tool version.
func (c *Client) Version(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	stdout, stderr, err := c.exec.Run(runCtx, c.binary, []string{"--version"})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extractor", "version", firstLine(stderr), err)
	}
	version := firstLine(stdout)
	if version == "" {
		return "", services.Wrap(services.ErrExternalTool, "extractor", "version", "empty version output", nil)
	}
	return version, nil
}

// LatestRelease looks up the newest published release tag.
func (c *Client) LatestRelease(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.releaseURL) == "" {
		return "", services.Wrap(services.ErrConfiguration, "extractor", "latest release", "release_url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "extractor", "latest release", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExternalTool, "extractor", "latest release", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	var payload struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extractor", "latest release", "decode release", err)
	}
	if payload.TagName == "" {
		return "", services.Wrap(services.ErrExternalTool, "extractor", "latest release", "release has no tag", nil)
	}
	return payload.TagName, nil
}

// Update runs the configured update command and returns its combined output.
func (c *Client) Update(ctx context.Context) (string, error) {
	if len(c.updateCommand) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "extractor", "update", "update_command not configured", nil)
	}
	runCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()
	stdout, stderr, err := c.exec.Run(runCtx, c.updateCommand[0], c.updateCommand[1:])
	output := strings.TrimSpace(string(stdout) + "\n" + string(stderr))
	if err != nil {
		return output, services.Wrap(services.ErrExternalTool, "extractor", "update", "update command failed", err)
	}
	return output, nil
}

func firstLine(data []byte) string {
	text := strings.TrimSpace(string(data))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
