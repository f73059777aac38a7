package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ytarchiver/internal/services"
)

// HTTPError is a non-2xx daemon response.
type HTTPError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps client-facing status codes back onto the error markers.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return services.ErrInvalidInput
	case http.StatusNotFound:
		return services.ErrJobNotFound
	default:
		return nil
	}
}

// Client provides HTTP access to the daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon at baseURL. A nil httpClient uses
// a client with a 30 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// BaseURL turns an api_bind address into a URL clients can dial. Wildcard
// hosts are replaced with the loopback address.
func BaseURL(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "http://" + strings.TrimSpace(bind)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Health returns daemon runtime information.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
	return resp, err
}

// Submit admits a job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &resp)
	return resp, err
}

// Status returns the status view.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Jobs returns recent job history.
func (c *Client) Jobs(ctx context.Context, limit int) (JobListResponse, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp JobListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Cancel cancels a job.
func (c *Client) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp, err
}

// Reconcile runs an operator reconcile pass.
func (c *Client) Reconcile(ctx context.Context, force bool) (ReconcileResponse, error) {
	path := "/api/reconcile"
	if force {
		path += "?force=true"
	}
	var resp ReconcileResponse
	err := c.do(ctx, http.MethodPost, path, nil, &resp)
	return resp, err
}

// Videos lists the library.
func (c *Client) Videos(ctx context.Context) (VideoListResponse, error) {
	var resp VideoListResponse
	err := c.do(ctx, http.MethodGet, "/api/videos", nil, &resp)
	return resp, err
}

// DeleteVideo removes a library entry.
func (c *Client) DeleteVideo(ctx context.Context, id string) (DeleteVideoResponse, error) {
	var resp DeleteVideoResponse
	err := c.do(ctx, http.MethodDelete, "/api/videos/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ToolVersion reports yt-dlp versions.
func (c *Client) ToolVersion(ctx context.Context) (ToolVersionResponse, error) {
	var resp ToolVersionResponse
	err := c.do(ctx, http.MethodGet, "/api/tool/version", nil, &resp)
	return resp, err
}

// UpdateTool runs the yt-dlp update command on the daemon host.
func (c *Client) UpdateTool(ctx context.Context) (ToolUpdateResponse, error) {
	var resp ToolUpdateResponse
	err := c.do(ctx, http.MethodPost, "/api/tool/update", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var envelope ErrorResponse
		if json.Unmarshal(data, &envelope) == nil {
			httpErr.Message = envelope.Error
			httpErr.Kind = envelope.Kind
		} else {
			httpErr.Message = strings.TrimSpace(string(data))
		}
		return httpErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnavailable reports whether err means no daemon answered.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return false
	}
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || (errors.As(err, &netErr) && netErr.Timeout())
}
