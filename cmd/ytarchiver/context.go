package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ytarchiver/internal/api"
	"ytarchiver/internal/config"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
	"ytarchiver/internal/workflow"
)

// backend is the operation surface shared by the HTTP client and the
// in-process service used when the daemon is down.
type backend interface {
	Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error)
	Status(ctx context.Context) (api.StatusResponse, error)
	Jobs(ctx context.Context, limit int) (api.JobListResponse, error)
	Cancel(ctx context.Context, id string) (api.CancelResponse, error)
	Reconcile(ctx context.Context, force bool) (api.ReconcileResponse, error)
	Videos(ctx context.Context) (api.VideoListResponse, error)
	DeleteVideo(ctx context.Context, id string) (api.DeleteVideoResponse, error)
	ToolVersion(ctx context.Context) (api.ToolVersionResponse, error)
	UpdateTool(ctx context.Context) (api.ToolUpdateResponse, error)
}

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) baseURL() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimRight(strings.TrimSpace(*c.apiFlag), "/")
	}
	cfg := c.configValue()
	if cfg == nil {
		return api.BaseURL("")
	}
	return api.BaseURL(cfg.Paths.APIBind)
}

func (c *commandContext) client() *api.Client {
	token := ""
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Paths.APIToken
	}
	return api.NewClient(c.baseURL(), token, nil)
}

// withBackend runs fn against the daemon when it answers and against the
// local queue database otherwise. remote tells fn which one it got.
func (c *commandContext) withBackend(cmd *cobra.Command, fn func(b backend, remote bool) error) error {
	client := c.client()
	if _, err := client.Health(cmd.Context()); err == nil {
		return fn(client, true)
	} else if !api.IsUnavailable(err) {
		return err
	}

	svc, closeFn, err := c.localService()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc, false)
}

// withClient requires a running daemon.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(*api.Client) error) error {
	client := c.client()
	if _, err := client.Health(cmd.Context()); err != nil {
		if api.IsUnavailable(err) {
			return fmt.Errorf("connect to daemon at %s: not running; start it with `ytarchiver daemon start`", c.baseURL())
		}
		return err
	}
	return fn(client)
}

// withStore opens the queue database directly. SQLite WAL mode lets this
// run alongside a live daemon.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// localService wires an unstarted workflow manager over the on-disk state.
// Submissions are queued and picked up by the next daemon start.
func (c *commandContext) localService() (*api.Service, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open queue: %w", err)
	}
	channel, err := progress.NewFileChannel(cfg.ProgressPath())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open progress channel: %w", err)
	}
	lib, err := library.Open(cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	client, err := extractor.New(cfg)
	if err != nil {
		_ = lib.Close()
		_ = store.Close()
		return nil, nil, err
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, channel, lib, client, logger)
	svc := api.NewService(mgr, store, lib, client, logger)
	closeFn := func() {
		_ = lib.Close()
		_ = store.Close()
	}
	return svc, closeFn, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
