package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ytarchiver/internal/config"
	"ytarchiver/internal/events"
	"ytarchiver/internal/extractor"
	"ytarchiver/internal/library"
	"ytarchiver/internal/logging"
	"ytarchiver/internal/notifications"
	"ytarchiver/internal/progress"
	"ytarchiver/internal/queue"
)

// Extractor is the subset of the yt-dlp client the worker drives.
type Extractor interface {
	Probe(ctx context.Context, url string) (extractor.Metadata, error)
	Download(ctx context.Context, req extractor.DownloadRequest) error
}

// ProcessKiller stops a worker's subprocess tree.
type ProcessKiller interface {
	Terminate(pgid int, grace time.Duration) error
}

// Manager owns the single active job: it promotes pending jobs, runs the
// worker goroutine, cancels jobs and reclaims orphaned ones.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	progress  progress.Channel
	library   *library.Library
	extractor Extractor
	killer    ProcessKiller
	notifier  notifications.Service
	publisher events.Publisher
	parser    extractor.ProgressParser
	logger    *slog.Logger

	videosDir         string
	settleDelay       time.Duration
	grace             time.Duration
	heartbeatInterval time.Duration
	staleThreshold    time.Duration
	maxRecoveries     int

	// dispatchMu serializes every transition of current: dispatch, cancel,
	// reclaim. Workers never take it while registered as a task.
	dispatchMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	tasks    map[string]*task
	lastErr  error
	lastJob  string
	started  time.Time
	finished int
}

type task struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
	pgid   atomic.Int64
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithProcessKiller replaces the process-group terminator.
func WithProcessKiller(killer ProcessKiller) Option {
	return func(m *Manager) {
		if killer != nil {
			m.killer = killer
		}
	}
}

// WithNotifier sets the push notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(m *Manager) {
		if publisher != nil {
			m.publisher = publisher
		}
	}
}

// WithProgressParser swaps the progress line parser.
func WithProgressParser(parser extractor.ProgressParser) Option {
	return func(m *Manager) {
		if parser != nil {
			m.parser = parser
		}
	}
}

// NewManager wires the manager. It does nothing until Start; an unstarted
// manager still admits and cancels jobs but never launches workers.
func NewManager(cfg *config.Config, store *queue.Store, channel progress.Channel, lib *library.Library, ext Extractor, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:               cfg,
		store:             store,
		progress:          channel,
		library:           lib,
		extractor:         ext,
		killer:            extractor.GroupKiller{},
		notifier:          notifications.NewService(cfg),
		publisher:         events.Nop{},
		parser:            extractor.DefaultParser(),
		logger:            logging.NewComponentLogger(logger, "workflow"),
		videosDir:         cfg.Paths.VideosDir,
		settleDelay:       cfg.SettleDelay(),
		grace:             cfg.TerminateGrace(),
		heartbeatInterval: cfg.HeartbeatInterval(),
		staleThreshold:    cfg.StaleThreshold(),
		maxRecoveries:     cfg.Workflow.MaxRecoveries,
		tasks:             make(map[string]*task),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) registerTask(jobID string) (*task, context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, nil, false
	}
	ctx, cancel := context.WithCancel(m.runCtx)
	t := &task{jobID: jobID, cancel: cancel, done: make(chan struct{})}
	m.tasks[jobID] = t
	m.wg.Add(1)
	return t, ctx, true
}

func (m *Manager) finishTask(t *task) {
	m.mu.Lock()
	if m.tasks[t.jobID] == t {
		delete(m.tasks, t.jobID)
	}
	m.mu.Unlock()
	t.cancel()
	close(t.done)
}

func (m *Manager) lookupTask(jobID string) *task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[jobID]
}

// HasLiveWorker reports whether a worker goroutine currently owns jobID.
func (m *Manager) HasLiveWorker(jobID string) bool {
	return m.lookupTask(jobID) != nil
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordFinished(jobID string) {
	m.mu.Lock()
	m.lastJob = jobID
	m.finished++
	m.mu.Unlock()
}
