package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/instrumentation"
	"github.com/teemow/batchfs/internal/logging"
	"github.com/teemow/batchfs/internal/tools/batch"
)

// Config holds the settings a ServerContext is built from.
type Config struct {
	// Root confines every operation path to this directory. Empty means
	// paths are used as given.
	Root string

	// ReadOnly rejects every operation except read.
	ReadOnly bool

	// Defaults fill batch options a request omits.
	Defaults batch.Options

	// Filesystem overrides the OS filesystem derived from Root.
	Filesystem billy.Filesystem

	// BackoffUnit overrides the linear retry step. Zero keeps the default.
	BackoffUnit time.Duration

	// Logger receives engine logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// ServerContext holds the shared state of the MCP server: the filesystem,
// the batch engine built on it and the instrumentation hooks.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	fs       billy.Filesystem
	root     string
	readOnly bool
	defaults batch.Options
	backoff  time.Duration
	logger   *slog.Logger

	mu          sync.RWMutex
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	coordinator *batch.Coordinator
	shutdown    bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, cfg Config) (*ServerContext, error) {
	if cfg.Defaults == (batch.Options{}) {
		cfg.Defaults = batch.DefaultOptions()
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch defaults: %w", err)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = fileops.NewOSFilesystem(cfg.Root)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		fs:       cfg.Filesystem,
		root:     cfg.Root,
		readOnly: cfg.ReadOnly,
		defaults: cfg.Defaults,
		backoff:  cfg.BackoffUnit,
		logger:   cfg.Logger,
	}
	sc.coordinator = sc.newCoordinator(nil)
	return sc, nil
}

func (sc *ServerContext) newCoordinator(metrics *instrumentation.Metrics) *batch.Coordinator {
	opts := []fileops.ExecutorOption{
		fileops.WithLogger(sc.logger),
		fileops.WithMetrics(metrics),
	}
	if sc.backoff > 0 {
		opts = append(opts, fileops.WithBackoffUnit(sc.backoff))
	}
	exec := fileops.NewExecutor(sc.fs, opts...)
	return batch.NewCoordinator(exec, logging.NewSlogAdapter(sc.logger), batch.WithMetrics(metrics))
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Filesystem returns the filesystem operations run against.
func (sc *ServerContext) Filesystem() billy.Filesystem {
	return sc.fs
}

// Root returns the configured root directory, or "" when unrooted.
func (sc *ServerContext) Root() string {
	return sc.root
}

// ReadOnly reports whether only read operations are accepted.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// Defaults returns the batch options applied when a request omits them.
func (sc *ServerContext) Defaults() batch.Options {
	return sc.defaults
}

// Validator returns a request validator honouring the server defaults and
// read-only mode.
func (sc *ServerContext) Validator() *batch.Validator {
	return &batch.Validator{Defaults: sc.defaults, ReadOnly: sc.readOnly}
}

// Coordinator returns the batch coordinator.
func (sc *ServerContext) Coordinator() *batch.Coordinator {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.coordinator
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, or nil when metrics are disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder and rebuilds the batch engine so
// file operations and batch runs are recorded too.
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	coordinator := sc.newCoordinator(metrics)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
	sc.coordinator = coordinator
}

// AuditLogger returns the audit logger, or nil when auditing is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(logger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
