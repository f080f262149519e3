package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"mp4forge/internal/api"
	"mp4forge/internal/config"
	"mp4forge/internal/deps"
	"mp4forge/internal/events"
	"mp4forge/internal/logging"
	"mp4forge/internal/mp4box"
	"mp4forge/internal/notifications"
	"mp4forge/internal/queue"
	"mp4forge/internal/services"
	"mp4forge/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	configPath string
	version    string
	logger     *slog.Logger
	muxer      workflow.Muxer
	notifier   notifications.Service

	lock *flock.Flock

	mu        sync.Mutex
	store     *queue.Store
	queue     *queue.Manager
	executor  *mp4box.Executor
	processor *workflow.Processor
	service   *api.Service
	hub       *events.Hub
	scheduler *cron.Cron
	server    *apiServer
	startedAt time.Time
	cancel    context.CancelFunc
	workers   sync.WaitGroup

	running atomic.Bool
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithConfigPath records where the configuration was loaded from.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(version string) Option {
	return func(d *Daemon) { d.version = version }
}

// WithMuxer replaces the MP4Box executor.
func WithMuxer(muxer workflow.Muxer) Option {
	return func(d *Daemon) { d.muxer = muxer }
}

// WithNotifier replaces the ntfy notification service.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) { d.notifier = svc }
}

// New constructs a daemon. Nothing is opened until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		lock:   flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}
	return d, nil
}

// Start acquires the daemon lock, restores the queue, and brings up the
// processor, observers, maintenance schedule, and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConflict, "daemon", "start", "another mp4forged instance is already running", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.startLocked(ctx); err != nil {
		d.teardownLocked()
		return err
	}
	d.running.Store(true)
	d.logger.Info("mp4forge daemon started",
		logging.String("lock", d.cfg.LockPath()),
		logging.String("api", d.server.addr()),
		logging.Bool("persist", d.store != nil),
	)
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.startedAt = time.Now()

	d.store = d.openStore()
	var persister queue.Persister
	if d.store != nil {
		persister = d.store
	}
	d.queue = queue.NewManager(persister, d.logger)
	if d.store != nil {
		restored, err := d.queue.LoadFromStore(runCtx)
		if err != nil {
			logging.WarnWithContext(d.logger, "queue restore failed", "queue_restore_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the queue database with mp4forge status"),
				logging.String(logging.FieldImpact, "previously queued jobs are not available"),
			)
		} else if restored > 0 {
			d.logger.Info("queue restored", logging.Int("jobs", restored))
		}
	}

	d.hub = events.NewHub(0)
	d.startObserver(runCtx, d.hub)
	d.startObserver(runCtx, notifications.NewObserver(d.notifier, d.cfg.NotificationTimeout(), d.logger))

	muxer := d.muxer
	if muxer == nil {
		d.executor = mp4box.NewFromConfig(d.cfg, d.queue, d.logger)
		muxer = d.executor
	}
	d.processor = workflow.NewProcessor(d.cfg, d.queue, muxer, d.logger)
	d.service = api.NewService(d.queue, d.processor)

	scheduler, err := d.newScheduler(runCtx)
	if err != nil {
		return err
	}
	d.scheduler = scheduler

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		return err
	}
	if err := server.start(); err != nil {
		return err
	}
	d.server = server

	if d.cfg.Queue.AutoStart {
		d.processor.Wake()
	}
	return nil
}

func (d *Daemon) openStore() *queue.Store {
	if !d.cfg.Queue.Persist {
		return nil
	}
	store, err := queue.Open(d.cfg)
	if err != nil {
		logging.WarnWithContext(d.logger, "queue persistence unavailable", "queue_store_open_failed",
			logging.Error(err),
			logging.String("path", d.cfg.Paths.QueueDB),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "jobs are kept in memory only"),
		)
		return nil
	}
	if backup := store.BackupPath(); backup != "" {
		d.logger.Warn("queue database schema was reset", logging.String("backup", backup))
	}
	return store
}

func (d *Daemon) startObserver(ctx context.Context, target queue.Observer) {
	dispatcher := queue.NewDispatcher(target, 0, d.logger)
	d.queue.RegisterObserver(dispatcher)
	d.workers.Go(func() { dispatcher.Run(ctx) })
}

// Stop shuts down the API, stops the processor (requeueing an interrupted
// job), and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	// Handlers take d.mu, so drain the API before tearing down the rest.
	d.mu.Lock()
	server := d.server
	d.server = nil
	d.mu.Unlock()
	server.stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownLocked()
	d.running.Store(false)
	d.logger.Info("mp4forge daemon stopped")
}

func (d *Daemon) teardownLocked() {
	if d.server != nil {
		d.server.stop()
		d.server = nil
	}
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
		d.scheduler = nil
	}
	if d.processor != nil {
		if err := d.processor.Stop(); err != nil {
			d.logger.Warn("processor stop failed", logging.Error(err))
		}
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workers.Wait()
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("failed to close queue database", logging.Error(err))
		}
		d.store = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the address the HTTP API listens on.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server.addr()
}

// Service returns the API facade, or nil before Start.
func (d *Daemon) Service() *api.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.service
}

// Events returns the event hub, or nil before Start.
func (d *Daemon) Events() *events.Hub {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hub
}

// TestNotification publishes a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.Lock()
	service := d.service
	store := d.store
	executor := d.executor
	startedAt := d.startedAt
	addr := d.server.addr()
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      d.version,
		Bind:         addr,
		LockFilePath: d.cfg.LockPath(),
		ConfigPath:   d.configPath,
		ActiveMuxes:  []string{},
	}
	if !startedAt.IsZero() {
		status.StartedAt = startedAt.UTC().Format(time.RFC3339)
	}
	if service != nil {
		status.Queue = service.QueueStatus()
		status.Processor = service.ProcessorStatus()
	}
	if executor != nil {
		status.ActiveMuxes = executor.Active()
	}
	for _, dep := range deps.CheckBinaries(deps.Requirements(d.cfg)) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	if store != nil {
		health, err := store.CheckHealth(ctx)
		db := api.DatabaseHealth{
			Path:          health.DBPath,
			Exists:        health.DatabaseExists,
			Readable:      health.DatabaseReadable,
			SchemaVersion: health.SchemaVersion,
			SchemaCurrent: health.SchemaCurrent,
			Integrity:     health.IntegrityCheck,
			TotalJobs:     health.TotalJobs,
			Error:         health.Error,
		}
		if err != nil && db.Error == "" {
			db.Error = err.Error()
		}
		status.Database = &db
	}
	return status
}
