// Package daemon wires configuration into a running sync service: watcher,
// queue, publish pipeline, history, notifications, scheduler and the metrics
// endpoint.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/notesync/internal/config"
	"git.home.luguber.info/inful/notesync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
	"git.home.luguber.info/inful/notesync/internal/identity"
	"git.home.luguber.info/inful/notesync/internal/logfields"
	"git.home.luguber.info/inful/notesync/internal/metrics"
	"git.home.luguber.info/inful/notesync/internal/notify"
	"git.home.luguber.info/inful/notesync/internal/preprocess"
	"git.home.luguber.info/inful/notesync/internal/publish"
	"git.home.luguber.info/inful/notesync/internal/retry"
	"git.home.luguber.info/inful/notesync/internal/syncqueue"
	"git.home.luguber.info/inful/notesync/internal/version"
	"git.home.luguber.info/inful/notesync/internal/watcher"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon owns every long-lived component of a sync process.
type Daemon struct {
	cfg       *config.Config
	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	client     *gitdata.Client
	identities *identity.Cache
	store      eventstore.Store
	projection *eventstore.PathSummaryProjection
	notifier   notify.Notifier
	publisher  *RecordingPublisher
	mapper     *watcher.Mapper
	ignore     watcher.Ignorer
	queue      *syncqueue.Queue
	watcher    *watcher.Watcher
	scheduler  *Scheduler
	httpServer *HTTPServer
	registry   *prom.Registry
	workers    WorkerGroup
}

// New builds every component from cfg without starting anything.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}

	d := &Daemon{
		cfg:      cfg,
		registry: metrics.NewRegistry(),
	}
	d.status.Store(StatusStopped)
	recorder := metrics.NewPrometheusRecorder(d.registry)

	d.client = gitdata.NewClient(cfg.API.AccessToken,
		gitdata.WithBaseURL(cfg.API.URL),
		gitdata.WithTimeout(cfg.APITimeout()),
		gitdata.WithRateLimit(cfg.API.RequestsPerSecond),
	)
	d.identities = identity.NewCache(d.client)

	store, err := eventstore.NewSQLiteStore(cfg.State.Path)
	if err != nil {
		d.client.Close()
		return nil, err
	}
	d.store = store
	d.projection = eventstore.NewPathSummaryProjection(store)
	if err := d.projection.Rebuild(context.Background()); err != nil {
		slog.Warn("Failed to rebuild publish history projection", logfields.Error(err))
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		// Notifications are best effort; publishing continues without them.
		slog.Warn("Publish notifications disabled", logfields.Error(err))
		notifier = notify.Noop{}
	}
	d.notifier = notifier

	pipeline, err := publish.NewPipeline(d.client, d.identities, preprocess.Base64{}, publish.Options{
		Repository: publish.Repository{
			Owner:  cfg.Repository.Owner,
			Name:   cfg.Repository.Name,
			Branch: cfg.Repository.Branch,
		},
		Committer:     publish.Committer{Name: cfg.Commit.UserName, Email: cfg.Commit.UserEmail},
		Message:       cfg.Commit.Message,
		Policy:        retry.FromConfig(cfg.Sync),
		Recorder:      recorder,
		History:       store,
		SkipUnchanged: cfg.Sync.SkipUnchanged,
	})
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.publisher = NewRecordingPublisher(pipeline, store, d.projection, notifier)

	d.mapper, err = watcher.NewMapper(cfg.Watcher.LocalDirs, cfg.Repository.BaseDir)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.ignore = watcher.NewIgnorer(cfg.Watcher.Ignore)

	d.queue = syncqueue.New(d.publisher, d.mapper, syncqueue.Options{
		Workers:  cfg.Sync.Workers,
		Recorder: recorder,
		OnResume: d.identities.Reset,
	})

	if cfg.WatcherEnabled() {
		d.watcher, err = watcher.New(d.mapper.Roots(), d.ignore, cfg.DebounceWindow(), d.queue)
		if err != nil {
			_ = d.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create watcher").Build()
		}
	}

	if cfg.ResyncEvery() > 0 {
		d.scheduler, err = NewScheduler()
		if err != nil {
			_ = d.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create scheduler").Build()
		}
	}

	if cfg.Metrics.ListenAddr != "" {
		d.httpServer = NewHTTPServer(cfg.Metrics.ListenAddr, d, d.registry)
	}

	return d, nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	return d.status.Load().(Status)
}

// Start launches the components and returns once they are running.
// Publishes run under ctx.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if status := d.GetStatus(); status != StatusStopped {
		return ferrors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(status)).Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	slog.Info("Starting notesync daemon",
		slog.String("version", version.Version),
		logfields.Repository(d.cfg.Repository.Owner+"/"+d.cfg.Repository.Name),
		logfields.Branch(d.cfg.Repository.Branch),
		slog.Int("workers", d.cfg.Sync.Workers))

	if d.httpServer != nil {
		if err := d.httpServer.Start(runCtx); err != nil {
			return d.failStart(err)
		}
	}

	d.queue.Start(runCtx)
	d.workers.Go(func() { d.consumeFailures(runCtx) })

	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			return d.failStart(ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to start watcher").Build())
		}
	}

	if d.cfg.Watcher.EnumerateOnStartup {
		d.enumerate(runCtx, "startup")
	}

	if d.scheduler != nil {
		if _, err := d.scheduler.ScheduleResync(runCtx, d.cfg.ResyncEvery(), func(ctx context.Context) {
			d.enumerate(ctx, "resync")
		}); err != nil {
			return d.failStart(err)
		}
		d.scheduler.Start()
	}

	d.status.Store(StatusRunning)
	slog.Info("notesync daemon started", slog.Bool("watcher", d.watcher != nil))
	return nil
}

func (d *Daemon) failStart(err error) error {
	slog.Error("Daemon failed to start", logfields.Error(err))
	d.stopComponents(context.Background())
	d.status.Store(StatusError)
	return err
}

// Run starts the daemon, blocks until ctx is canceled and then stops it,
// allowing in-flight publishes up to shutdownTimeout to finish.
func (d *Daemon) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop stops intake, drains in-flight publishes (canceling them when ctx
// expires) and releases every resource.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.GetStatus() {
	case StatusStopped, StatusStopping, StatusError: // failStart already tore down
		return nil
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping notesync daemon")

	err := d.stopComponents(ctx)
	d.status.Store(StatusStopped)
	if err != nil {
		slog.Warn("Daemon stopped with errors", logfields.Error(err))
		return err
	}
	slog.Info("notesync daemon stopped")
	return nil
}

// stopComponents tears down in dependency order: producers first, then the
// queue, then the resources publishes use.
func (d *Daemon) stopComponents(ctx context.Context) error {
	var errs []error
	if d.scheduler != nil {
		errs = append(errs, d.scheduler.Stop())
	}
	if d.watcher != nil {
		errs = append(errs, d.watcher.Stop())
	}
	if err := d.queue.Stop(ctx); err != nil {
		slog.Warn("Shutdown deadline reached; in-flight publishes canceled", logfields.Error(err))
		errs = append(errs, err)
	}
	if d.cancel != nil {
		d.cancel()
	}
	errs = append(errs, d.workers.StopAndWait(ctx))
	if d.httpServer != nil {
		errs = append(errs, d.httpServer.Stop(ctx))
	}
	errs = append(errs, d.Close())
	return errors.Join(errs...)
}

// Close releases the watcher handle, API client, history store and notifier.
// It is safe to call more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.watcher != nil {
			errs = append(errs, d.watcher.Stop())
		}
		if d.client != nil {
			d.client.Close()
		}
		if d.store != nil {
			errs = append(errs, d.store.Close())
		}
		if d.notifier != nil {
			errs = append(errs, d.notifier.Close())
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

// Enqueue forwards a change event to the sync queue.
func (d *Daemon) Enqueue(ev syncqueue.ChangeEvent) error {
	return d.queue.Enqueue(ev)
}

// Resume clears an auth halt and forgets the cached identity.
func (d *Daemon) Resume() {
	d.queue.Resume()
}

// Push publishes one file immediately, bypassing the queue. An empty
// remotePath is derived from the watched directories.
func (d *Daemon) Push(ctx context.Context, localPath, remotePath string) (publish.Result, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return publish.Result{}, ferrors.WrapError(err, ferrors.CategoryValidation, "cannot resolve local path").
			WithContext("path", localPath).Build()
	}
	if remotePath == "" {
		remotePath, err = d.mapper.RemotePath(abs)
		if err != nil {
			return publish.Result{}, err
		}
	}
	task := publish.Task{
		ID:              uuid.NewString(),
		RemotePath:      remotePath,
		SourceLocalPath: abs,
		EnqueuedAt:      time.Now(),
		Attempt:         1,
	}
	return d.publisher.Publish(ctx, task)
}

// History returns the newest recorded outcomes, optionally for one remote path.
func (d *Daemon) History(ctx context.Context, remotePath string, limit int) ([]eventstore.Event, error) {
	return d.store.Recent(ctx, remotePath, limit)
}

func (d *Daemon) enumerate(ctx context.Context, reason string) {
	n, err := watcher.Enumerate(ctx, d.mapper.Roots(), d.ignore, func(ev syncqueue.ChangeEvent) {
		if err := d.queue.Enqueue(ev); err != nil {
			slog.Debug("Enumerated file not enqueued", logfields.LocalPath(ev.LocalPath), logfields.Error(err))
		}
	})
	if err != nil {
		slog.Warn("Enumeration incomplete", slog.String("reason", reason), logfields.Error(err))
	}
	slog.Info("Enumerated local notes", slog.String("reason", reason), slog.Int("files", n))
}

// consumeFailures logs terminal failures reported by the queue.
func (d *Daemon) consumeFailures(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue.Errors():
			attrs := []any{
				logfields.RemotePath(n.RemotePath),
				logfields.LocalPath(n.LocalPath),
				logfields.Category(n.Reason),
				logfields.Error(n.Err),
			}
			switch n.Reason {
			case string(ferrors.CategoryAuth):
				slog.Error("Publishing halted; credentials were rejected. Fix the token, then resume with SIGHUP or POST /resume", attrs...)
			case string(ferrors.CategoryUnsupported):
				slog.Warn("Change not propagated", attrs...)
			default:
				slog.Error("Publish failed permanently", attrs...)
			}
		}
	}
}
