// Package syncqueue coalesces change events per remote path and drives the
// publish pipeline with a bounded worker pool.
package syncqueue

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/logfields"
	"git.home.luguber.info/inful/notesync/internal/metrics"
	"git.home.luguber.info/inful/notesync/internal/observability"
	"git.home.luguber.info/inful/notesync/internal/publish"
)

// ErrStopped is returned by Enqueue once Stop has been called.
var ErrStopped = ferrors.DaemonError("sync queue is stopped").Build()

// Publisher lands one task on the remote.
type Publisher interface {
	Publish(ctx context.Context, task publish.Task) (publish.Result, error)
}

// PathMapper maps a local file to its remote path.
type PathMapper interface {
	RemotePath(localPath string) (string, error)
}

// Options configures a Queue.
type Options struct {
	Workers     int
	ErrorBuffer int
	Recorder    metrics.Recorder
	// OnResume runs when Resume clears an auth halt, e.g. to drop a cached identity.
	OnResume func()
	Clock    func() time.Time
}

// Queue holds at most one task per remote path and never runs two publishes
// for the same path at once.
type Queue struct {
	publisher Publisher
	mapper    PathMapper
	workers   int
	recorder  metrics.Recorder
	onResume  func()
	now       func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	ready    []string
	inFlight int
	halted   error
	stopped  bool

	wake     chan struct{}
	errs     chan FailureNotice
	stopChan chan struct{}
	wg       sync.WaitGroup
	runCtx   context.Context
	cancel   context.CancelFunc
}

// New creates a queue. Start must be called before tasks are processed.
func New(publisher Publisher, mapper PathMapper, opts Options) *Queue {
	if publisher == nil {
		panic("syncqueue.New: publisher is required")
	}
	if mapper == nil {
		mapper = slashMapper{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ErrorBuffer <= 0 {
		opts.ErrorBuffer = 64
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Queue{
		publisher: publisher,
		mapper:    mapper,
		workers:   opts.Workers,
		recorder:  opts.Recorder,
		onResume:  opts.OnResume,
		now:       opts.Clock,
		entries:   make(map[string]*entry),
		wake:      make(chan struct{}, 1),
		errs:      make(chan FailureNotice, opts.ErrorBuffer),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker pool. Publishes run under ctx.
func (q *Queue) Start(ctx context.Context) {
	q.runCtx, q.cancel = context.WithCancel(ctx)
	slog.Info("Starting sync queue", "workers", q.workers)
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
}

// Stop stops intake, lets in-flight publishes finish and waits for the workers.
// Paths still pending are dropped. If ctx expires first, in-flight publishes
// are canceled and ctx.Err() is returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	dropped := len(q.ready)
	q.mu.Unlock()
	close(q.stopChan)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		if q.cancel != nil {
			q.cancel()
		}
		<-done
		err = ctx.Err()
	}
	if q.cancel != nil {
		q.cancel()
	}
	if dropped > 0 {
		slog.Warn("Sync queue stopped with pending paths", "pending", dropped)
	}
	return err
}

// Errors delivers terminal failures. The channel is never closed.
func (q *Queue) Errors() <-chan FailureNotice {
	return q.errs
}

// Enqueue records a change without blocking. Events for a path that already
// has a pending or in-flight task are coalesced into it, last write wins.
// Deletions are not propagated; they are reported as unsupported.
func (q *Queue) Enqueue(ev ChangeEvent) error {
	remotePath, err := q.mapper.RemotePath(ev.LocalPath)
	if err != nil {
		q.tryNotify(FailureNotice{
			LocalPath: ev.LocalPath,
			Reason:    string(ferrors.GetCategory(err)),
			Err:       err,
			At:        q.now(),
		})
		return nil
	}

	if q.isStopped() {
		return ErrStopped
	}

	if ev.Kind == EventDeleted {
		slog.Warn("Ignoring deletion; deletes are not propagated",
			logfields.LocalPath(ev.LocalPath), logfields.RemotePath(remotePath))
		q.tryNotify(FailureNotice{
			RemotePath: remotePath,
			LocalPath:  ev.LocalPath,
			Reason:     string(ferrors.CategoryUnsupported),
			Err: ferrors.UnsupportedError("deleting remote files is not supported").
				WithContext("remote_path", remotePath).
				Build(),
			At: q.now(),
		})
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrStopped
	}

	e, ok := q.entries[remotePath]
	switch {
	case !ok:
		q.entries[remotePath] = &entry{
			state: StatePending,
			task:  q.newTask(remotePath, ev.LocalPath),
		}
		q.pushLocked(remotePath)
	case e.state == StatePending:
		e.task.SourceLocalPath = ev.LocalPath
		q.recorder.IncCoalesced()
	default: // publishing
		e.newerSource = ev.LocalPath
		q.recorder.IncCoalesced()
	}
	slog.Debug("Change enqueued",
		logfields.EventKind(ev.Kind.String()),
		logfields.LocalPath(ev.LocalPath),
		logfields.RemotePath(remotePath))
	return nil
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Resume clears an auth halt after credentials were refreshed. Paths held
// pending during the halt are handed to the workers again.
func (q *Queue) Resume() {
	q.mu.Lock()
	wasHalted := q.halted != nil
	q.halted = nil
	held := len(q.ready)
	q.mu.Unlock()
	if !wasHalted {
		return
	}
	if q.onResume != nil {
		q.onResume()
	}
	slog.Info("Sync queue resumed", "pending", held)
	q.signal()
}

// Halted returns the auth error that halted the queue, or nil.
func (q *Queue) Halted() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.halted
}

// State reports the queue state of a remote path.
func (q *Queue) State(remotePath string) State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[remotePath]; ok {
		return e.state
	}
	return StateIdle
}

// Length returns the number of paths waiting for a worker.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

func (q *Queue) newTask(remotePath, localPath string) publish.Task {
	return publish.Task{
		ID:              uuid.NewString(),
		RemotePath:      remotePath,
		SourceLocalPath: localPath,
		EnqueuedAt:      q.now(),
	}
}

func (q *Queue) pushLocked(remotePath string) {
	q.ready = append(q.ready, remotePath)
	q.recorder.SetQueueDepth(len(q.ready))
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next claims the oldest pending path, moving it to publishing. Nothing is
// claimed while the queue is halted; pending paths wait for Resume.
func (q *Queue) next() (publish.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || q.halted != nil || len(q.ready) == 0 {
		return publish.Task{}, false
	}
	path := q.ready[0]
	q.ready = q.ready[1:]
	if len(q.ready) > 0 {
		q.signal()
	}
	q.recorder.SetQueueDepth(len(q.ready))

	e := q.entries[path]
	e.state = StatePublishing
	e.task.Attempt++
	q.inFlight++
	q.recorder.SetInFlight(q.inFlight)
	return e.task, true
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopChan:
			return
		default:
		}

		task, ok := q.next()
		if !ok {
			select {
			case <-q.stopChan:
				return
			case <-q.wake:
			}
			continue
		}
		q.process(id, task)
	}
}

func (q *Queue) process(workerID int, task publish.Task) {
	ctx := observability.WithWorker(q.runCtx, workerID)

	_, err := q.publisher.Publish(ctx, task)

	notify := q.complete(task, err)
	if notify {
		q.notify(FailureNotice{
			RemotePath: task.RemotePath,
			LocalPath:  task.SourceLocalPath,
			Reason:     string(ferrors.GetCategory(err)),
			Err:        err,
			At:         q.now(),
		})
	}
}

// complete applies the post-publish transition and reports whether the failure
// must be notified. An auth failure halts the queue and keeps the path pending
// so it is published again after Resume.
func (q *Queue) complete(task publish.Task, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	q.recorder.SetInFlight(q.inFlight)

	e := q.entries[task.RemotePath]
	if err != nil && ferrors.HasCategory(err, ferrors.CategoryAuth) {
		if q.halted == nil {
			q.halted = err
			slog.Error("Sync queue halted: remote rejected credentials; call Resume after refreshing them",
				logfields.Error(err))
		}
		if !q.stopped {
			if e.newerSource != "" {
				e.task.SourceLocalPath = e.newerSource
				e.newerSource = ""
			}
			e.state = StatePending
			q.pushLocked(task.RemotePath)
			return true
		}
	}
	if e.newerSource != "" && !q.stopped {
		e.task = q.newTask(task.RemotePath, e.newerSource)
		e.task.Attempt = task.Attempt
		e.newerSource = ""
		e.state = StatePending
		q.pushLocked(task.RemotePath)
		return false
	}
	delete(q.entries, task.RemotePath)
	return err != nil
}

// notify blocks until the notice is consumed or the queue is torn down.
func (q *Queue) notify(n FailureNotice) {
	q.recorder.IncFailure(n.Reason)
	select {
	case q.errs <- n:
	case <-q.runCtx.Done():
		slog.Warn("Dropping failure notice during shutdown",
			logfields.RemotePath(n.RemotePath), logfields.Error(n.Err))
	}
}

// tryNotify never blocks; used from Enqueue.
func (q *Queue) tryNotify(n FailureNotice) {
	q.recorder.IncFailure(n.Reason)
	select {
	case q.errs <- n:
	default:
		slog.Warn("Failure channel full; dropping notice",
			logfields.RemotePath(n.RemotePath), logfields.Error(n.Err))
	}
}

// slashMapper uses the local path itself, slash separated, as the remote path.
type slashMapper struct{}

func (slashMapper) RemotePath(localPath string) (string, error) {
	return filepath.ToSlash(localPath), nil
}
