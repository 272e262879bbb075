// Package watcher observes local note directories and feeds change events to
// the sync queue.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/notesync/internal/logfields"
	"git.home.luguber.info/inful/notesync/internal/syncqueue"
)

// Sink receives change events.
type Sink interface {
	Enqueue(ev syncqueue.ChangeEvent) error
}

// pending accumulates raw notifications for one path during the debounce window.
type pending struct {
	timer   *time.Timer
	created bool
}

// Watcher recursively watches roots and forwards debounced events to a Sink.
// The kind of a debounced event is decided when the window closes: a path that
// no longer exists is reported as deleted, otherwise as created (if a create
// was seen in the window) or modified.
type Watcher struct {
	roots    []string
	ignore   Ignorer
	debounce time.Duration
	sink     Sink

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	pending   map[string]*pending
	running   bool
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Watcher. Roots must be absolute (see ResolveRoot).
func New(roots []string, ignore Ignorer, debounce time.Duration, sink Sink) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		roots:    roots,
		ignore:   ignore,
		debounce: debounce,
		sink:     sink,
		watcher:  fw,
		pending:  make(map[string]*pending),
		done:     make(chan struct{}),
	}, nil
}

// Start adds watches for every directory below the roots and begins forwarding events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for _, root := range w.roots {
		if err := w.addTree(root, root, false); err != nil {
			return err
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.loop(ctx)
	slog.Info("Watching local directories", "roots", w.roots, "debounce", w.debounce)
	return nil
}

// Stop closes the underlying watcher, cancels pending debounce timers and waits
// for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.closeWatcher()
	}
	w.running = false
	for p, pend := range w.pending {
		pend.timer.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.closeWatcher()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) closeWatcher() error {
	w.closeOnce.Do(func() { w.closeErr = w.watcher.Close() })
	return w.closeErr
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Filesystem watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
		return
	}
	root, rel, ok := w.locate(event.Name)
	if !ok || w.ignore.Match(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if err := w.addTree(root, event.Name, true); err != nil {
				slog.Warn("Failed to watch new directory", "path", event.Name, logfields.Error(err))
			}
			w.mu.Unlock()
			return
		}
	}

	w.schedule(event.Name, event.Has(fsnotify.Create))
}

// addTree watches dir and all non-ignored subdirectories. When announce is set,
// files already present are scheduled as created (they may predate the watch).
// Caller holds w.mu.
func (w *Watcher) addTree(root, dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		if w.ignore.Match(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", p, err)
			}
			return nil
		}
		if announce && d.Type().IsRegular() {
			w.scheduleLocked(p, true)
		}
		return nil
	})
}

func (w *Watcher) locate(p string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r, rel, true
	}
	return "", "", false
}

func (w *Watcher) schedule(p string, created bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(p, created)
}

func (w *Watcher) scheduleLocked(p string, created bool) {
	if pend, ok := w.pending[p]; ok {
		pend.created = pend.created || created
		pend.timer.Reset(w.debounce)
		return
	}
	pend := &pending{created: created}
	pend.timer = time.AfterFunc(w.debounce, func() { w.fire(p) })
	w.pending[p] = pend
}

func (w *Watcher) fire(p string) {
	w.mu.Lock()
	pend, ok := w.pending[p]
	if !ok || !w.running {
		w.mu.Unlock()
		return
	}
	delete(w.pending, p)
	w.mu.Unlock()

	kind := syncqueue.EventModified
	info, err := os.Stat(p)
	switch {
	case err != nil:
		kind = syncqueue.EventDeleted
	case info.IsDir():
		return
	case pend.created:
		kind = syncqueue.EventCreated
	}

	if err := w.sink.Enqueue(syncqueue.ChangeEvent{Kind: kind, LocalPath: p, DetectedAt: time.Now()}); err != nil {
		slog.Warn("Dropping change event", logfields.LocalPath(p), logfields.EventKind(kind.String()), logfields.Error(err))
	}
}
