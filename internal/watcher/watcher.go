// Package watcher subscribes to OS filesystem-change notifications and
// invokes a callback per relevant event, normally the engine's
// single-path execution.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/logger"
)

// EventType classifies a filesystem change.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
	EventMoved    EventType = "moved"
)

// Callback receives the resolved path and event type of one change.
// Callbacks run on the watch goroutine and must not block indefinitely.
type Callback func(path string, event EventType)

// Token identifies one registration for a later Unwatch call.
type Token string

// Options configures one registration.
type Options struct {
	Recursive      bool
	IgnorePaths    []string
	IgnorePatterns []string
}

type watch struct {
	paths    []string
	callback Callback
	opts     Options
	fsw      *fsnotify.Watcher
	ignore   map[string]bool
}

// Watcher manages a registry of filesystem watches. All registry access
// is guarded by one mutex; event dispatch runs on per-watch goroutines.
type Watcher struct {
	mu      sync.Mutex
	watches map[Token]*watch
	running bool
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// New creates an empty watcher.
func New(log *zap.Logger) *Watcher {
	return &Watcher{
		watches: make(map[Token]*watch),
		logger:  logger.OrNop(log),
	}
}

// Watch registers paths with a callback and returns a token for Unwatch.
// The OS notification capability is acquired immediately: if it is
// unavailable, Watch fails instead of silently never firing. Events are
// dispatched once Start has been called.
func (w *Watcher) Watch(paths []string, callback Callback, opts Options) (Token, error) {
	if callback == nil {
		return "", errors.New("watcher: nil callback")
	}
	if len(paths) == 0 {
		return "", errors.New("watcher: no paths to watch")
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("watcher: resolve %q: %w", p, err)
		}
		resolved = append(resolved, abs)
	}

	ignore := make(map[string]bool, len(opts.IgnorePaths))
	for _, p := range opts.IgnorePaths {
		if abs, err := filepath.Abs(p); err == nil {
			ignore[abs] = true
		}
	}

	entry := &watch{
		paths:    resolved,
		callback: callback,
		opts:     opts,
		ignore:   ignore,
	}
	if err := w.activate(entry); err != nil {
		return "", err
	}

	token := Token(uuid.NewString())
	w.mu.Lock()
	w.watches[token] = entry
	running := w.running
	w.mu.Unlock()

	if running {
		w.launch(entry)
	}
	return token, nil
}

// activate acquires the OS watch handles for an entry.
func (w *Watcher) activate(entry *watch) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: filesystem notifications unavailable: %w", err)
	}
	for _, path := range entry.paths {
		if err := fsw.Add(path); err != nil {
			fsw.Close()
			return fmt.Errorf("watcher: watch %q: %w", path, err)
		}
		if entry.opts.Recursive {
			if err := addSubdirs(fsw, path); err != nil {
				w.logger.Warn("cannot watch subtree", zap.String("path", path), zap.Error(err))
			}
		}
	}
	entry.fsw = fsw
	return nil
}

func addSubdirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && path != root {
			if err := fsw.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}

// launch starts the event loop for one active entry.
func (w *Watcher) launch(entry *watch) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(entry)
	}()
}

func (w *Watcher) loop(entry *watch) {
	fsw := entry.fsw
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.dispatch(entry, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// dispatch filters one raw event and invokes the callback. The fsnotify
// handle is the loop's own reference; entry.fsw may be nilled by a
// concurrent Stop and must not be re-read here.
func (w *Watcher) dispatch(entry *watch, fsw *fsnotify.Watcher, event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil {
		path = filepath.Clean(event.Name)
	}

	// New subdirectories join the watch before the directory event is
	// discarded.
	if entry.opts.Recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return
	}

	if entry.ignore[path] {
		return
	}
	base := filepath.Base(path)
	for _, pattern := range entry.opts.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return
		}
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreated
	case event.Has(fsnotify.Write):
		eventType = EventModified
	case event.Has(fsnotify.Remove):
		eventType = EventDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventMoved
	default:
		// Chmod-only events are noise.
		return
	}

	entry.callback(path, eventType)
}

// Start begins dispatching events for every registered watch.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true

	for _, entry := range w.watches {
		if entry.fsw == nil {
			if err := w.activate(entry); err != nil {
				// Close what this call already launched so their loops
				// exit; registrations stay for a later Start.
				w.running = false
				for _, launched := range w.watches {
					if launched.fsw != nil {
						launched.fsw.Close()
						launched.fsw = nil
					}
				}
				return err
			}
		}
		w.launch(entry)
	}
	return nil
}

// Stop closes every watch's OS handles; event loops drain and exit once
// their event channels close. Registrations survive a Stop and resume on
// the next Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	for _, entry := range w.watches {
		if entry.fsw != nil {
			entry.fsw.Close()
			entry.fsw = nil
		}
	}
}

// Unwatch removes a registration. Its event loop, if running, exits.
func (w *Watcher) Unwatch(token Token) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.watches[token]
	if !ok {
		return
	}
	if entry.fsw != nil {
		entry.fsw.Close()
		entry.fsw = nil
	}
	delete(w.watches, token)
}

// Join blocks until all event loops have exited, or until timeout when
// it is positive.
func (w *Watcher) Join(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
