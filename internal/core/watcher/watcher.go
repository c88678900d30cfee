// Package watcher reloads the admission rules file when it changes on disk.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
)

// DefaultDebounce is how long the watcher waits after the last event before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher defines the interface for watching files.
type FileWatcher interface {
	Add(string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// notifyWatcher adapts *fsnotify.Watcher to FileWatcher.
type notifyWatcher struct {
	w *fsnotify.Watcher
}

func (n notifyWatcher) Add(name string) error         { return n.w.Add(name) }
func (n notifyWatcher) Close() error                  { return n.w.Close() }
func (n notifyWatcher) Events() <-chan fsnotify.Event { return n.w.Events }
func (n notifyWatcher) Errors() <-chan error          { return n.w.Errors }

// ReloadFunc rebuilds whatever depends on the watched file.
type ReloadFunc func() error

// RulesWatcher calls a ReloadFunc whenever the watched file is written,
// created or replaced.
type RulesWatcher struct {
	fw       FileWatcher
	path     string
	reload   ReloadFunc
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopped bool
}

// NewRulesWatcher creates a watcher for the file at path.
func NewRulesWatcher(path string, reload ReloadFunc) (*RulesWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return newRulesWatcher(path, reload, notifyWatcher{w: fw}, DefaultDebounce), nil
}

func newRulesWatcher(path string, reload ReloadFunc, fw FileWatcher, debounce time.Duration) *RulesWatcher {
	return &RulesWatcher{
		fw:       fw,
		path:     filepath.Clean(path),
		reload:   reload,
		debounce: debounce,
		logger:   logger.Named("core.watcher"),
	}
}

// Start watches the file's directory, so atomic replacement by rename is seen
// too. It is idempotent; a stopped watcher cannot be restarted.
func (w *RulesWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.logger.Warn("Rules watcher has been stopped and cannot be restarted")
		return nil
	}
	if w.running {
		w.logger.Info("Rules watcher is already running")
		return nil
	}

	if err := w.fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Info("Watching rules file", zap.String("path", w.path))
	go w.watchLoop()
	w.running = true
	return nil
}

// Stop halts watching. It is idempotent.
func (w *RulesWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
	if err := w.fw.Close(); err != nil {
		w.logger.Warn("Failed to close file watcher", zap.Error(err))
	}
}

func (w *RulesWatcher) watchLoop() {
	events := w.fw.Events()
	errs := w.fw.Errors()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *RulesWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *RulesWatcher) fire() {
	w.logger.Info("Rules file changed, reloading", zap.String("path", w.path))
	if err := w.reload(); err != nil {
		// The previous gate stays in force.
		w.logger.Error("Failed to reload rules file", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("Rules reloaded", zap.String("path", w.path))
}

var _ ports.Watcher = (*RulesWatcher)(nil)
