package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/gitlab-ls/errors"
)

// ReloadCallback is called with the freshly loaded config after a file change.
type ReloadCallback func(*Config) error

// Watcher watches config files and reloads on change.
type Watcher struct {
	paths          []string
	watcher        *fsnotify.Watcher
	load           func() (*Config, error)
	logger         *zap.SugaredLogger
	mu             sync.Mutex
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithLoader replaces Load as the reload function.
func WithLoader(load func() (*Config, error)) WatcherOption {
	return func(w *Watcher) { w.load = load }
}

// WithDebounce sets how long to wait for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debouncePeriod = d }
}

// NewWatcher watches the directories holding paths. Directories are watched
// rather than files so editors that save via rename are still seen.
func NewWatcher(paths []string, logger *zap.SugaredLogger, opts ...WatcherOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no config files to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		watcher:        fw,
		load:           Load,
		logger:         logger,
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to resolve %s", p)
		}
		w.paths = append(w.paths, abs)
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to watch %s", dir)
		}
		dirs[dir] = true
	}
	return w, nil
}

// OnReload registers a callback to be called when config is reloaded
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for config file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.watched(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debugw("Config file changed", "file", event.Name, "op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Config watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) watched(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, p := range w.paths {
		if p == abs {
			return true
		}
	}
	return false
}

// scheduleReload debounces rapid file changes and triggers reload
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			w.logger.Errorw("Config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	cfg, err := w.load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	w.logger.Infow("Config reloaded")

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			// keep going: one failing subscriber must not block the others
			w.logger.Warnw("Config reload callback error", "error", err)
		}
	}
	return nil
}

// Stop stops watching for config changes
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.watcher.Close()
}
