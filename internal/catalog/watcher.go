package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce delay is configured.
const DefaultDebounce = 500 * time.Millisecond

// Reloader reloads a catalog.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher reloads the catalog when catalog files change. Bursts of events
// are collapsed into one reload once no change has been seen for the
// debounce delay.
type Watcher struct {
	reloader Reloader
	dirs     []string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	reloads atomic.Int64
	started atomic.Bool
	done    chan struct{}
	stop    sync.Once
}

// NewWatcher creates a watcher over the given directories.
func NewWatcher(reloader Reloader, dirs []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if reloader == nil {
		return nil, fmt.Errorf("reloader cannot be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		reloader: reloader,
		dirs:     dirs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// NewServiceWatcher creates a watcher for the directories holding the
// service's catalog files and patterns.
func NewServiceWatcher(service *Service, logger *slog.Logger) (*Watcher, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	settings := service.Settings()
	dirs := WatchDirs(settings.Paths, service.Files())
	return NewWatcher(service, dirs, settings.Debounce, logger)
}

// Start adds the directory watches and begins processing events until ctx
// is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "path", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 && len(w.dirs) > 0 {
		_ = w.watcher.Close()
		return fmt.Errorf("no catalog directories could be watched")
	}

	w.started.Store(true)
	go w.run(ctx)

	w.logger.Info("Catalog watcher started", "dirs", w.dirs, "debounce", w.debounce)
	return nil
}

// Stop stops the watcher and waits for a running reload to finish.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		err = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.done
	}
	return err
}

// Reloads returns the number of reloads triggered so far.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// run handles fsnotify events with debouncing.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.stop.Do(func() { _ = w.watcher.Close() })
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.handleEvent(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// handleEvent reports whether event should trigger a reload.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			} else {
				w.logger.Debug("Added watch for new directory", "path", event.Name)
			}
			return false
		}
	}

	if !IsCatalogFile(event.Name) {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}

	w.logger.Debug("Catalog change detected", "path", event.Name, "op", event.Op.String())
	return true
}

func (w *Watcher) reload(ctx context.Context) {
	w.reloads.Add(1)
	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Error("Catalog reload failed, keeping previous catalog", "error", err)
		return
	}
	w.logger.Info("Catalog reloaded")
}
