package audio

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"sync"
	"time"
)

// Watcher polls probe sound files and reloads them in the player when they change.
type Watcher struct {
	mu     sync.RWMutex
	logger *slog.Logger
	player *Player

	// Paths to watch with their last modification times
	watchedPaths map[string]time.Time

	pollInterval time.Duration

	// Control channels
	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewWatcher creates a new sound file watcher.
func NewWatcher(player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger:       logger,
		player:       player,
		watchedPaths: make(map[string]time.Time),
		pollInterval: 2 * time.Second,
	}
}

// SetPollInterval sets the polling interval. It applies from the next Start.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// Watch adds a path to the watch list. The built-in clip is never watched.
func (w *Watcher) Watch(path string) {
	path = expandPath(path)
	if path == "" || path == BuiltinSilence {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if info, err := os.Stat(path); err == nil {
		w.watchedPaths[path] = info.ModTime()
	} else {
		w.watchedPaths[path] = time.Time{}
	}
}

// Unwatch removes a path from the watch list.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watchedPaths, expandPath(path))
}

// Start begins polling until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.watchLoop(ctx, interval, stopCh, doneCh)

	w.logger.Debug("sound watcher started", "interval", interval)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.logger.Debug("sound watcher stopped")
}

// watchLoop is the main polling loop.
func (w *Watcher) watchLoop(ctx context.Context, interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges reloads any watched file modified since the last poll.
func (w *Watcher) checkForChanges() {
	w.mu.RLock()
	paths := maps.Clone(w.watchedPaths)
	w.mu.RUnlock()

	for path, lastModTime := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		modTime := info.ModTime()
		if !modTime.After(lastModTime) {
			continue
		}

		w.mu.Lock()
		w.watchedPaths[path] = modTime
		w.mu.Unlock()

		if w.player == nil {
			continue
		}
		w.player.InvalidateCache(path)
		if d, err := w.player.Duration(path); err != nil {
			w.logger.Warn("changed probe sound cannot be loaded", "path", path, "error", err)
		} else {
			w.logger.Info("probe sound reloaded", "path", path, "duration", d)
		}
	}
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
