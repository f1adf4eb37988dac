package store

import (
	"log/slog"
	"sync/atomic"
)

// DnDGate tracks the Do Not Disturb flag of a state file. It is used as the
// probe player's suppression gate.
type DnDGate struct {
	path    string
	logger  *slog.Logger
	enabled atomic.Bool
	watcher *FileWatcher
}

// NewDnDGate reads the current flag from path.
func NewDnDGate(path string, logger *slog.Logger) *DnDGate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &DnDGate{path: path, logger: logger}
	g.Refresh()
	return g
}

// Suppressed reports whether Do Not Disturb is enabled.
func (g *DnDGate) Suppressed() bool {
	return g.enabled.Load()
}

// Refresh re-reads the state file.
func (g *DnDGate) Refresh() {
	state, err := LoadSharedState(g.path)
	if err != nil {
		g.logger.Warn("failed to read shared state", "path", g.path, "error", err)
		return
	}
	if old := g.enabled.Swap(state.DnDEnabled); old != state.DnDEnabled {
		g.logger.Info("do not disturb changed", "enabled", state.DnDEnabled)
	}
}

// Watch keeps the flag current until Stop is called.
func (g *DnDGate) Watch() error {
	fw, err := NewFileWatcher(g.path, g.Refresh, g.logger)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		_ = fw.Stop()
		return err
	}
	g.watcher = fw
	return nil
}

// Stop stops watching.
func (g *DnDGate) Stop() error {
	if g.watcher == nil {
		return nil
	}
	err := g.watcher.Stop()
	g.watcher = nil
	return err
}
