package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/soundmode/internal/config"
)

// Manager owns the probe player and its sound file watcher, configured from
// the [probe] config section.
type Manager struct {
	mu      sync.Mutex
	logger  *slog.Logger
	player  *Player
	watcher *Watcher
	sound   string
}

// NewManager creates a manager for cfg. suppressed and output may be nil.
func NewManager(cfg *config.Config, suppressed func() bool, output Output, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	player := NewPlayer(Options{
		Volume:     volumeFromConfig(cfg.Probe.Volume),
		Suppressed: suppressed,
		Output:     output,
		Logger:     logger,
	})

	return &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
		sound:   cfg.SoundPath(),
	}
}

// Player returns the probe player.
func (m *Manager) Player() *Player {
	return m.player
}

// Sound returns the configured probe sound reference.
func (m *Manager) Sound() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sound
}

// Start watches the configured sound file for changes.
func (m *Manager) Start(ctx context.Context) error {
	m.watcher.Watch(m.Sound())
	if err := m.watcher.Start(ctx); err != nil {
		return err
	}
	m.logger.Debug("audio manager started", "sound", m.Sound())
	return nil
}

// Stop shuts down the watcher and the audio output.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// UpdateConfig applies a reloaded configuration. The volume takes effect on
// the next probe. It reports whether the probe sound changed; a new sound
// needs a new probe engine.
func (m *Manager) UpdateConfig(cfg *config.Config) (soundChanged bool) {
	m.player.SetVolume(volumeFromConfig(cfg.Probe.Volume))

	sound := cfg.SoundPath()

	m.mu.Lock()
	old := m.sound
	m.sound = sound
	m.mu.Unlock()

	if sound == old {
		return false
	}

	m.watcher.Unwatch(old)
	m.watcher.Watch(sound)
	m.logger.Debug("probe sound changed", "from", old, "to", sound)
	return true
}

// volumeFromConfig maps the 0-100 config scale to the player's 0.0-1.0.
func volumeFromConfig(v int) float64 {
	return float64(v) / 100.0
}
