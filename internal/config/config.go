// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultSound      = "builtin:silence"
	DefaultInterval   = time.Second
	DefaultVolume     = 5
	DefaultMaxEntries = 1000
	DefaultLogLevel   = "warn"
)

// Lifecycle sources.
const (
	LifecycleLogind  = "logind"
	LifecycleSignals = "signals"
	LifecycleNone    = "none"
)

// ValidLifecycleSources returns all valid lifecycle source values.
func ValidLifecycleSources() []string {
	return []string{LifecycleLogind, LifecycleSignals, LifecycleNone}
}

// Config represents the soundmode configuration.
// Loaded from ~/.config/soundmode/config.toml
type Config struct {
	Probe     ProbeConfig     `toml:"probe"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	History   HistoryConfig   `toml:"history"`
	DBus      DBusConfig      `toml:"dbus"`
	Log       LogConfig       `toml:"log"`
}

// ProbeConfig holds probe sound and scheduling settings.
type ProbeConfig struct {
	Sound    string   `toml:"sound"`    // "builtin:silence" or a wav/ogg/mp3 path
	Interval Duration `toml:"interval"` // Clamped to 1s by the manager
	Timeout  Duration `toml:"timeout"`  // 0 = never abandon a probe
	Volume   int      `toml:"volume"`   // 0-100
}

// LifecycleConfig selects where background/foreground events come from.
type LifecycleConfig struct {
	Source string `toml:"source"` // logind, signals, none
}

// HistoryConfig holds transition history settings.
type HistoryConfig struct {
	Enabled    bool `toml:"enabled"`
	MaxEntries int  `toml:"max_entries"` // 0 = unlimited
}

// DBusConfig holds D-Bus service settings.
type DBusConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Probe: ProbeConfig{
			Sound:    DefaultSound,
			Interval: Duration(DefaultInterval),
			Timeout:  Duration(0),
			Volume:   DefaultVolume,
		},
		Lifecycle: LifecycleConfig{
			Source: LifecycleLogind,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: DefaultMaxEntries,
		},
		DBus: DBusConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "soundmode", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "soundmode")
}

// HistoryPath returns the path to the transition history JSONL file.
func HistoryPath() string {
	return filepath.Join(DataPath(), "history.jsonl")
}

// StatePath returns the path to the shared state file.
func StatePath() string {
	return filepath.Join(DataPath(), "state.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults first, then overlay with file contents
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Probe.Sound) == "" {
		return errors.New("probe sound must not be empty")
	}
	if c.Probe.Interval < 0 {
		return fmt.Errorf("probe interval must not be negative, got %s", c.Probe.Interval.Duration())
	}
	if c.Probe.Timeout < 0 {
		return fmt.Errorf("probe timeout must not be negative, got %s", c.Probe.Timeout.Duration())
	}
	if c.Probe.Volume < 0 || c.Probe.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Probe.Volume)
	}

	if !slices.Contains(ValidLifecycleSources(), c.Lifecycle.Source) {
		return fmt.Errorf("invalid lifecycle source %q, must be one of: %v", c.Lifecycle.Source, ValidLifecycleSources())
	}

	if c.History.MaxEntries < 0 {
		return fmt.Errorf("max_entries must not be negative, got %d", c.History.MaxEntries)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// SoundPath returns the probe sound reference with ~ expanded.
func (c *Config) SoundPath() string {
	return expandPath(c.Probe.Sound)
}

// ParseLevel maps a level name to a slog.Level. Empty means warn.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level %q", level)
	}
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
