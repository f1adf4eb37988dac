package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "builtin:silence", cfg.Probe.Sound)
	assert.Equal(t, time.Second, cfg.Probe.Interval.Duration())
	assert.Equal(t, time.Duration(0), cfg.Probe.Timeout.Duration())
	assert.Equal(t, 5, cfg.Probe.Volume)
	assert.Equal(t, LifecycleLogind, cfg.Lifecycle.Source)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 1000, cfg.History.MaxEntries)
	assert.True(t, cfg.DBus.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[probe]
sound = "/usr/share/sounds/probe.ogg"
interval = "5s"
timeout = "2000"
volume = 20

[lifecycle]
source = "signals"

[history]
enabled = false
max_entries = 50

[dbus]
enabled = false

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/share/sounds/probe.ogg", cfg.Probe.Sound)
	assert.Equal(t, 5*time.Second, cfg.Probe.Interval.Duration())
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout.Duration())
	assert.Equal(t, 20, cfg.Probe.Volume)
	assert.Equal(t, LifecycleSignals, cfg.Lifecycle.Source)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 50, cfg.History.MaxEntries)
	assert.False(t, cfg.DBus.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[probe]
interval = "10s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Probe.Interval.Duration())
	// Unset fields keep their defaults
	assert.Equal(t, DefaultSound, cfg.Probe.Sound)
	assert.Equal(t, DefaultVolume, cfg.Probe.Volume)
	assert.Equal(t, LifecycleLogind, cfg.Lifecycle.Source)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[probe\ninterval = "), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[probe]\ninterval = \"soon\"\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty sound", func(c *Config) { c.Probe.Sound = " " }, "probe sound"},
		{"negative interval", func(c *Config) { c.Probe.Interval = Duration(-time.Second) }, "interval"},
		{"negative timeout", func(c *Config) { c.Probe.Timeout = Duration(-time.Second) }, "timeout"},
		{"volume too high", func(c *Config) { c.Probe.Volume = 101 }, "volume"},
		{"volume negative", func(c *Config) { c.Probe.Volume = -1 }, "volume"},
		{"bad lifecycle", func(c *Config) { c.Lifecycle.Source = "upower" }, "lifecycle source"},
		{"negative max entries", func(c *Config) { c.History.MaxEntries = -5 }, "max_entries"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.Probe.Interval = Duration(3 * time.Second)
	cfg.Lifecycle.Source = LifecycleNone

	require.NoError(t, cfg.Save(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, loaded.Probe.Interval.Duration())
	assert.Equal(t, LifecycleNone, loaded.Lifecycle.Source)
}

func TestConfig_SoundPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, DefaultSound, cfg.SoundPath())

	cfg.Probe.Sound = "~/sounds/probe.wav"
	assert.Equal(t, filepath.Join(home, "sounds/probe.wav"), cfg.SoundPath())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0", 0},
		{"1500", 1500 * time.Millisecond},
		{"1s", time.Second},
		{"1m30s", 90 * time.Second},
	}
	for _, tt := range tests {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte(tt.in)))
		assert.Equal(t, tt.want, d.Duration(), tt.in)
	}

	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("later")))
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/soundmode/config.toml", ConfigPath())
}

func TestDataPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/soundmode", DataPath())
	assert.Equal(t, "/custom/data/soundmode/history.jsonl", HistoryPath())
	assert.Equal(t, "/custom/data/soundmode/state.json", StatePath())
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	require.NoError(t, EnsureDataDir())

	info, err := os.Stat(filepath.Join(dir, "soundmode"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
