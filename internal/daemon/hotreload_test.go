package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundmode/internal/config"
)

// touch writes data and moves the mtime forward so the poller sees a change
// even on filesystems with coarse timestamps.
func touch(t *testing.T, path, data string, offset time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	mtime := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	touch(t, path, "[probe]\ninterval = \"2s\"\n", -time.Minute)

	w := NewConfigWatcher(path, nil)
	w.SetPollInterval(10 * time.Millisecond)

	var mu sync.Mutex
	var reloaded *config.Config
	w.SetReloadCallback(func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = cfg
	})

	initial := config.DefaultConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()
	assert.Same(t, initial, w.CurrentConfig())

	touch(t, path, "[probe]\ninterval = \"5s\"\nvolume = 20\n", time.Minute)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5*time.Second, reloaded.Probe.Interval.Duration())
	assert.Equal(t, 20, reloaded.Probe.Volume)
	assert.Same(t, reloaded, w.CurrentConfig())
}

func TestConfigWatcher_InvalidConfigKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	w := NewConfigWatcher(path, nil)
	w.SetPollInterval(10 * time.Millisecond)

	errCh := make(chan error, 1)
	w.SetErrorCallback(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	w.SetReloadCallback(func(*config.Config) {
		t.Error("invalid config must not be applied")
	})

	initial := config.DefaultConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()

	touch(t, path, "[probe]\nvolume = 500\n", time.Minute)

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "volume")
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not called")
	}
	assert.Same(t, initial, w.CurrentConfig())
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.toml"), nil)
	w.Stop()

	require.NoError(t, w.Start(context.Background(), config.DefaultConfig()))
	require.NoError(t, w.Start(context.Background(), config.DefaultConfig()))
	w.Stop()
	w.Stop()
}

func TestConfigWatcher_StopsWithContext(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.toml"), nil)
	w.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, config.DefaultConfig()))
	cancel()

	// Stop still returns once the loop has exited on its own
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
