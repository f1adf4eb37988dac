package audio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsChangedSound(t *testing.T) {
	path := writeWAV(t, 600*time.Millisecond)
	p := NewPlayer(Options{Output: &instantOutput{}})

	_, err := p.Prepare(path)
	require.NoError(t, err)

	w := NewWatcher(p, nil)
	w.SetPollInterval(10 * time.Millisecond)
	w.Watch(path)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.True(t, w.IsRunning())

	// Rewrite with a longer clip and a newer mtime
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(format.SampleRate.N(time.Second)), format))
	require.NoError(t, f.Close())
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		d, err := p.Duration(path)
		return err == nil && d > 900*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresBuiltin(t *testing.T) {
	w := NewWatcher(nil, nil)
	w.Watch(BuiltinSilence)
	w.Watch("")

	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.Empty(t, w.watchedPaths)
}

func TestWatcher_StopsWithContext(t *testing.T) {
	w := NewWatcher(nil, nil)
	w.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	// Stop must not hang after the loop exited on its own
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
	assert.False(t, w.IsRunning())
}
