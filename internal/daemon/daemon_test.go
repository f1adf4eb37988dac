package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/lifecycle"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
	"github.com/jmylchreest/soundmode/internal/soundmode"
	"github.com/jmylchreest/soundmode/internal/store"
)

// testConfig returns a config that needs no bus and no audio device.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Lifecycle.Source = config.LifecycleNone
	cfg.DBus.Enabled = false
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(Options{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Output:     &audio.PacedOutput{},
	})
	require.NoError(t, err)
	return d
}

// runDaemon runs d until the test ends and returns a function that stops it
// and reports Run's result.
func runDaemon(t *testing.T, d *Daemon) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	stop := func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return stop
}

func TestDaemon_RecordsAudibleProbe(t *testing.T) {
	d := newTestDaemon(t, testConfig(t))
	stop := runDaemon(t, d)

	require.Eventually(t, func() bool {
		return d.History().Count() > 0
	}, 5*time.Second, 20*time.Millisecond)

	latest := d.History().Latest()
	require.NotNil(t, latest)
	assert.Equal(t, model.ModeNotDetermined, latest.From)
	assert.Equal(t, model.ModeRing, latest.To)
	assert.Equal(t, DefaultSource, latest.Source)
	assert.True(t, d.Manager().IsObserving())

	state, err := store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.Equal(t, model.ModeRing, state.Mode)
	assert.True(t, state.Observing)

	require.NoError(t, stop())
	assert.False(t, d.Manager().IsObserving())

	state, err = store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.False(t, state.Observing)
}

func TestDaemon_DoNotDisturbReadsSilent(t *testing.T) {
	cfg := testConfig(t)
	_, err := store.UpdateSharedState(config.StatePath(), func(s *store.SharedState) {
		s.SetDnD(true, store.DnDTriggerUser, "test", "test")
	})
	require.NoError(t, err)

	d := newTestDaemon(t, cfg)
	stop := runDaemon(t, d)

	require.Eventually(t, func() bool {
		return d.Manager().CurrentMode() == model.ModeSilent
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, stop())
}

func TestDaemon_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	d := newTestDaemon(t, cfg)
	assert.Nil(t, d.History())
	require.NoError(t, d.Close())
}

func TestDaemon_SetupError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Probe.Sound = filepath.Join(t.TempDir(), "missing.wav")

	_, err := New(Options{Config: cfg, Output: &audio.PacedOutput{}})

	var setupErr *probe.SetupError
	require.ErrorAs(t, err, &setupErr)
}

func TestDaemon_ApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg)
	defer func() { _ = d.Close() }()

	updated := config.DefaultConfig()
	updated.Lifecycle.Source = config.LifecycleNone
	updated.DBus.Enabled = false
	updated.Probe.Interval = config.Duration(3 * time.Second)
	updated.Probe.Volume = 40

	d.applyConfig(updated)

	assert.Equal(t, 3*time.Second, d.Manager().Interval())
	assert.Same(t, updated, d.Config())
}

func TestDaemon_LifecyclePausesObservation(t *testing.T) {
	cfg := testConfig(t)
	life := lifecycle.New(nil)

	d, err := New(Options{
		Config:    cfg,
		Output:    &audio.PacedOutput{},
		Lifecycle: life,
	})
	require.NoError(t, err)
	stop := runDaemon(t, d)

	require.Eventually(t, d.Manager().IsObserving, time.Second, 10*time.Millisecond)

	life.EnterBackground()
	assert.True(t, d.Manager().IsPaused())
	assert.True(t, d.Manager().IsObserving())

	life.EnterForeground()
	assert.False(t, d.Manager().IsPaused())

	require.NoError(t, stop())
}

func TestController_MirrorsObserving(t *testing.T) {
	d := newTestDaemon(t, testConfig(t))
	defer func() { _ = d.Close() }()

	ctrl := d.Controller()
	ctrl.BeginObserving()
	assert.True(t, ctrl.IsObserving())

	state, err := store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.True(t, state.Observing)

	ctrl.EndObserving()
	assert.False(t, ctrl.IsObserving())

	state, err = store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.False(t, state.Observing)

	assert.Equal(t, model.ModeNotDetermined, ctrl.CurrentMode())
}

func TestDaemon_CloseIsIdempotent(t *testing.T) {
	d := newTestDaemon(t, testConfig(t))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestDaemon_IdleStart(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(Options{
		Config: cfg,
		Output: &audio.PacedOutput{},
		Idle:   true,
		Source: "tui",
	})
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyStarted)
	assert.False(t, d.Manager().IsObserving())

	// The initial probe still runs
	require.Eventually(t, func() bool {
		return d.History().Count() == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "tui", d.History().Latest().Source)
}

func TestDaemon_CloseKeepsObservingItNeverSet(t *testing.T) {
	cfg := testConfig(t)
	_, err := store.UpdateSharedState(config.StatePath(), func(s *store.SharedState) {
		s.Observing = true
	})
	require.NoError(t, err)

	d, err := New(Options{
		Config: cfg,
		Output: &audio.PacedOutput{},
		Idle:   true,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return d.History().Count() == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, d.Close())

	state, err := store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.True(t, state.Observing)
}

func TestDaemon_ReadOnly(t *testing.T) {
	cfg := testConfig(t)
	_, err := store.UpdateSharedState(config.StatePath(), func(s *store.SharedState) {
		s.RecordMode(model.ModeSilent, time.Now())
		s.Observing = true
	})
	require.NoError(t, err)

	delivered := make(chan struct{}, 8)
	d, err := New(Options{
		Config: cfg,
		Output: &audio.PacedOutput{},
		Dispatcher: soundmode.DispatcherFunc(func(fn func()) {
			fn()
			select {
			case delivered <- struct{}{}:
			default:
			}
		}),
		Idle:     true,
		ReadOnly: true,
	})
	require.NoError(t, err)
	require.NotNil(t, d.History())
	require.NoError(t, d.Start(context.Background()))

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("mode change was not delivered")
	}
	assert.Equal(t, model.ModeRing, d.Manager().CurrentMode())

	ctrl := d.Controller()
	ctrl.BeginObserving()
	ctrl.EndObserving()
	require.NoError(t, d.Close())

	assert.Zero(t, d.History().Count())

	state, err := store.LoadSharedState(config.StatePath())
	require.NoError(t, err)
	assert.Equal(t, model.ModeSilent, state.Mode)
	assert.True(t, state.Observing)
}
