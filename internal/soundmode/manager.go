package soundmode

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
)

// MinInterval is the shortest allowed observation interval.
const MinInterval = time.Second

// Options configures a Manager.
type Options struct {
	// Asset is the probe sound reference passed to the player.
	Asset string
	// Interval between probes while observing. Clamped to MinInterval.
	Interval time.Duration
	// Timeout abandons a probe that never completes. Zero waits forever.
	Timeout time.Duration

	// Lifecycle is optional; without it the manager never pauses.
	Lifecycle LifecycleNotifier
	// Dispatcher is the delivery context. Defaults to a SerialDispatcher owned by the manager.
	Dispatcher Dispatcher
	// Scheduler drives observation. Defaults to a Timer.
	Scheduler Scheduler

	Logger *slog.Logger
	Now    func() time.Time
}

// Manager is the aggregate root: it owns the current mode, the probe engine,
// the observation schedule and the observer registry.
type Manager struct {
	mu     sync.Mutex
	logger *slog.Logger

	engine     *probe.Engine
	scheduler  Scheduler
	registry   *registry
	dispatcher Dispatcher
	owned      *SerialDispatcher

	// Lifecycle registrations released on Close
	unsubscribe []func()

	currentMode model.SoundMode
	lastProbe   probe.Result
	interval    time.Duration

	// Observing is the caller's intent; paused is set while in the background.
	observing bool
	paused    bool

	// Completions waiting on a probe, keyed by probe sequence
	waiters map[uint64][]ChangeHandler

	closed bool
}

// New creates a Manager. If the probe sound cannot be prepared the
// *probe.SetupError is returned and no manager is produced.
func New(player probe.Player, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	engine, err := probe.NewEngine(player, opts.Asset, probe.Options{
		Timeout: opts.Timeout,
		Now:     opts.Now,
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		logger:     opts.Logger,
		engine:     engine,
		scheduler:  opts.Scheduler,
		registry:   newRegistry(),
		dispatcher: opts.Dispatcher,
		interval:   clampInterval(opts.Interval),
		waiters:    make(map[uint64][]ChangeHandler),
	}

	if m.dispatcher == nil {
		m.owned = NewSerialDispatcher(opts.Logger)
		m.dispatcher = m.owned
	}
	if m.scheduler == nil {
		m.scheduler = NewTimer(opts.Logger)
	}

	if opts.Lifecycle != nil {
		m.unsubscribe = append(m.unsubscribe,
			opts.Lifecycle.OnDidEnterBackground(m.enterBackground),
			opts.Lifecycle.OnWillEnterForeground(m.enterForeground),
		)
	}

	return m, nil
}

// clampInterval enforces MinInterval.
func clampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// CurrentMode returns the last known mode. It is stale until a probe completes.
func (m *Manager) CurrentMode() model.SoundMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentMode
}

// LastProbe returns the result of the most recently finished probe. A probe
// that could not be played is reported with its Play error.
func (m *Manager) LastProbe() probe.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProbe
}

// IsObserving reports whether periodic observation was requested.
// It stays true while observation is paused in the background.
func (m *Manager) IsObserving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observing
}

// IsPaused reports whether the process is in the background.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// IsProbing reports whether a probe is in flight.
func (m *Manager) IsProbing() bool {
	return m.engine.IsProbing()
}

// Interval returns the effective observation interval.
func (m *Manager) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Observers returns the number of registered subscriptions.
func (m *Manager) Observers() int {
	return m.registry.count()
}

// UpdateCurrentMode probes once and calls completion with the resulting mode.
//
// If a probe is already in flight no new probe is started; completion is
// attached to the running probe instead. Completion is called exactly once,
// on the delivery context, whether or not the mode changed. A nil completion
// is allowed.
func (m *Manager) UpdateCurrentMode(completion func(model.SoundMode)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("update requested on closed manager")
		return
	}

	seq, started, err := m.engine.Start(m.handleResult)
	if err != nil {
		mode := m.currentMode
		m.lastProbe = probe.Result{Mode: model.ModeNotDetermined, Err: err}
		m.mu.Unlock()

		m.logger.Warn("failed to start probe", "error", err)
		if completion != nil {
			m.dispatcher.Dispatch(func() { completion(mode) })
		}
		return
	}

	if completion != nil {
		m.waiters[seq] = append(m.waiters[seq], completion)
	}
	m.mu.Unlock()

	if !started {
		m.logger.Debug("probe already in flight, sharing result", "seq", seq)
	}
}

// handleResult applies a finished probe and schedules delivery.
func (m *Manager) handleResult(res probe.Result) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	waiters := m.waiters[res.Seq]
	delete(m.waiters, res.Seq)

	previous := m.currentMode
	changed := res.Err == nil && res.Mode.IsDetermined() && res.Mode != previous
	if changed {
		m.currentMode = res.Mode
	}
	mode := m.currentMode
	m.lastProbe = res
	m.mu.Unlock()

	if changed {
		m.logger.Info("sound mode changed", "from", previous, "to", mode, "elapsed", res.Elapsed)
	} else if res.Err != nil {
		m.logger.Debug("probe finished without result", "seq", res.Seq, "error", res.Err)
	}

	if !changed && len(waiters) == 0 {
		return
	}

	m.dispatcher.Dispatch(func() {
		if changed {
			n := m.registry.notifyResult(res)
			m.logger.Debug("notified observers", "mode", mode, "observers", n)
		}
		for _, completion := range waiters {
			completion(mode)
		}
	})
}

// Subscribe registers onChange for mode changes. The returned token must be
// retained by the caller; the subscription ends when it is invalidated or
// collected.
//
// Collection happens at the garbage collector's pace, so a dropped token can
// keep receiving changes for a while. Callers that need the subscription to
// end at a known point must call Invalidate.
func (m *Manager) Subscribe(onChange ChangeHandler) *Token {
	return m.registry.add(onChange)
}

// SubscribeResult is Subscribe for handlers that need the probe result behind
// a change, such as its elapsed time. The result is captured when the probe
// completes, not when the change is delivered.
func (m *Manager) SubscribeResult(onResult ResultHandler) *Token {
	return m.registry.addResult(onResult)
}

// BeginObserving arms periodic probing. It is idempotent. While the process
// is in the background the intent is recorded and the timer armed on return
// to the foreground.
func (m *Manager) BeginObserving() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.observing {
		return
	}
	m.observing = true
	if !m.paused {
		m.scheduler.Start(m.interval, m.tick)
	}
	m.logger.Debug("observation started", "interval", m.interval, "paused", m.paused)
}

// EndObserving disarms periodic probing. A probe already in flight still
// completes and may update the mode. Safe to call when not observing.
func (m *Manager) EndObserving() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scheduler.Stop()
	if !m.observing {
		return
	}
	m.observing = false
	m.logger.Debug("observation stopped")
}

// SetInterval changes the observation interval, re-arming an active timer.
func (m *Manager) SetInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d = clampInterval(d)
	if d == m.interval {
		return
	}
	m.interval = d
	if m.scheduler.Armed() {
		m.scheduler.Stop()
		m.scheduler.Start(m.interval, m.tick)
	}
	m.logger.Debug("observation interval changed", "interval", d)
}

// tick is the scheduler callback.
func (m *Manager) tick() {
	m.UpdateCurrentMode(nil)
}

// enterBackground pauses observation, keeping the observing intent.
func (m *Manager) enterBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.paused = true
	m.scheduler.Stop()
	m.logger.Debug("entered background, observation paused", "observing", m.observing)
}

// enterForeground resumes observation if it was active.
func (m *Manager) enterForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.paused = false
	if m.observing {
		m.scheduler.Start(m.interval, m.tick)
		m.logger.Debug("entering foreground, observation resumed")
	}
}

// Close releases lifecycle registrations, the timer, the probe sound and an
// owned dispatcher. Pending completions are dropped. It must not be called
// from an observer running on an owned dispatcher.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.observing = false
	m.scheduler.Stop()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.waiters = nil
	m.mu.Unlock()

	for _, unsub := range unsubscribe {
		if unsub != nil {
			unsub()
		}
	}

	err := m.engine.Close()

	if m.owned != nil {
		m.owned.Stop()
	}

	m.logger.Debug("sound mode manager closed")
	return err
}
