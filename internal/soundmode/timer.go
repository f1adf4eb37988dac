package soundmode

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives periodic probes while observation is active.
type Scheduler interface {
	// Start arms a repeating schedule firing first at now+interval.
	// Starting an armed scheduler is a no-op.
	Start(interval time.Duration, onTick func())
	// Stop disarms the schedule. It is idempotent.
	Stop()
	// Armed reports whether the schedule is active.
	Armed() bool
}

// Timer is a Scheduler backed by time.Ticker. Ticks run on the timer's own goroutine.
type Timer struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Generation of the current schedule; ticks from older ones are dropped
	gen      uint64
	interval time.Duration
	stopCh   chan struct{}

	running bool
}

// NewTimer creates a disarmed Timer.
func NewTimer(logger *slog.Logger) *Timer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timer{logger: logger}
}

// Start implements Scheduler.
func (t *Timer) Start(interval time.Duration, onTick func()) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.gen++
	gen := t.gen
	t.interval = interval
	stopCh := make(chan struct{})
	t.stopCh = stopCh
	t.mu.Unlock()

	go t.tickLoop(gen, interval, stopCh, onTick)

	t.logger.Debug("probe timer armed", "interval", interval)
}

// Stop implements Scheduler. It does not wait for a tick already running.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	t.stopCh = nil
	t.mu.Unlock()

	t.logger.Debug("probe timer disarmed")
}

// Armed implements Scheduler.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval returns the interval of the current or last schedule.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// tickLoop is the main ticking loop.
func (t *Timer) tickLoop(gen uint64, interval time.Duration, stopCh chan struct{}, onTick func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !t.isCurrent(gen) {
				return
			}
			onTick()
		}
	}
}

// isCurrent reports whether gen is still the armed schedule.
func (t *Timer) isCurrent(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.gen == gen
}
