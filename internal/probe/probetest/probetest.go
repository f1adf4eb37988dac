// Package probetest provides a scripted Player and a manual clock for tests.
package probetest

import (
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/probe"
)

var (
	_ probe.Player         = (*Player)(nil)
	_ probe.DurationProber = (*Player)(nil)
)

// Player records plays and completes them only when told to.
type Player struct {
	mu       sync.Mutex
	next     probe.Handle
	prepared map[probe.Handle]string
	disposed []probe.Handle
	pending  []func()
	plays    int

	// Set before use to make the corresponding call fail.
	PrepareErr error
	PlayErr    error

	// AssetDuration is returned by Duration.
	AssetDuration time.Duration
}

// NewPlayer creates a Player whose clips last 600ms.
func NewPlayer() *Player {
	return &Player{
		prepared:      make(map[probe.Handle]string),
		AssetDuration: 600 * time.Millisecond,
	}
}

// Prepare implements probe.Player.
func (p *Player) Prepare(asset string) (probe.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.PrepareErr != nil {
		return 0, p.PrepareErr
	}
	p.next++
	p.prepared[p.next] = asset
	return p.next, nil
}

// Play implements probe.Player. The completion is held until Complete is called.
func (p *Player) Play(h probe.Handle, onComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.PlayErr != nil {
		return p.PlayErr
	}
	if _, ok := p.prepared[h]; !ok {
		return errors.New("unknown handle")
	}
	p.plays++
	p.pending = append(p.pending, onComplete)
	return nil
}

// Dispose implements probe.Player.
func (p *Player) Dispose(h probe.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.prepared, h)
	p.disposed = append(p.disposed, h)
	return nil
}

// Duration implements probe.DurationProber.
func (p *Player) Duration(string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AssetDuration, nil
}

// Complete fires the oldest pending completion on the calling goroutine.
// It returns false when nothing is pending.
func (p *Player) Complete() bool {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return false
	}
	fn := p.pending[0]
	p.pending = p.pending[1:]
	p.mu.Unlock()

	fn()
	return true
}

// Plays returns how many times Play succeeded.
func (p *Player) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

// Pending returns the number of plays awaiting completion.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Disposed returns the handles passed to Dispose.
func (p *Player) Disposed() []probe.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]probe.Handle(nil), p.disposed...)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
