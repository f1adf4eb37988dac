// Package lifecycle provides in-process background/foreground notifications.
package lifecycle

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
)

// Emitter fans out background and foreground events to registered handlers.
// The zero value is not usable; create one with New.
type Emitter struct {
	mu     sync.Mutex
	logger *slog.Logger

	nextID     uint64
	background map[uint64]func()
	foreground map[uint64]func()

	inBackground bool
}

// New creates an Emitter in the foreground state.
func New(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		logger:     logger,
		background: make(map[uint64]func()),
		foreground: make(map[uint64]func()),
	}
}

// OnDidEnterBackground registers fn and returns a function removing it.
func (e *Emitter) OnDidEnterBackground(fn func()) func() {
	return e.register(e.background, fn)
}

// OnWillEnterForeground registers fn and returns a function removing it.
func (e *Emitter) OnWillEnterForeground(fn func()) func() {
	return e.register(e.foreground, fn)
}

func (e *Emitter) register(set map[uint64]func(), fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	set[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(set, id)
		})
	}
}

// EnterBackground notifies background handlers. Repeated calls without an
// intervening EnterForeground are ignored.
func (e *Emitter) EnterBackground() {
	e.mu.Lock()
	if e.inBackground {
		e.mu.Unlock()
		return
	}
	e.inBackground = true
	handlers := snapshot(e.background)
	e.mu.Unlock()

	e.logger.Debug("entering background", "handlers", len(handlers))
	for _, fn := range handlers {
		fn()
	}
}

// EnterForeground notifies foreground handlers. It is ignored unless the
// emitter is in the background.
func (e *Emitter) EnterForeground() {
	e.mu.Lock()
	if !e.inBackground {
		e.mu.Unlock()
		return
	}
	e.inBackground = false
	handlers := snapshot(e.foreground)
	e.mu.Unlock()

	e.logger.Debug("entering foreground", "handlers", len(handlers))
	for _, fn := range handlers {
		fn()
	}
}

// InBackground reports the current state.
func (e *Emitter) InBackground() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inBackground
}

// snapshot returns handlers in registration order. Caller must hold e.mu.
func snapshot(set map[uint64]func()) []func() {
	handlers := make([]func(), 0, len(set))
	for _, id := range slices.Sorted(maps.Keys(set)) {
		handlers = append(handlers, set[id])
	}
	return handlers
}

// WatchSignals maps bg to EnterBackground and fg to EnterForeground until ctx is done.
func (e *Emitter) WatchSignals(ctx context.Context, bg, fg os.Signal) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, bg, fg)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case bg:
				e.EnterBackground()
			case fg:
				e.EnterForeground()
			}
		}
	}
}
