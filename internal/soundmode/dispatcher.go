package soundmode

import (
	"log/slog"
	"sync"
)

// Dispatcher runs functions on the delivery context.
// Functions must run one at a time, in the order they were dispatched.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// SerialDispatcher delivers functions on a single dedicated goroutine.
type SerialDispatcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	queue []func()
	wake  chan struct{}

	// Control channels
	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewSerialDispatcher creates and starts a SerialDispatcher.
func NewSerialDispatcher(logger *slog.Logger) *SerialDispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &SerialDispatcher{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		running: true,
	}
	go d.loop()
	return d
}

// Dispatch queues fn. It never blocks. Functions dispatched after Stop are dropped.
func (d *SerialDispatcher) Dispatch(fn func()) {
	if fn == nil {
		return
	}

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		d.logger.Debug("dispatcher stopped, dropping delivery")
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Stop stops the delivery goroutine and waits for it to exit.
// It must not be called from a dispatched function.
func (d *SerialDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.queue = nil
	close(d.stopCh)
	d.mu.Unlock()

	<-d.doneCh
}

// loop is the delivery goroutine.
func (d *SerialDispatcher) loop() {
	defer close(d.doneCh)

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.wake:
			d.drain()
		}
	}
}

// drain runs queued functions until the queue is empty or the dispatcher stops.
func (d *SerialDispatcher) drain() {
	for {
		d.mu.Lock()
		if !d.running || len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.run(fn)
	}
}

// run invokes fn, keeping the loop alive if an observer panics.
func (d *SerialDispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", "panic", r)
		}
	}()
	fn()
}
