package tui

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/dbus"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/soundmode"
	"github.com/jmylchreest/soundmode/internal/store"
)

// callTimeout bounds a single call to the service.
const callTimeout = 5 * time.Second

// modeClient is the part of the D-Bus client the remote controller needs.
type modeClient interface {
	Mode(ctx context.Context) (model.SoundMode, error)
	Update(ctx context.Context) (model.SoundMode, error)
	Observing(ctx context.Context) (bool, error)
	SetObserving(ctx context.Context, on bool) error
	WatchModeChanged(ctx context.Context, fn func(dbus.ModeChange)) error
}

var _ Controller = (*remoteController)(nil)

// remoteController drives the observer running in `soundmode watch`. The
// service owns the shared state and history, so nothing is recorded here.
type remoteController struct {
	client     modeClient
	dispatcher soundmode.Dispatcher
	history    *store.History // reloaded after every change, may be nil
	logger     *slog.Logger

	mu        sync.Mutex
	mode      model.SoundMode
	observing bool
	nextID    int
	handlers  map[int]func(model.SoundMode)
}

func newRemoteController(ctx context.Context, client modeClient, dispatcher soundmode.Dispatcher,
	history *store.History, logger *slog.Logger) (*remoteController, error) {
	if logger == nil {
		logger = slog.Default()
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	mode, err := client.Mode(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mode from service: %w", err)
	}
	observing, err := client.Observing(callCtx)
	if err != nil {
		logger.Warn("failed to read observing state from service", "error", err)
	}

	return &remoteController{
		client:     client,
		dispatcher: dispatcher,
		history:    history,
		logger:     logger,
		mode:       mode,
		observing:  observing,
		handlers:   make(map[int]func(model.SoundMode)),
	}, nil
}

// Watch follows ModeChanged signals until ctx is done.
func (c *remoteController) Watch(ctx context.Context) error {
	return c.client.WatchModeChanged(ctx, c.handleChange)
}

func (c *remoteController) handleChange(change dbus.ModeChange) {
	c.mu.Lock()
	c.mode = change.Mode
	handlers := make([]func(model.SoundMode), 0, len(c.handlers))
	for _, id := range slices.Sorted(maps.Keys(c.handlers)) {
		handlers = append(handlers, c.handlers[id])
	}
	c.mu.Unlock()

	if c.history != nil {
		if err := c.history.Hydrate(); err != nil {
			c.logger.Warn("failed to reload history", "error", err)
		}
	}

	c.dispatcher.Dispatch(func() {
		for _, fn := range handlers {
			fn(change.Mode)
		}
	})
}

func (c *remoteController) CurrentMode() model.SoundMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// UpdateCurrentMode asks the service to probe. completion runs on the
// dispatcher with the service's mode, or the last known one if the call
// failed.
func (c *remoteController) UpdateCurrentMode(completion func(model.SoundMode)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		mode, err := c.client.Update(ctx)
		c.mu.Lock()
		if err != nil {
			c.logger.Warn("service update failed", "error", err)
			mode = c.mode
		} else {
			c.mode = mode
		}
		c.mu.Unlock()

		if completion != nil {
			c.dispatcher.Dispatch(func() { completion(mode) })
		}
	}()
}

func (c *remoteController) BeginObserving() {
	c.setObserving(true)
}

func (c *remoteController) EndObserving() {
	c.setObserving(false)
}

func (c *remoteController) setObserving(on bool) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := c.client.SetObserving(ctx, on); err != nil {
		c.logger.Warn("failed to change observation in service", "observing", on, "error", err)
		return
	}
	c.mu.Lock()
	c.observing = on
	c.mu.Unlock()
}

func (c *remoteController) IsObserving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observing
}

func (c *remoteController) Subscribe(onChange func(model.SoundMode)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = onChange
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}
