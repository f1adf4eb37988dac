package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/daemon"
	"github.com/jmylchreest/soundmode/internal/dbus"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/soundmode"
	"github.com/jmylchreest/soundmode/internal/store"
)

// RunOptions configures the TUI.
type RunOptions struct {
	Config     *config.Config
	ConfigPath string
	// Output overrides the audio device.
	Output audio.Output
	Logger *slog.Logger
}

// Run starts the live view. When `soundmode watch` owns the bus the view
// drives it over D-Bus; otherwise it runs its own idle observer that leaves
// the shared state and history untouched.
func Run(opts RunOptions) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Deliveries are queued so the observer never blocks on the program loop,
	// then handed to it in order.
	var p *tea.Program
	queue := soundmode.NewSerialDispatcher(opts.Logger)
	defer queue.Stop()
	dispatch := soundmode.DispatcherFunc(func(fn func()) {
		queue.Dispatch(func() { p.Send(dispatchMsg(fn)) })
	})

	if opts.Config.DBus.Enabled {
		client, err := dbus.NewClient(opts.Logger)
		if err != nil {
			opts.Logger.Debug("session bus unavailable", "error", err)
		} else if client.Running() {
			return runRemote(opts, client, dispatch, &p)
		}
	}
	return runLocal(opts, dispatch, &p)
}

// runRemote drives the running service.
func runRemote(opts RunOptions, client *dbus.Client, dispatch soundmode.Dispatcher, p **tea.Program) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var history *store.History
	if opts.Config.History.Enabled {
		h, err := daemon.OpenHistory(0, opts.Logger)
		if err != nil {
			opts.Logger.Warn("transition history unavailable", "error", err)
		} else {
			history = h
			defer func() { _ = history.Close() }()
		}
	}

	ctrl, err := newRemoteController(ctx, client, dispatch, history, opts.Logger)
	if err != nil {
		return err
	}

	m := New(Options{
		Controller: ctrl,
		History:    history,
		StatePath:  config.StatePath(),
	})
	*p = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		if err := ctrl.Watch(ctx); err != nil {
			opts.Logger.Warn("not following service mode changes", "error", err)
		}
	}()
	opts.Logger.Info("attached to running service")

	_, err = (*p).Run()
	return err
}

// runLocal starts an idle, read-only observer in this process.
func runLocal(opts RunOptions, dispatch soundmode.Dispatcher, p **tea.Program) error {
	cfg := *opts.Config
	cfg.DBus.Enabled = false

	d, err := daemon.New(daemon.Options{
		Config:     &cfg,
		ConfigPath: opts.ConfigPath,
		Output:     opts.Output,
		Dispatcher: dispatch,
		Idle:       true,
		Source:     "tui",
		ReadOnly:   true,
		Logger:     opts.Logger,
	})
	if err != nil {
		return err
	}

	m := New(Options{
		Controller: localController{d.Controller()},
		History:    d.History(),
		StatePath:  config.StatePath(),
	})
	*p = tea.NewProgram(m, tea.WithAltScreen())

	if err := d.Start(context.Background()); err != nil {
		_ = d.Close()
		return fmt.Errorf("failed to start observer: %w", err)
	}

	_, runErr := (*p).Run()
	return errors.Join(runErr, d.Close())
}

// localController adapts the embedded daemon's controller to the view.
type localController struct {
	*daemon.Controller
}

func (c localController) Subscribe(onChange func(model.SoundMode)) func() {
	return c.Controller.Subscribe(onChange).Invalidate
}
