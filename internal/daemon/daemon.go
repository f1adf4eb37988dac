package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/dbus"
	"github.com/jmylchreest/soundmode/internal/lifecycle"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/soundmode"
	"github.com/jmylchreest/soundmode/internal/store"
)

// DefaultSource tags transitions recorded by the daemon.
const DefaultSource = "watch"

// Options configures a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath is watched for hot reload. Empty uses the default location.
	ConfigPath string
	// Output overrides the audio device, e.g. audio.PacedOutput.
	Output audio.Output
	// Lifecycle overrides the source selected by Config.Lifecycle.Source.
	Lifecycle soundmode.LifecycleNotifier
	// Dispatcher overrides the manager's delivery context.
	Dispatcher soundmode.Dispatcher
	// Idle skips BeginObserving on Start; the first probe still runs.
	Idle bool
	// Source tags recorded transitions. Defaults to DefaultSource.
	Source string
	// ReadOnly leaves history.jsonl and state.json to another process. The
	// history is still loaded for display but nothing is recorded to either.
	ReadOnly bool
	Logger *slog.Logger
}

// Daemon runs continuous sound mode observation.
type Daemon struct {
	logger *slog.Logger
	idle   bool

	mu      sync.Mutex
	cfg     *config.Config
	started bool
	cancel  context.CancelFunc

	audio   *audio.Manager
	gate    *store.DnDGate
	manager *soundmode.Manager
	history *store.History
	server  *dbus.ModeServer
	logind  *dbus.LogindNotifier
	signals *lifecycle.Emitter

	recorder      *recorder
	token         *soundmode.Token
	configWatcher *ConfigWatcher

	closeOnce sync.Once
	closeErr  error
}

// New builds the daemon components. Nothing is started until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	cfg := opts.Config
	logger := opts.Logger

	if err := config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	d := &Daemon{
		logger:        logger,
		idle:          opts.Idle,
		cfg:           cfg,
		configWatcher: NewConfigWatcher(opts.ConfigPath, logger),
	}

	statePath := config.StatePath()
	d.gate = store.NewDnDGate(statePath, logger)
	d.audio = audio.NewManager(cfg, d.gate.Suppressed, opts.Output, logger)

	notifier := opts.Lifecycle
	if notifier == nil {
		notifier = d.lifecycleSource(cfg.Lifecycle.Source)
	}

	manager, err := soundmode.New(d.audio.Player(), soundmode.Options{
		Asset:      d.audio.Sound(),
		Interval:   cfg.Probe.Interval.Duration(),
		Timeout:    cfg.Probe.Timeout.Duration(),
		Lifecycle:  notifier,
		Dispatcher: opts.Dispatcher,
		Logger:     logger,
	})
	if err != nil {
		d.audio.Stop()
		return nil, err
	}
	d.manager = manager

	if cfg.History.Enabled {
		history, err := OpenHistory(cfg.History.MaxEntries, logger)
		if err != nil {
			logger.Warn("transition history disabled", "error", err)
		} else {
			d.history = history
		}
	}

	var emitter modeEmitter
	if cfg.DBus.Enabled {
		d.server = dbus.NewModeServer(d.Controller(), logger)
		emitter = d.server
	}

	recordHistory, recordState := d.history, statePath
	if opts.ReadOnly {
		recordHistory, recordState = nil, ""
	}
	d.recorder = newRecorder(recordHistory, recordState, emitter, opts.Source, logger)

	return d, nil
}

// lifecycleSource builds the notifier named in the config.
func (d *Daemon) lifecycleSource(source string) soundmode.LifecycleNotifier {
	switch source {
	case config.LifecycleLogind:
		d.logind = dbus.NewLogindNotifier(d.logger)
		return d.logind
	case config.LifecycleSignals:
		d.signals = lifecycle.New(d.logger)
		return d.signals
	default:
		return nil
	}
}

// OpenHistory opens and loads the transition history at the default location.
func OpenHistory(maxEntries int, logger *slog.Logger) (*store.History, error) {
	historyPath := config.HistoryPath()
	persistence, err := store.NewJSONLPersistence(historyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	history := store.NewHistory(persistence, maxEntries)
	if err := history.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history", "error", err)
	}
	logger.Info("transition history initialized", "path", historyPath, "count", history.Count())
	return history, nil
}

// Manager returns the sound mode manager.
func (d *Daemon) Manager() *soundmode.Manager {
	return d.manager
}

// History returns the transition history, or nil when disabled.
func (d *Daemon) History() *store.History {
	return d.history
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Run starts the daemon and blocks until ctx is cancelled. It then shuts
// everything down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return d.Close()
}

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("daemon already started")

// Start starts every component, probes once and, unless idle, begins
// observing. Background work stops when ctx is cancelled or on Close.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	d.token = d.manager.SubscribeResult(d.recorder.record)

	if err := d.audio.Start(ctx); err != nil {
		d.logger.Warn("failed to start probe sound watcher", "error", err)
	}
	if err := d.gate.Watch(); err != nil {
		d.logger.Warn("failed to watch shared state, do not disturb changes need a restart", "error", err)
	}

	if d.logind != nil {
		if err := d.logind.Start(); err != nil {
			d.logger.Warn("logind unavailable, observation will not pause on sleep", "error", err)
		}
	}
	if d.signals != nil {
		go d.signals.WatchSignals(ctx, syscall.SIGUSR1, syscall.SIGUSR2)
		d.logger.Info("following lifecycle signals", "background", "SIGUSR1", "foreground", "SIGUSR2")
	}

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			d.logger.Warn("failed to start D-Bus server", "error", err)
		}
	}

	d.configWatcher.SetReloadCallback(d.applyConfig)
	d.configWatcher.SetErrorCallback(func(err error) {
		d.logger.Error("ignoring invalid config", "error", err)
	})
	if err := d.configWatcher.Start(ctx, d.Config()); err != nil {
		d.logger.Warn("failed to start config watcher", "error", err)
	}

	ctrl := d.Controller()
	ctrl.UpdateCurrentMode(nil)
	if !d.idle {
		ctrl.BeginObserving()
	}

	d.logger.Info("sound mode observation ready",
		"sound", d.audio.Sound(),
		"interval", d.manager.Interval(),
		"lifecycle", d.Config().Lifecycle.Source,
		"observing", !d.idle,
	)
	return nil
}

// applyConfig updates the running components from a reloaded config.
func (d *Daemon) applyConfig(newConfig *config.Config) {
	d.mu.Lock()
	old := d.cfg
	d.cfg = newConfig
	d.mu.Unlock()

	d.manager.SetInterval(newConfig.Probe.Interval.Duration())

	if d.audio.UpdateConfig(newConfig) {
		d.logger.Warn("probe sound changed, restart to use it", "sound", newConfig.SoundPath())
	}
	if old.Probe.Timeout != newConfig.Probe.Timeout ||
		old.Lifecycle != newConfig.Lifecycle ||
		old.History != newConfig.History ||
		old.DBus != newConfig.DBus {
		d.logger.Warn("some config changes only apply after a restart")
	}

	d.logger.Info("config applied", "interval", d.manager.Interval(), "volume", newConfig.Probe.Volume)
}

// Close stops every component. It is idempotent and safe without Run.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		var errs []error

		d.mu.Lock()
		cancel := d.cancel
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		d.configWatcher.Stop()

		d.manager.EndObserving()
		d.recorder.releaseObserving()

		if d.server != nil {
			errs = append(errs, d.server.Stop())
		}
		if d.logind != nil {
			errs = append(errs, d.logind.Stop())
		}
		if d.token != nil {
			d.token.Invalidate()
		}

		errs = append(errs, d.manager.Close())
		d.audio.Stop()
		errs = append(errs, d.gate.Stop())

		if d.history != nil {
			errs = append(errs, d.history.Close())
		}

		d.closeErr = errors.Join(errs...)
		d.logger.Info("sound mode observation stopped")
	})
	return d.closeErr
}

// Controller returns the manager as seen by the D-Bus service and the TUI.
func (d *Daemon) Controller() *Controller {
	return &Controller{d: d}
}

var _ dbus.Controller = (*Controller)(nil)

// Controller fronts the sound mode manager. Observation changes made through
// it are mirrored into the shared state file.
type Controller struct {
	d *Daemon
}

// CurrentMode returns the last known mode.
func (c *Controller) CurrentMode() model.SoundMode {
	return c.d.manager.CurrentMode()
}

// UpdateCurrentMode probes once; see soundmode.Manager.UpdateCurrentMode.
func (c *Controller) UpdateCurrentMode(completion func(model.SoundMode)) {
	c.d.manager.UpdateCurrentMode(completion)
}

// BeginObserving starts periodic probing and records it in the shared state.
func (c *Controller) BeginObserving() {
	c.d.manager.BeginObserving()
	c.d.recorder.recordObserving(true)
}

// EndObserving stops periodic probing and records it in the shared state.
func (c *Controller) EndObserving() {
	c.d.manager.EndObserving()
	c.d.recorder.recordObserving(false)
}

// IsObserving reports whether periodic probing is requested.
func (c *Controller) IsObserving() bool {
	return c.d.manager.IsObserving()
}

// Subscribe registers onChange for mode changes.
func (c *Controller) Subscribe(onChange soundmode.ChangeHandler) *soundmode.Token {
	return c.d.manager.Subscribe(onChange)
}
