package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundmode/internal/lifecycle"
)

// LogindNotifier turns logind's PrepareForSleep signal into lifecycle events:
// PrepareForSleep(true) enters the background, PrepareForSleep(false) returns
// to the foreground.
type LogindNotifier struct {
	logger  *slog.Logger
	emitter *lifecycle.Emitter

	mu      sync.Mutex
	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}
	running bool
}

// NewLogindNotifier creates a notifier. Call Start to connect.
func NewLogindNotifier(logger *slog.Logger) *LogindNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogindNotifier{
		logger:  logger,
		emitter: lifecycle.New(logger),
	}
}

// OnDidEnterBackground registers fn for sleep. It returns an unsubscribe function.
func (n *LogindNotifier) OnDidEnterBackground(fn func()) func() {
	return n.emitter.OnDidEnterBackground(fn)
}

// OnWillEnterForeground registers fn for resume. It returns an unsubscribe function.
func (n *LogindNotifier) OnWillEnterForeground(fn func()) func() {
	return n.emitter.OnWillEnterForeground(fn)
}

// Start subscribes to PrepareForSleep on the system bus.
func (n *LogindNotifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return nil
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(logindMatch()...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	n.conn = conn
	n.signals = make(chan *dbus.Signal, 8)
	n.done = make(chan struct{})
	conn.Signal(n.signals)
	n.running = true

	go n.processSignals(n.signals, n.done)

	n.logger.Info("following logind sleep events")
	return nil
}

func logindMatch() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(logindSleep),
	}
}

// processSignals reads signals until Stop.
func (n *LogindNotifier) processSignals(ch <-chan *dbus.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			n.handleSignal(sig)
		}
	}
}

// handleSignal maps one PrepareForSleep signal to a lifecycle event.
func (n *LogindNotifier) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != logindInterface+"."+logindSleep {
		return
	}
	if len(sig.Body) < 1 {
		n.logger.Warn("malformed PrepareForSleep signal")
		return
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		n.logger.Warn("invalid PrepareForSleep argument type")
		return
	}

	if sleeping {
		n.logger.Debug("system preparing for sleep")
		n.emitter.EnterBackground()
		return
	}
	n.logger.Debug("system resumed")
	n.emitter.EnterForeground()
}

// Stop removes the match rule and stops processing. The shared system bus stays open.
func (n *LogindNotifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}
	n.running = false
	close(n.done)

	n.conn.RemoveSignal(n.signals)
	if err := n.conn.RemoveMatchSignal(logindMatch()...); err != nil {
		return fmt.Errorf("failed to remove match rule: %w", err)
	}
	return nil
}
