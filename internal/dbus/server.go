package dbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/soundmode/internal/model"
)

// DefaultUpdateTimeout bounds how long an Update call waits for a probe.
const DefaultUpdateTimeout = 5 * time.Second

// ModeServer exports a Controller on the session bus.
type ModeServer struct {
	conn   *dbus.Conn
	logger *slog.Logger
	ctrl   Controller

	updateTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewModeServer creates a server for ctrl.
func NewModeServer(ctrl Controller, logger *slog.Logger) *ModeServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModeServer{
		logger:        logger,
		ctrl:          ctrl,
		updateTimeout: DefaultUpdateTimeout,
	}
}

// Start connects to the session bus and exports the service.
func (s *ModeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: modeMethods(),
				Signals: modeSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", DBusBusName)
	}

	s.running = true
	s.logger.Info("D-Bus sound mode server started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *ModeServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		_ = s.conn.Export(nil, DBusPath, DBusInterface)
		_ = s.conn.Export(nil, DBusPath, "org.freedesktop.DBus.Introspectable")
		// SessionBus is shared, leave it open
	}

	s.logger.Info("D-Bus sound mode server stopped")
	return nil
}

// GetMode returns the last known mode without probing.
// D-Bus method: GetMode() -> s
func (s *ModeServer) GetMode() (string, *dbus.Error) {
	return s.ctrl.CurrentMode().String(), nil
}

// Update probes once and returns the resulting mode.
// D-Bus method: Update() -> s
func (s *ModeServer) Update() (string, *dbus.Error) {
	result := make(chan model.SoundMode, 1)
	s.ctrl.UpdateCurrentMode(func(mode model.SoundMode) { result <- mode })

	select {
	case mode := <-result:
		return mode.String(), nil
	case <-time.After(s.updateTimeout):
		s.logger.Warn("update timed out", "timeout", s.updateTimeout)
		return "", dbus.MakeFailedError(fmt.Errorf("probe did not complete within %s", s.updateTimeout))
	}
}

// BeginObserving starts periodic probing.
// D-Bus method: BeginObserving()
func (s *ModeServer) BeginObserving() *dbus.Error {
	s.ctrl.BeginObserving()
	return nil
}

// EndObserving stops periodic probing.
// D-Bus method: EndObserving()
func (s *ModeServer) EndObserving() *dbus.Error {
	s.ctrl.EndObserving()
	return nil
}

// IsObserving reports whether periodic probing is requested.
// D-Bus method: IsObserving() -> b
func (s *ModeServer) IsObserving() (bool, *dbus.Error) {
	return s.ctrl.IsObserving(), nil
}

// modeMethods returns the D-Bus method introspection data.
func modeMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "GetMode",
			Args: []introspect.Arg{
				{Name: "mode", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Update",
			Args: []introspect.Arg{
				{Name: "mode", Type: "s", Direction: "out"},
			},
		},
		{Name: "BeginObserving"},
		{Name: "EndObserving"},
		{
			Name: "IsObserving",
			Args: []introspect.Arg{
				{Name: "observing", Type: "b", Direction: "out"},
			},
		},
	}
}

// modeSignals returns the D-Bus signal introspection data.
func modeSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: SignalModeChanged,
			Args: []introspect.Arg{
				{Name: "mode", Type: "s"},
				{Name: "previous", Type: "s"},
			},
		},
	}
}
