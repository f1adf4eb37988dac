package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundmode/internal/model"
)

// EmitModeChanged emits the ModeChanged signal.
func (s *ModeServer) EmitModeChanged(mode, previous model.SoundMode) error {
	s.mu.Lock()
	conn, running := s.conn, s.running
	s.mu.Unlock()

	if conn == nil || !running {
		return ErrNotConnected
	}

	err := conn.Emit(DBusPath, DBusInterface+"."+SignalModeChanged, mode.String(), previous.String())
	if err != nil {
		return fmt.Errorf("failed to emit ModeChanged signal: %w", err)
	}

	s.logger.Debug("emitted ModeChanged signal", "mode", mode, "previous", previous)
	return nil
}

// Connection returns the underlying D-Bus connection.
func (s *ModeServer) Connection() *dbus.Conn {
	return s.conn
}
