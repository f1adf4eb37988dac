package dbus

import (
	"errors"

	"github.com/jmylchreest/soundmode/internal/model"
)

const (
	// DBusInterface is the sound mode interface name.
	DBusInterface = "io.github.jmylchreest.SoundMode1"
	// DBusPath is the sound mode object path.
	DBusPath = "/io/github/jmylchreest/SoundMode1"
	// DBusBusName is the bus name to claim.
	DBusBusName = "io.github.jmylchreest.SoundMode1"

	// SignalModeChanged is emitted after each mode change.
	SignalModeChanged = "ModeChanged"
)

// logind identifiers used for lifecycle events.
const (
	logindInterface = "org.freedesktop.login1.Manager"
	logindPath      = "/org/freedesktop/login1"
	logindSleep     = "PrepareForSleep"
)

// ErrNotConnected is returned when a bus operation needs a connection that is not open.
var ErrNotConnected = errors.New("not connected to D-Bus")

// Controller is the part of the sound mode manager exported over D-Bus.
type Controller interface {
	CurrentMode() model.SoundMode
	UpdateCurrentMode(completion func(model.SoundMode))
	BeginObserving()
	EndObserving()
	IsObserving() bool
}

// ModeChange is the payload of the ModeChanged signal.
type ModeChange struct {
	Mode     model.SoundMode
	Previous model.SoundMode
}

// parseModeChange decodes a ModeChanged signal body (ss).
func parseModeChange(body []any) (ModeChange, error) {
	if len(body) < 2 {
		return ModeChange{}, errors.New("malformed ModeChanged signal")
	}
	modeName, ok := body[0].(string)
	if !ok {
		return ModeChange{}, errors.New("invalid mode type")
	}
	prevName, ok := body[1].(string)
	if !ok {
		return ModeChange{}, errors.New("invalid previous mode type")
	}

	mode, err := model.ParseSoundMode(modeName)
	if err != nil {
		return ModeChange{}, err
	}
	prev, err := model.ParseSoundMode(prevName)
	if err != nil {
		return ModeChange{}, err
	}
	return ModeChange{Mode: mode, Previous: prev}, nil
}
