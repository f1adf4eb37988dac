// Package model defines the core data structures for soundmode.
package model

import (
	"errors"
	"fmt"
)

// SoundMode is the inferred audible-alert state of the device.
type SoundMode int

const (
	// ModeNotDetermined means no probe has completed yet.
	ModeNotDetermined SoundMode = iota
	// ModeSilent means alerts are suppressed (mute, DnD); media may still play.
	ModeSilent
	// ModeRing means alerts are audible.
	ModeRing
)

// SoundModeNames maps sound modes to their canonical names.
var SoundModeNames = map[SoundMode]string{
	ModeNotDetermined: "not-determined",
	ModeSilent:        "silent",
	ModeRing:          "ring",
}

// ErrInvalidSoundMode is returned when parsing an unknown mode name.
var ErrInvalidSoundMode = errors.New("invalid sound mode")

// String returns the canonical name of the mode.
func (m SoundMode) String() string {
	if name, ok := SoundModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SoundMode(%d)", int(m))
}

// IsDetermined reports whether the mode is the result of a completed probe.
func (m SoundMode) IsDetermined() bool {
	return m == ModeSilent || m == ModeRing
}

// MarshalText implements encoding.TextMarshaler.
func (m SoundMode) MarshalText() ([]byte, error) {
	name, ok := SoundModeNames[m]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSoundMode, int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SoundMode) UnmarshalText(text []byte) error {
	parsed, err := ParseSoundMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseSoundMode parses a canonical mode name.
func ParseSoundMode(s string) (SoundMode, error) {
	for mode, name := range SoundModeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeNotDetermined, fmt.Errorf("%w: %q", ErrInvalidSoundMode, s)
}
