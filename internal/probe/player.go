package probe

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Handle identifies a prepared probe sound within a Player.
type Handle uint32

// Player plays a prepared clip and reports when playback finished.
//
// Play must invoke onComplete exactly once per successful call, including when
// playback is suppressed, and never before Play has returned.
type Player interface {
	Prepare(asset string) (Handle, error)
	Play(h Handle, onComplete func()) error
	Dispose(h Handle) error
}

// DurationProber reports the playable length of an asset.
type DurationProber interface {
	Duration(asset string) (time.Duration, error)
}

// Errors returned by the engine.
var (
	ErrProbeTimeout = errors.New("probe did not complete in time")
	ErrEngineClosed = errors.New("probe engine is closed")
)

// SetupError is returned when the probe sound cannot be prepared.
// No engine is produced when it occurs.
type SetupError struct {
	Asset string
	Code  int // Underlying platform error code, 0 if unknown
	Err   error
}

func newSetupError(asset string, err error) *SetupError {
	se := &SetupError{Asset: asset, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		se.Code = int(errno)
	}
	return se
}

// Error implements error.
func (e *SetupError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("failed to prepare probe sound %q (code %d): %v", e.Asset, e.Code, e.Err)
	}
	return fmt.Sprintf("failed to prepare probe sound %q: %v", e.Asset, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}
