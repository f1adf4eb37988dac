package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Transition records a single change of the inferred sound mode.
type Transition struct {
	ID        string    `json:"id" yaml:"id"`
	From      SoundMode `json:"from" yaml:"from"`
	To        SoundMode `json:"to" yaml:"to"`
	ElapsedMs int64     `json:"elapsed_ms" yaml:"elapsed_ms"` // Probe duration that produced To
	Timestamp int64     `json:"timestamp" yaml:"timestamp"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"` // e.g. "watch", "probe", "tui"
}

// Validation errors.
var (
	ErrEmptyTransitionID   = errors.New("transition id cannot be empty")
	ErrUnchangedTransition = errors.New("transition must change the mode")
	ErrUndeterminedTarget  = errors.New("transition cannot return to not-determined")
	ErrInvalidTimestamp    = errors.New("timestamp must be greater than 0")
)

// NewTransition creates a Transition with a generated ULID.
func NewTransition(from, to SoundMode, elapsed time.Duration, source string) (*Transition, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Transition{
		ID:        id.String(),
		From:      from,
		To:        to,
		ElapsedMs: elapsed.Milliseconds(),
		Timestamp: now.Unix(),
		Source:    source,
	}, nil
}

// Validate checks that the transition is well formed.
func (t *Transition) Validate() error {
	if t.ID == "" {
		return ErrEmptyTransitionID
	}
	if t.From == t.To {
		return ErrUnchangedTransition
	}
	if !t.To.IsDetermined() {
		return ErrUndeterminedTarget
	}
	if t.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Time returns the transition timestamp as a time.Time.
func (t *Transition) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// Elapsed returns the probe duration that produced the transition.
func (t *Transition) Elapsed() time.Duration {
	return time.Duration(t.ElapsedMs) * time.Millisecond
}
