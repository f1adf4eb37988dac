package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/model"
)

// DnDTrigger represents what triggered the DnD state change.
type DnDTrigger string

const (
	// DnDTriggerUser indicates a user-initiated DnD change (CLI, TUI, etc.)
	DnDTriggerUser DnDTrigger = "user"
	// DnDTriggerSystem indicates a system event triggered the change.
	DnDTriggerSystem DnDTrigger = "system"
)

// DnDTransition records details about a DnD state change.
type DnDTransition struct {
	Trigger   DnDTrigger `json:"trigger"`
	Reason    string     `json:"reason"`           // e.g. "dnd on"
	Source    string     `json:"source,omitempty"` // e.g. "cli", "waybar", "tui"
	Timestamp int64      `json:"timestamp"`
}

// SharedState is the state shared between the watch daemon and the CLI.
// Persisted to ~/.local/share/soundmode/state.json
type SharedState struct {
	// Do Not Disturb suppresses audible probes
	DnDEnabled        bool           `json:"dnd_enabled"`
	DnDLastTransition *DnDTransition `json:"dnd_last_transition,omitempty"`

	// Last inferred mode, written by the watch daemon
	Mode          model.SoundMode `json:"mode"`
	ModeChangedAt int64           `json:"mode_changed_at,omitempty"`
	Observing     bool            `json:"observing"`
	UpdatedAt     int64           `json:"updated_at,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// CurrentStateSchemaVersion is the current version of the state schema.
const CurrentStateSchemaVersion = 1

// stateFileMutex protects concurrent access to state files within the process.
var stateFileMutex sync.Mutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{
		SchemaVersion: CurrentStateSchemaVersion,
	}
}

// LoadSharedState loads the shared state from path.
// A missing or corrupted file yields the default state.
func LoadSharedState(path string) (*SharedState, error) {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()
	return loadSharedState(path)
}

func loadSharedState(path string) (*SharedState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSharedState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateSchemaVersion
	}

	return &state, nil
}

// SaveSharedState saves the shared state to path.
func SaveSharedState(path string, state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()
	return saveSharedState(path, state)
}

func saveSharedState(path string, state *SharedState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentStateSchemaVersion
	}
	state.UpdatedAt = time.Now().Unix()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// UpdateSharedState loads the state, applies fn and saves the result.
func UpdateSharedState(path string, fn func(*SharedState)) (*SharedState, error) {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	state, err := loadSharedState(path)
	if err != nil {
		return nil, err
	}
	fn(state)
	if err := saveSharedState(path, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetDnD updates the Do Not Disturb state with transition tracking.
func (s *SharedState) SetDnD(enabled bool, trigger DnDTrigger, reason, source string) {
	s.DnDEnabled = enabled
	s.DnDLastTransition = &DnDTransition{
		Trigger:   trigger,
		Reason:    reason,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}

// ToggleDnD toggles Do Not Disturb and returns the new state.
func (s *SharedState) ToggleDnD(trigger DnDTrigger, reason, source string) bool {
	s.SetDnD(!s.DnDEnabled, trigger, reason, source)
	return s.DnDEnabled
}

// RecordMode stores the latest inferred mode. The change time only moves
// when the mode differs.
func (s *SharedState) RecordMode(mode model.SoundMode, at time.Time) {
	if s.Mode != mode || s.ModeChangedAt == 0 {
		s.ModeChangedAt = at.Unix()
	}
	s.Mode = mode
}
