package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/store"
)

// Status is a point-in-time view of the sound mode.
type Status struct {
	Mode      model.SoundMode `json:"mode" yaml:"mode"`
	Observing bool            `json:"observing" yaml:"observing"`
	DnD       bool            `json:"dnd" yaml:"dnd"`
	ChangedAt int64           `json:"changed_at,omitempty" yaml:"changed_at,omitempty"`
	UpdatedAt int64           `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	// Live is true when the mode came from the running daemon rather than state.json
	Live bool `json:"live" yaml:"live"`
}

// StatusFromState builds a Status from the shared state file.
func StatusFromState(s *store.SharedState) Status {
	return Status{
		Mode:      s.Mode,
		Observing: s.Observing,
		DnD:       s.DnDEnabled,
		ChangedAt: s.ModeChangedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// FormatStatus writes s in the given format. Unknown formats use plain.
func FormatStatus(w io.Writer, format FormatType, s Status) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	default:
		_, err := io.WriteString(w, statusLines(s)+"\n")
		return err
	}
}

// statusLines renders a multi-line human description.
func statusLines(s Status) string {
	lines := []string{fmt.Sprintf("Sound mode: %s", s.Mode)}
	if s.ChangedAt > 0 {
		lines = append(lines, fmt.Sprintf("Changed: %s", relativeTime(s.ChangedAt)))
	}
	lines = append(lines,
		fmt.Sprintf("Observing: %s", onOff(s.Observing)),
		fmt.Sprintf("Do Not Disturb: %s", onOff(s.DnD)),
	)
	if !s.Live && s.UpdatedAt > 0 {
		lines = append(lines, fmt.Sprintf("Updated: %s", relativeTime(s.UpdatedAt)))
	}
	return strings.Join(lines, "\n")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string   `json:"text"`
	Alt     string   `json:"alt,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
	Class   []string `json:"class,omitempty"`
}

// NewWaybarStatus maps s to a Waybar module. Alt is the mode name; classes add
// "dnd" while Do Not Disturb is on and "stale" when the daemon is not running.
func NewWaybarStatus(s Status) WaybarStatus {
	classes := []string{s.Mode.String()}
	if s.DnD {
		classes = append(classes, "dnd")
	}
	if !s.Live {
		classes = append(classes, "stale")
	}

	text := "?"
	switch s.Mode {
	case model.ModeRing:
		text = "🔔"
	case model.ModeSilent:
		text = "🔕"
	}

	return WaybarStatus{
		Text:    text,
		Alt:     s.Mode.String(),
		Tooltip: statusLines(s),
		Class:   classes,
	}
}

// FormatWaybar writes s as a single Waybar JSON line.
func FormatWaybar(w io.Writer, s Status) error {
	return writeJSONLine(w, NewWaybarStatus(s))
}
