package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Actions
	Observe     key.Binding
	Probe       key.Binding
	DnD         key.Binding
	Refresh     key.Binding
	CopyAllJSON key.Binding
	CopyAllYAML key.Binding

	// Global
	Back key.Binding
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Observe, k.Probe, k.DnD, k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Observe, k.Probe, k.DnD},
		{k.Up, k.Down, k.Refresh},
		{k.CopyAllJSON, k.CopyAllYAML},
		{k.Help, k.Back, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Observe: key.NewBinding(
			key.WithKeys(" ", "o"),
			key.WithHelp("space", "begin/end observing"),
		),
		Probe: key.NewBinding(
			key.WithKeys("u", "p"),
			key.WithHelp("u", "probe now"),
		),
		DnD: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle do not disturb"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh history"),
		),
		CopyAllJSON: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "copy history as JSON"),
		),
		CopyAllYAML: key.NewBinding(
			key.WithKeys("alt+c"),
			key.WithHelp("alt+c", "copy history as YAML"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
