// Package tui provides the BubbleTea-based live sound mode view.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/store"
)

// Controller is the sound mode surface the view drives.
type Controller interface {
	CurrentMode() model.SoundMode
	UpdateCurrentMode(completion func(model.SoundMode))
	BeginObserving()
	EndObserving()
	IsObserving() bool
	// Subscribe registers onChange for mode changes until unsubscribe is
	// called.
	Subscribe(onChange func(model.SoundMode)) (unsubscribe func())
}

// headerHeight is the number of lines above the history list.
const headerHeight = 7

// Options configures a Model.
type Options struct {
	Controller Controller
	// History is listed below the mode panel. Optional.
	History *store.History
	// StatePath enables the Do Not Disturb toggle. Optional.
	StatePath string
}

// Model is the main TUI model.
type Model struct {
	ctrl      Controller
	history   *store.History
	statePath string

	// Components
	list list.Model
	help help.Model
	keys KeyMap

	// live is written by observer callbacks, which run on the program loop
	live        *liveState
	unsubscribe func()

	showHelp bool
	width    int
	height   int
	ready    bool

	// Status message
	statusMsg string
	statusErr bool

	// History change subscription
	refreshCh <-chan store.ChangeEvent
}

// liveState is the part of the view updated by manager deliveries.
type liveState struct {
	mode       model.SoundMode
	changes    int
	probing    bool
	lastProbe  time.Time
	lastResult model.SoundMode
	dnd        bool
}

// transitionItem wraps a transition for the list component.
type transitionItem struct {
	transition model.Transition
}

func (i transitionItem) Title() string {
	return fmt.Sprintf("%s → %s", i.transition.From, i.transition.To)
}

func (i transitionItem) Description() string {
	desc := fmt.Sprintf("%s probe · %s", i.transition.Elapsed(), humanize.Time(i.transition.Time()))
	if i.transition.Source != "" {
		desc += " · " + i.transition.Source
	}
	return desc
}

func (i transitionItem) FilterValue() string {
	return i.transition.To.String() + " " + i.transition.Source
}

// New creates a new TUI model and subscribes it to mode changes.
func New(opts Options) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "History"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	live := &liveState{mode: opts.Controller.CurrentMode()}

	m := Model{
		ctrl:      opts.Controller,
		history:   opts.History,
		statePath: opts.StatePath,
		list:      l,
		help:      help.New(),
		keys:      DefaultKeyMap(),
		live:      live,
	}

	m.unsubscribe = opts.Controller.Subscribe(func(mode model.SoundMode) {
		live.mode = mode
		live.changes++
	})

	if opts.History != nil {
		m.refreshCh = opts.History.Subscribe()
	}

	return m
}

// dispatchMsg carries a manager delivery onto the program loop.
type dispatchMsg func()

type loadHistoryMsg struct{}

type refreshMsg struct{}

type stateMsg struct {
	dnd bool
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadHistory,
		m.watchForChanges,
		m.loadState,
	)
}

func (m Model) loadHistory() tea.Msg {
	return loadHistoryMsg{}
}

// watchForChanges waits for the next history change.
func (m Model) watchForChanges() tea.Msg {
	if m.refreshCh == nil {
		return nil
	}
	if _, ok := <-m.refreshCh; !ok {
		return nil
	}
	return refreshMsg{}
}

// loadState reads the Do Not Disturb flag.
func (m Model) loadState() tea.Msg {
	if m.statePath == "" {
		return nil
	}
	state, err := store.LoadSharedState(m.statePath)
	if err != nil {
		return statusMsg{text: "Failed to read state: " + err.Error(), isErr: true}
	}
	return stateMsg{dnd: state.DnDEnabled}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.list.SetSize(msg.Width, max(msg.Height-headerHeight-1, 0))
		return m, nil

	case loadHistoryMsg:
		m.list.SetItems(m.buildListItems())
		return m, nil

	case refreshMsg:
		m.list.SetItems(m.buildListItems())
		return m, m.watchForChanges

	case stateMsg:
		m.live.dnd = msg.dnd
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// status returns a command that shows a status message.
func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.showHelp = false
		return m, nil

	case key.Matches(msg, m.keys.Observe):
		if m.ctrl.IsObserving() {
			m.ctrl.EndObserving()
			return m, status("Observation stopped", false)
		}
		m.ctrl.BeginObserving()
		return m, status("Observation started", false)

	case key.Matches(msg, m.keys.Probe):
		live := m.live
		live.probing = true
		m.ctrl.UpdateCurrentMode(func(mode model.SoundMode) {
			live.probing = false
			live.lastProbe = time.Now()
			live.lastResult = mode
		})
		return m, nil

	case key.Matches(msg, m.keys.DnD):
		if m.statePath == "" {
			return m, status("Do Not Disturb unavailable", true)
		}
		return m, m.toggleDnD

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadHistory

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.transitions(), "", "  ")
		if err != nil {
			return m, status("Failed to marshal JSON: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		data, err := yaml.Marshal(m.transitions())
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// toggleDnD flips the shared Do Not Disturb flag. The probe player picks the
// change up through its state file watcher.
func (m Model) toggleDnD() tea.Msg {
	var enabled bool
	_, err := store.UpdateSharedState(m.statePath, func(s *store.SharedState) {
		enabled = s.ToggleDnD(store.DnDTriggerUser, "dnd toggle", "tui")
	})
	if err != nil {
		return statusMsg{text: "Failed to toggle Do Not Disturb: " + err.Error(), isErr: true}
	}
	return stateMsg{dnd: enabled}
}

// transitions returns the history, newest first.
func (m Model) transitions() []model.Transition {
	if m.history == nil {
		return []model.Transition{}
	}
	return m.history.Recent(0)
}

// buildListItems creates list items from the history.
func (m Model) buildListItems() []list.Item {
	transitions := m.transitions()
	items := make([]list.Item, len(transitions))
	for i, t := range transitions {
		items[i] = transitionItem{transition: t}
	}
	return items
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return m.viewHelp()
	}

	s := m.viewMode() + "\n" + m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.help.View(m.keys)
	}
	return s
}

// modeColors maps each mode to its label color.
var modeColors = map[model.SoundMode]lipgloss.Color{
	model.ModeNotDetermined: lipgloss.Color("8"),
	model.ModeSilent:        lipgloss.Color("11"),
	model.ModeRing:          lipgloss.Color("10"),
}

// viewMode renders the mode label, last probe and the observe button.
func (m Model) viewMode() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	modeStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(modeColors[m.live.mode])

	buttonStyle := lipgloss.NewStyle().
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("12"))

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Sound Mode") + "\n")
	sb.WriteString(modeStyle.Render(strings.ToUpper(m.live.mode.String())) + "\n")

	probe := "never"
	switch {
	case m.live.probing:
		probe = "probing..."
	case !m.live.lastProbe.IsZero():
		probe = fmt.Sprintf("%s (%s)", humanize.Time(m.live.lastProbe), m.live.lastResult)
	}
	sb.WriteString(labelStyle.Render("Last probe: ") + probe + "\n")
	sb.WriteString(labelStyle.Render("Do Not Disturb: ") + onOff(m.live.dnd) + "\n")

	button := "Begin observing"
	if m.ctrl.IsObserving() {
		button = "End observing"
	}
	sb.WriteString(buttonStyle.Render(button))

	return sb.String()
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	full := m.help
	full.ShowAll = true

	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		full.View(m.keys) + "\n\n" +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
