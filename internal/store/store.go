// Package store keeps the sound mode transition history and the state shared
// between soundmode processes.
package store

import (
	"errors"
	"slices"
	"sync"

	"github.com/jmylchreest/soundmode/internal/model"
)

// ChangeType indicates the type of history change.
type ChangeType int

const (
	// ChangeTypeAdd indicates transitions were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeClear indicates the history was cleared.
	ChangeTypeClear
	// ChangeTypePrune indicates old transitions were dropped.
	ChangeTypePrune
)

// ChangeEvent signals history content changes.
type ChangeEvent struct {
	Type   ChangeType
	Count  int
	Source string
}

// ErrHistoryClosed is returned when operations are attempted on a closed history.
var ErrHistoryClosed = errors.New("history is closed")

// History holds recorded transitions in order of arrival, optionally backed
// by a Persistence.
type History struct {
	mu          sync.RWMutex
	transitions []model.Transition
	index       map[string]int // transition id -> slice index

	persistence Persistence
	maxEntries  int // 0 = unlimited

	subscribers []chan ChangeEvent
	closed      bool
}

// NewHistory creates a History. A nil persistence keeps it in memory only.
func NewHistory(persistence Persistence, maxEntries int) *History {
	return &History{
		index:       make(map[string]int),
		persistence: persistence,
		maxEntries:  maxEntries,
	}
}

// Add validates and records a transition. Known ids are ignored.
func (h *History) Add(t model.Transition) error {
	if err := t.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}
	if _, exists := h.index[t.ID]; exists {
		return nil
	}

	h.index[t.ID] = len(h.transitions)
	h.transitions = append(h.transitions, t)

	if h.persistence != nil {
		if err := h.persistence.Append(t); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: 1, Source: t.Source})

	return h.trimLocked()
}

// trimLocked drops the oldest transitions beyond maxEntries. Caller must hold h.mu.
func (h *History) trimLocked() error {
	excess := len(h.transitions) - h.maxEntries
	if h.maxEntries <= 0 || excess <= 0 {
		return nil
	}

	h.transitions = slices.Clone(h.transitions[excess:])
	h.reindexLocked()

	if h.persistence != nil {
		if err := h.persistence.Rewrite(h.transitions); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{Type: ChangeTypePrune, Count: excess})
	return nil
}

func (h *History) reindexLocked() {
	h.index = make(map[string]int, len(h.transitions))
	for i, t := range h.transitions {
		h.index[t.ID] = i
	}
}

// All returns a copy of all transitions, oldest first.
func (h *History) All() []model.Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.transitions)
}

// Recent returns up to limit transitions, newest first. limit <= 0 returns all.
func (h *History) Recent(limit int) []model.Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := slices.Clone(h.transitions)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Latest returns the most recent transition, or nil.
func (h *History) Latest() *model.Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.transitions) == 0 {
		return nil
	}
	t := h.transitions[len(h.transitions)-1]
	return &t
}

// GetByID returns a transition by id, or nil.
func (h *History) GetByID(id string) *model.Transition {
	h.mu.RLock()
	defer h.mu.RUnlock()

	idx, ok := h.index[id]
	if !ok {
		return nil
	}
	t := h.transitions[idx]
	return &t
}

// Count returns the number of transitions held.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.transitions)
}

// Hydrate loads transitions from persistence, skipping ids already held.
func (h *History) Hydrate() error {
	if h.persistence == nil {
		return nil
	}

	transitions, err := h.persistence.Load()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, t := range transitions {
		if _, exists := h.index[t.ID]; exists {
			continue
		}
		h.index[t.ID] = len(h.transitions)
		h.transitions = append(h.transitions, t)
		added++
	}

	if added > 0 {
		h.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: added, Source: "persistence"})
	}
	return nil
}

// Clear removes every transition, including persisted ones.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHistoryClosed
	}

	count := len(h.transitions)
	h.transitions = nil
	h.index = make(map[string]int)

	if h.persistence != nil {
		if err := h.persistence.Clear(); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{Type: ChangeTypeClear, Count: count})
	return nil
}

// Subscribe returns a channel receiving change events. Events are dropped
// when the channel is full.
func (h *History) Subscribe() <-chan ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (h *History) Unsubscribe(ch <-chan ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = slices.Delete(h.subscribers, i, i+1)
			close(sub)
			return
		}
	}
}

// Close closes subscriber channels and the persistence.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil

	if h.persistence != nil {
		return h.persistence.Close()
	}
	return nil
}

// notifyChange fans out an event. Caller must hold h.mu.
func (h *History) notifyChange(event ChangeEvent) {
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
