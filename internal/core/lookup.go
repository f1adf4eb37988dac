package core

import (
	"slices"
	"strings"

	"github.com/jmylchreest/soundmode/internal/model"
)

// LookupByID finds a transition by ID. A unique, case-insensitive prefix is
// accepted. Returns nil if nothing or more than one transition matches.
func LookupByID(transitions []model.Transition, id string) *model.Transition {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return nil
	}

	var found *model.Transition
	for i := range transitions {
		if transitions[i].ID == id {
			return &transitions[i]
		}
		if strings.HasPrefix(transitions[i].ID, id) {
			if found != nil {
				return nil
			}
			found = &transitions[i]
		}
	}
	return found
}

// LookupByIndex finds a transition by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(transitions []model.Transition, index int) *model.Transition {
	idx := index - 1
	if idx < 0 || idx >= len(transitions) {
		return nil
	}
	return &transitions[idx]
}

// UniqueSources returns the sorted set of sources that recorded transitions.
func UniqueSources(transitions []model.Transition) []string {
	var sources []string
	for _, t := range transitions {
		if t.Source != "" && !slices.Contains(sources, t.Source) {
			sources = append(sources, t.Source)
		}
	}
	slices.Sort(sources)
	return sources
}
