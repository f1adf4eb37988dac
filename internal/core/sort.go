package core

import (
	"cmp"
	"slices"
	"strings"

	"github.com/jmylchreest/soundmode/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByElapsed   SortField = "elapsed"
	SortBySource    SortField = "source"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTimestamp,
		Order: SortDesc,
	}
}

// Sort sorts transitions in place. Ties keep their order.
func Sort(transitions []model.Transition, opts SortOptions) {
	slices.SortStableFunc(transitions, func(a, b model.Transition) int {
		var c int
		switch opts.Field {
		case SortByElapsed:
			c = cmp.Compare(a.ElapsedMs, b.ElapsedMs)
		case SortBySource:
			c = cmp.Compare(strings.ToLower(a.Source), strings.ToLower(b.Source))
		default:
			c = cmp.Compare(a.Timestamp, b.Timestamp)
		}

		if opts.Order == SortDesc {
			return -c
		}
		return c
	})
}

// ParseSortField parses a sort field string. Unknown values sort by timestamp.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "elapsed", "ms", "e":
		return SortByElapsed
	case "source", "src", "s":
		return SortBySource
	default:
		return SortByTimestamp
	}
}

// ParseSortOrder parses a sort order string. Unknown values sort descending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc
	default:
		return SortDesc
	}
}
