// Package core provides filtering, sorting, and lookup of recorded transitions.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/soundmode/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Field name: from, to, source, elapsed, timestamp
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	// Parsed values
	regex       *regexp.Regexp
	modeVal     model.SoundMode
	elapsedVal  int64
	timestampOp time.Time
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering transitions.
type FilterOptions struct {
	Since  time.Duration    // Only transitions newer than now-since (0=all)
	To     *model.SoundMode // Only transitions into this mode (nil=any)
	Source string           // Exact match on source
	Limit  int              // Maximum results (0=unlimited)
	Now    time.Time        // Reference time for Since. Zero means time.Now().
}

// Filter filters transitions based on the provided options, keeping order.
func Filter(transitions []model.Transition, opts FilterOptions) []model.Transition {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-opts.Since)
	result := make([]model.Transition, 0, len(transitions))

	for _, t := range transitions {
		if opts.Since > 0 && t.Time().Before(cutoff) {
			continue
		}
		if opts.To != nil && t.To != *opts.To {
			continue
		}
		if opts.Source != "" && t.Source != opts.Source {
			continue
		}
		result = append(result, t)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
//
// Supported fields: from, to, source, elapsed (milliseconds), timestamp
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), >, <, >=, <=
//
// Examples:
//   - "to=silent" - transitions into silent
//   - "source=watch" - recorded by the daemon
//   - "elapsed<100" - probes shorter than 100ms
//   - "to=ring,timestamp>1d" - back to ring within the last day
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	if expr == "" {
		return filter, nil
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "to=ring".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}
			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}
			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init pre-parses and validates the condition value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "from", "to", "mode":
		if c.Field == "mode" {
			c.Field = "to"
		}
		if c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual {
			mode, err := model.ParseSoundMode(c.Value)
			if err != nil {
				return err
			}
			c.modeVal = mode
		}
	case "source", "src":
		c.Field = "source"
	case "elapsed", "ms":
		c.Field = "elapsed"
		ms, err := strconv.ParseInt(strings.TrimSuffix(c.Value, "ms"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid elapsed value: %s", c.Value)
		}
		c.elapsedVal = ms
	case "timestamp", "time", "ts":
		c.Field = "timestamp"
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		c.timestampOp = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

// Match tests if a transition matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(t model.Transition) bool {
	for i := range f.Conditions {
		if !f.Conditions[i].Match(t) {
			return false
		}
	}
	return true
}

// Match tests if a transition matches this single condition.
func (c *FilterCondition) Match(t model.Transition) bool {
	switch c.Field {
	case "from":
		return c.matchMode(t.From)
	case "to":
		return c.matchMode(t.To)
	case "source":
		return c.matchString(t.Source)
	case "elapsed":
		return c.matchInt(t.ElapsedMs, c.elapsedVal)
	case "timestamp":
		return c.matchTimestamp(t.Time())
	default:
		return false
	}
}

// matchMode compares modes by value, or by name for ~ and ~=.
func (c *FilterCondition) matchMode(mode model.SoundMode) bool {
	switch c.Operator {
	case FilterOpEqual:
		return mode == c.modeVal
	case FilterOpNotEqual:
		return mode != c.modeVal
	default:
		return c.matchString(mode.String())
	}
}

// matchString matches a string field.
func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

// matchInt matches an integer field with numeric comparison.
func (c *FilterCondition) matchInt(fieldValue, condValue int64) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == condValue
	case FilterOpNotEqual:
		return fieldValue != condValue
	case FilterOpGreater:
		return fieldValue > condValue
	case FilterOpLess:
		return fieldValue < condValue
	case FilterOpGreaterEq:
		return fieldValue >= condValue
	case FilterOpLessEq:
		return fieldValue <= condValue
	default:
		return false
	}
}

// matchTimestamp matches a timestamp field. "timestamp>1h" means newer than an hour ago.
func (c *FilterCondition) matchTimestamp(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.timestampOp)
	case FilterOpLess:
		return fieldValue.Before(c.timestampOp)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.timestampOp)
	case FilterOpLessEq:
		return !fieldValue.After(c.timestampOp)
	default:
		return false
	}
}

// FilterWithExpr filters transitions using a filter expression.
func FilterWithExpr(transitions []model.Transition, expr *FilterExpr) []model.Transition {
	if expr == nil || len(expr.Conditions) == 0 {
		return transitions
	}

	result := make([]model.Transition, 0, len(transitions))
	for _, t := range transitions {
		if expr.Match(t) {
			result = append(result, t)
		}
	}
	return result
}
