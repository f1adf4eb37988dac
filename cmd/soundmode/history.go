package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/adapter/output"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/core"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/store"
)

var historyOpts struct {
	format   string
	template string
	limit    int
	since    string
	filter   string
	sort     string
	order    string
	clear    bool
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded sound mode transitions",
	Long: `List the sound mode transitions recorded by 'soundmode watch'
and 'soundmode tui', newest first.

Output formats:
  plain  One line per transition (default)
  json   JSON array
  yaml   YAML sequence
  ids    Transition IDs only

Template variables for plain output (--template):
  {{.Index}}                  1-based position
  {{.Transition.From}}        Previous mode
  {{.Transition.To}}          New mode
  {{.Transition.ElapsedMs}}   Probe duration in milliseconds
  {{.Transition.Source}}      What recorded the transition
  {{.RelativeTime}}           Relative time, e.g. "5 minutes ago"

Template functions: reltime, modeIcon, ms.

Filter expressions (--filter) are comma-separated conditions, all of which
must match. Fields: from, to, source, elapsed (ms), timestamp.
Operators: = != ~ ~= > < >= <=

With an ID (or a unique ID prefix) a single transition is printed as JSON.

Examples:
  soundmode history --limit 5
  soundmode history --since 1d --format json
  soundmode history --filter 'to=silent,elapsed<50'
  soundmode history --sort elapsed --order asc
  soundmode history 01HZX3
  soundmode history --template '{{modeIcon .Transition.To}} {{.RelativeTime}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", string(output.FormatPlain),
		"Output format: plain, json, yaml, ids")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Go template for plain output")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of transitions (0 = all)")
	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only show transitions newer than this duration (e.g. 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.filter, "filter", "",
		"Filter expression (e.g. 'to=silent,source=watch')")
	historyCmd.Flags().StringVar(&historyOpts.sort, "sort", string(core.SortByTimestamp),
		"Sort field: timestamp, elapsed, source")
	historyCmd.Flags().StringVar(&historyOpts.order, "order", string(core.SortDesc),
		"Sort order: asc, desc")
	historyCmd.Flags().BoolVar(&historyOpts.clear, "clear", false,
		"Delete the recorded history")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format := output.FormatType(historyOpts.format)
	if !slices.Contains(output.FormatTypes(), format) {
		return fmt.Errorf("invalid format %q (valid: %v)", historyOpts.format, output.FormatTypes())
	}

	since, err := core.ParseDuration(historyOpts.since)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	expr, err := core.ParseFilter(historyOpts.filter)
	if err != nil {
		return fmt.Errorf("invalid --filter: %w", err)
	}

	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	persistence, err := store.NewJSONLPersistence(config.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	history := store.NewHistory(persistence, getConfig().History.MaxEntries)
	defer func() {
		if err := history.Close(); err != nil {
			logger.Warn("failed to close history", "error", err)
		}
	}()

	if err := history.Hydrate(); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if historyOpts.clear {
		count := history.Count()
		if err := history.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d transitions\n", count)
		return nil
	}

	if len(args) == 1 {
		t := core.LookupByID(history.All(), args[0])
		if t == nil {
			return fmt.Errorf("no transition matches %q", args[0])
		}
		return output.NewJSONFormatter(output.DefaultFormatterOptions()).FormatSingle(os.Stdout, t)
	}

	transitions := selectTransitions(history.All(), expr, since, time.Now())

	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	return output.NewFormatter(format, opts).Format(os.Stdout, transitions)
}

// selectTransitions applies the --since, --filter, --sort and --limit flags.
func selectTransitions(transitions []model.Transition, expr *core.FilterExpr, since time.Duration, now time.Time) []model.Transition {
	transitions = core.FilterWithExpr(transitions, expr)
	transitions = core.Filter(transitions, core.FilterOptions{Since: since, Now: now})
	core.Sort(transitions, core.SortOptions{
		Field: core.ParseSortField(historyOpts.sort),
		Order: core.ParseSortOrder(historyOpts.order),
	})
	if historyOpts.limit > 0 && len(transitions) > historyOpts.limit {
		transitions = transitions[:historyOpts.limit]
	}
	return transitions
}
