package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/store"
)

var dndOpts struct {
	quiet bool // Suppress output, return exit code only
}

// dndCmd represents the dnd command group.
var dndCmd = &cobra.Command{
	Use:   "dnd",
	Short: "Manage Do Not Disturb mode",
	Long: `Manage Do Not Disturb (DnD) mode.

When DnD is enabled, probes are suppressed: playback completes immediately
and the sound mode reads silent. A running 'soundmode watch' picks up the
change within one probe interval.

Use 'soundmode dnd status' to check the current state.
Use 'soundmode dnd on' to enable DnD mode.
Use 'soundmode dnd off' to disable DnD mode.
Use 'soundmode dnd toggle' to toggle DnD mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to showing status
		return dndStatusRun(cmd, args)
	},
}

// dndOnCmd enables DnD mode.
var dndOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable Do Not Disturb mode",
	Long:  `Enable Do Not Disturb mode. Probes will be suppressed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dndSet(func(s *store.SharedState) bool {
			s.SetDnD(true, store.DnDTriggerUser, "dnd on", "cli")
			return true
		})
	},
}

// dndOffCmd disables DnD mode.
var dndOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable Do Not Disturb mode",
	Long:  `Disable Do Not Disturb mode. Probes will play again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dndSet(func(s *store.SharedState) bool {
			s.SetDnD(false, store.DnDTriggerUser, "dnd off", "cli")
			return false
		})
	},
}

// dndToggleCmd toggles DnD mode.
var dndToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle Do Not Disturb mode",
	Long:  `Toggle Do Not Disturb mode between enabled and disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dndSet(func(s *store.SharedState) bool {
			return s.ToggleDnD(store.DnDTriggerUser, "dnd toggle", "cli")
		})
	},
}

// dndStatusCmd shows DnD status.
var dndStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Do Not Disturb status",
	Long:  `Show whether Do Not Disturb mode is currently enabled or disabled.`,
	RunE:  dndStatusRun,
}

func init() {
	// Add subcommands
	dndCmd.AddCommand(dndOnCmd)
	dndCmd.AddCommand(dndOffCmd)
	dndCmd.AddCommand(dndToggleCmd)
	dndCmd.AddCommand(dndStatusCmd)

	// Add flags to all subcommands
	for _, cmd := range []*cobra.Command{dndCmd, dndOnCmd, dndOffCmd, dndToggleCmd, dndStatusCmd} {
		cmd.Flags().BoolVarP(&dndOpts.quiet, "quiet", "q", false,
			"Suppress output, return exit code only (0=off, 1=on)")
	}

	// Add to root
	rootCmd.AddCommand(dndCmd)
}

// dndSet applies fn to the shared state and reports the new flag.
func dndSet(fn func(*store.SharedState) bool) error {
	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var enabled bool
	if _, err := store.UpdateSharedState(config.StatePath(), func(s *store.SharedState) {
		enabled = fn(s)
	}); err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to save state: %v\n", err)
		}
		return err
	}

	if !dndOpts.quiet {
		fmt.Println(dndLine(enabled))
	}

	// Exit code: 0=off, 1=on
	if enabled {
		os.Exit(1)
	}
	return nil
}

func dndStatusRun(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState(config.StatePath())
	if err != nil {
		if !dndOpts.quiet {
			fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		}
		return err
	}

	if !dndOpts.quiet {
		fmt.Println(dndLine(state.DnDEnabled))

		// Show transition info if available
		if t := state.DnDLastTransition; t != nil {
			fmt.Printf("  Last change: %s\n", formatTransitionTime(t.Timestamp))
			fmt.Printf("  Trigger: %s\n", t.Trigger)
			if t.Reason != "" {
				fmt.Printf("  Reason: %s\n", t.Reason)
			}
			if t.Source != "" {
				fmt.Printf("  Source: %s\n", t.Source)
			}
		}
	}

	// Exit code: 0=off, 1=on
	if state.DnDEnabled {
		os.Exit(1)
	}
	return nil
}

func dndLine(enabled bool) string {
	if enabled {
		return "Do Not Disturb: enabled"
	}
	return "Do Not Disturb: disabled"
}

// formatTransitionTime formats a unix timestamp as a human-readable relative time.
func formatTransitionTime(timestamp int64) string {
	return humanize.Time(time.Unix(timestamp, 0))
}
