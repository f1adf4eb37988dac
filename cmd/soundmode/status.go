package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/adapter/output"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/dbus"
	"github.com/jmylchreest/soundmode/internal/store"
)

// formatWaybar is the status-only Waybar output.
const formatWaybar = "waybar"

var statusOpts struct {
	format string
	follow bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current sound mode",
	Long: `Show the current sound mode.

The mode is read from a running 'soundmode watch' over D-Bus. When no daemon
is running the last mode recorded in state.json is shown and the Waybar
class includes "stale".

The default output is Waybar's custom module JSON format:

  "custom/soundmode": {
    "exec": "soundmode status --follow",
    "return-type": "json",
    "on-click": "soundmode dnd toggle"
  }

The output includes:
  - text: bell icon for ring, muted bell for silent
  - alt: the mode name
  - tooltip: mode, last change, observing and Do Not Disturb
  - class: the mode name, plus "dnd" and "stale" when they apply

With --follow a new line is written whenever the daemon reports a change.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "f", formatWaybar,
		"Output format: waybar, json, yaml, plain")
	statusCmd.Flags().BoolVar(&statusOpts.follow, "follow", false,
		"Keep running and print a line per mode change")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient(logger)
	if err != nil {
		logger.Debug("session bus unavailable, using state file", "error", err)
		client = nil
	} else if !client.Running() {
		client = nil
	}

	if err := printStatus(currentStatus(client)); err != nil {
		return err
	}
	if !statusOpts.follow {
		return nil
	}
	if client == nil {
		return fmt.Errorf("--follow needs a running 'soundmode watch'")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return client.WatchModeChanged(ctx, func(change dbus.ModeChange) {
		s := currentStatus(nil)
		s.Mode = change.Mode
		s.Live = true
		if err := printStatus(s); err != nil {
			logger.Warn("failed to write status", "error", err)
		}
	})
}

// currentStatus combines state.json with the daemon's live mode when a
// client is given.
func currentStatus(client *dbus.Client) output.Status {
	state, err := store.LoadSharedState(config.StatePath())
	if err != nil {
		logger.Warn("failed to read state", "error", err)
		state = store.DefaultSharedState()
	}
	s := output.StatusFromState(state)

	if client == nil {
		return s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	mode, err := client.Mode(ctx)
	if err != nil {
		logger.Warn("failed to query daemon, using state file", "error", err)
		return s
	}
	s.Mode = mode
	s.Live = true
	return s
}

func printStatus(s output.Status) error {
	if statusOpts.format == formatWaybar {
		return output.FormatWaybar(os.Stdout, s)
	}
	return output.FormatStatus(os.Stdout, output.FormatType(statusOpts.format), s)
}
