package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/tui"
)

var tuiOpts struct {
	nullOutput bool
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive sound mode view",
	Long: `Launch the interactive terminal view.

The view shows the current sound mode, the last probe and the transition
history. When 'soundmode watch' is running the view drives it over D-Bus.
Otherwise it probes on its own without recording history or shared state,
and observation starts stopped; toggle it with space.

Key bindings:
  space, o    Begin/end observing
  u, p        Probe now
  d           Toggle Do Not Disturb
  r           Reload history
  C           Copy history as JSON
  alt+c       Copy history as YAML
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().BoolVar(&tuiOpts.nullOutput, "null-output", false,
		"Drain probes without an audio device")
}

func runTUI(cmd *cobra.Command, args []string) error {
	var output audio.Output
	if tuiOpts.nullOutput {
		output = &audio.PacedOutput{}
	}

	// Log lines would tear the alternate screen; only errors get through
	// unless --verbose is set.
	tuiLogger := logger
	if !globalOpts.verbose {
		tuiLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}

	return tui.Run(tui.RunOptions{
		Config:     getConfig(),
		ConfigPath: globalOpts.configPath,
		Output:     output,
		Logger:     tuiLogger,
	})
}
