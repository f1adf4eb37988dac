package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/daemon"
)

var watchOpts struct {
	nullOutput bool
	idle       bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Observe the sound mode continuously",
	Long: `Run the sound mode daemon.

The daemon probes once on start and then every [probe] interval. It records
transitions to the history, keeps state.json current for 'soundmode status',
and exports the mode on the session bus as io.github.jmylchreest.SoundMode1.

Observation pauses while the system sleeps ([lifecycle] source = "logind")
or between SIGUSR1 and SIGUSR2 ([lifecycle] source = "signals").

Changes to the config file are picked up without a restart where possible.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchOpts.nullOutput, "null-output", false,
		"Drain probes without an audio device")
	watchCmd.Flags().BoolVar(&watchOpts.idle, "idle", false,
		"Probe once on start, then wait for BeginObserving over D-Bus")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var output audio.Output
	if watchOpts.nullOutput {
		output = &audio.PacedOutput{}
	}

	d, err := daemon.New(daemon.Options{
		Config:     getConfig(),
		ConfigPath: globalOpts.configPath,
		Output:     output,
		Idle:       watchOpts.idle,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting soundmode watch", "version", version)
	return d.Run(ctx)
}
