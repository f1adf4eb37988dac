package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundmode/internal/audio"
	"github.com/jmylchreest/soundmode/internal/config"
	"github.com/jmylchreest/soundmode/internal/model"
	"github.com/jmylchreest/soundmode/internal/probe"
	"github.com/jmylchreest/soundmode/internal/soundmode"
	"github.com/jmylchreest/soundmode/internal/store"
)

// Exit codes shared by probe and status.
const (
	exitRing         = 0
	exitSilent       = 1
	exitUndetermined = 2
	exitError        = 3
)

var probeOpts struct {
	nullOutput bool
	timeout    time.Duration
	quiet      bool
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the sound mode once",
	Long: `Play the probe sound once and print the inferred sound mode.

Exit codes:
  0  ring
  1  silent
  2  not determined (the probe timed out)
  3  error

--null-output drains the probe clip in real time without opening the audio
device. It is meant for testing; the result is always ring unless Do Not
Disturb is on.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVar(&probeOpts.nullOutput, "null-output", false,
		"Drain the probe without an audio device")
	probeCmd.Flags().DurationVar(&probeOpts.timeout, "timeout", 5*time.Second,
		"Give up on a probe that never completes (0 waits forever)")
	probeCmd.Flags().BoolVarP(&probeOpts.quiet, "quiet", "q", false,
		"Suppress output, return exit code only")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg := getConfig()

	var output audio.Output
	if probeOpts.nullOutput {
		output = &audio.PacedOutput{}
	}

	gate := store.NewDnDGate(config.StatePath(), logger)
	am := audio.NewManager(cfg, gate.Suppressed, output, logger)

	manager, err := soundmode.New(am.Player(), soundmode.Options{
		Asset:   am.Sound(),
		Timeout: probeOpts.timeout,
		Logger:  logger,
	})
	if err != nil {
		am.Stop()
		return fmt.Errorf("failed to prepare probe sound: %w", err)
	}

	result := make(chan model.SoundMode, 1)
	manager.UpdateCurrentMode(func(mode model.SoundMode) {
		result <- mode
	})
	mode := <-result
	last := manager.LastProbe()

	if err := manager.Close(); err != nil {
		logger.Warn("failed to release probe sound", "error", err)
	}
	am.Stop()

	code := probeExitCode(last, mode)
	switch {
	case code == exitError:
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), last.Err)
	case !probeOpts.quiet:
		fmt.Printf("%s %s\n", colorMode(mode), color.New(color.FgHiBlack).Sprintf("(%s)", last.Elapsed.Round(time.Millisecond)))
	}

	os.Exit(code)
	return nil
}

// colorMode renders a mode name for the terminal.
func colorMode(mode model.SoundMode) string {
	switch mode {
	case model.ModeRing:
		return color.New(color.FgGreen, color.Bold).Sprint(mode)
	case model.ModeSilent:
		return color.New(color.FgYellow, color.Bold).Sprint(mode)
	default:
		return color.New(color.FgRed).Sprint(mode)
	}
}

// probeExitCode maps a finished probe to the exit code. A probe that could
// not be played is an error; one that timed out is not determined.
func probeExitCode(last probe.Result, mode model.SoundMode) int {
	if last.Err != nil && !errors.Is(last.Err, probe.ErrProbeTimeout) {
		return exitError
	}
	return exitCode(mode)
}

// exitCode maps a mode to the probe exit code.
func exitCode(mode model.SoundMode) int {
	switch mode {
	case model.ModeRing:
		return exitRing
	case model.ModeSilent:
		return exitSilent
	default:
		return exitUndetermined
	}
}
