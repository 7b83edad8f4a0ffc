package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/session"
)

var (
	// CLI flags for the run command
	configPath   string // Scenario YAML file
	presetName   string // Built-in scenario preset
	schedulePath string // Predetermined schedule YAML file
	seed         string // Generator seed
	duration     int    // Session length in minutes (15, 30, 60)
	speed        int    // Speed multiplier (1, 2, 4, 8)
	tickSeconds  int64  // Simulated seconds handed to each Tick call
	outPath      string // Where to write the final GameState JSON
	logLevel     string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "orderflow-sim",
	Short: "Discrete-event simulator for shop-floor order flow",
}

// runCmd runs one session to completion using settings from a scenario file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a shop-floor session to completion",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		settings, err := scenarioSource{configPath, presetName, schedulePath}.load(seed)
		if err != nil {
			logrus.Fatalf("Failed to load settings: %v", err)
		}
		applyFlagOverrides(cmd, &settings)

		logrus.Infof("Starting session: %d min, rate %.1f/h, complexity %s, seed %q, speed %dx",
			settings.SessionMinutes, settings.OrderGenerationRate, settings.ComplexityLevel, settings.Seed, settings.SpeedMultiplier)
		startTime := time.Now()

		state, err := runToCompletion(cmd.Context(), settings, tickSeconds)
		if err != nil {
			logrus.Fatalf("Session failed: %v", err)
		}
		state.KPI.Print(os.Stdout)
		printForecast(os.Stdout, state)

		if outPath != "" {
			if err := writeState(outPath, state); err != nil {
				logrus.Fatalf("Failed to write state: %v", err)
			}
			logrus.Infof("State written to %s", outPath)
		}
		logrus.Infof("Session complete in %v wall time.", time.Since(startTime))
	},
}

// setLogLevel applies a logrus level name, exiting on an unknown one.
func setLogLevel(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", name)
	}
	logrus.SetLevel(level)
}

// applyFlagOverrides copies explicitly set flags over the loaded settings.
func applyFlagOverrides(cmd *cobra.Command, settings *sim.GameSettings) {
	if cmd.Flags().Changed("seed") {
		settings.Seed = seed
	}
	if cmd.Flags().Changed("duration") {
		settings.SessionMinutes = duration
	}
	if cmd.Flags().Changed("speed") {
		settings.SpeedMultiplier = speed
	}
}

// runToCompletion starts a session and ticks it until it completes or ctx ends.
func runToCompletion(ctx context.Context, settings sim.GameSettings, dt int64) (*sim.GameState, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("tick size must be positive, got %d", dt)
	}
	s, err := session.New(settings)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	for s.Snapshot().Status != sim.SessionCompleted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Tick(dt); err != nil {
			return nil, err
		}
	}
	return s.Snapshot(), nil
}

// printForecast writes the per-order delivery forecast and the bottleneck.
func printForecast(w io.Writer, state *sim.GameState) {
	f := state.Forecast
	if f.BottleneckID == "" {
		fmt.Fprintln(w, "Bottleneck           : none")
	} else {
		fmt.Fprintf(w, "Bottleneck           : %s\n", f.BottleneckID)
	}
	for _, o := range state.Active {
		if t, ok := f.ExpectedDelivery[o.ID]; ok {
			fmt.Fprintf(w, "  %-10s expected at %.1f min\n", o.ID, float64(t)/float64(sim.Minute))
		}
	}
}

// writeState writes state as indented JSON.
func writeState(path string, state *sim.GameState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Built-in scenario preset (steady, rush-hour, breakdowns)")
	runCmd.Flags().StringVar(&schedulePath, "schedule", "", "Predetermined schedule YAML file (switches to predetermined mode)")
	runCmd.Flags().StringVar(&seed, "seed", "42", "Seed for procedural order generation")
	runCmd.Flags().IntVar(&duration, "duration", 30, "Session length in minutes (15, 30, 60)")
	runCmd.Flags().IntVar(&speed, "speed", 1, "Speed multiplier (1, 2, 4, 8)")
	runCmd.Flags().Int64Var(&tickSeconds, "tick-seconds", 60, "Simulated seconds per tick call")
	runCmd.Flags().StringVar(&outPath, "out", "", "Write the final state JSON to this file")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
}
