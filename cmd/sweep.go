package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// SweepResult is the outcome of one seed.
type SweepResult struct {
	Seed   int64
	Status string // ok, error or canceled
	Detail string // simerr.Kind of the failure
	KPI    sim.KPISnapshot
}

// Sweep runs one session per seed, at most parallel at a time, and returns
// results in seed order regardless of completion order. A failing seed does
// not stop the others.
func Sweep(ctx context.Context, base sim.GameSettings, seeds []int64, parallel int, dt int64) ([]SweepResult, error) {
	if parallel < 1 {
		parallel = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	results := make([]SweepResult, len(seeds))
	for i, seed := range seeds {
		g.Go(func() error {
			settings := base.Clone()
			settings.Seed = strconv.FormatInt(seed, 10)
			res := SweepResult{Seed: seed, Status: "ok"}

			state, err := runToCompletion(ctx, settings, dt)
			switch {
			case err == nil:
				res.KPI = state.KPI
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				res.Status = "canceled"
				results[i] = res
				return err
			default:
				res.Status = "error"
				res.Detail = simerr.Kind(err)
				logrus.Warnf("Sweep seed %d failed: %v", seed, err)
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// printSweep writes one line per seed followed by the mean on-time rate.
func printSweep(w io.Writer, results []SweepResult) {
	fmt.Fprintf(w, "%-8s %-8s %9s %8s %10s %8s\n", "seed", "status", "completed", "on-time%", "lead(min)", "score")
	var rateSum float64
	var ok int
	for _, r := range results {
		if r.Status != "ok" {
			fmt.Fprintf(w, "%-8d %-8s %s\n", r.Seed, r.Status, r.Detail)
			continue
		}
		ok++
		rateSum += r.KPI.OnTimeRate
		fmt.Fprintf(w, "%-8d %-8s %9d %8.1f %10.1f %8.0f\n", r.Seed, r.Status, r.KPI.Completed, r.KPI.OnTimeRate,
			r.KPI.AverageLeadTime/float64(sim.Minute), r.KPI.Score)
	}
	if ok > 0 {
		fmt.Fprintf(w, "mean on-time rate over %d seeds: %.1f%%\n", ok, rateSum/float64(ok))
	}
}

var (
	sweepSeeds    []int64
	sweepParallel int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the same scenario under several seeds concurrently",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		settings, err := scenarioSource{configPath, presetName, schedulePath}.load("")
		if err != nil {
			logrus.Fatalf("Failed to load settings: %v", err)
		}
		applyFlagOverrides(cmd, &settings)
		if err := settings.Validate(); err != nil {
			logrus.Fatalf("Invalid settings: %v", err)
		}

		results, err := Sweep(cmd.Context(), settings, sweepSeeds, sweepParallel, tickSeconds)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		printSweep(os.Stdout, results)
	},
}

func init() {
	sweepCmd.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
	sweepCmd.Flags().StringVar(&presetName, "preset", "", "Built-in scenario preset (steady, rush-hour, breakdowns)")
	sweepCmd.Flags().StringVar(&schedulePath, "schedule", "", "Predetermined schedule YAML file (switches to predetermined mode)")
	sweepCmd.Flags().Int64SliceVar(&sweepSeeds, "seeds", []int64{1, 2, 3}, "Comma-separated seeds")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 4, "Maximum sessions run at once")
	sweepCmd.Flags().IntVar(&duration, "duration", 30, "Session length in minutes (15, 30, 60)")
	sweepCmd.Flags().IntVar(&speed, "speed", 1, "Speed multiplier (1, 2, 4, 8)")
	sweepCmd.Flags().Int64Var(&tickSeconds, "tick-seconds", 60, "Simulated seconds per tick call")
	sweepCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(sweepCmd)
}
