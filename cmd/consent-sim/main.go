// Command consent-sim drives a consent session headlessly: participant A
// walks toward B while a script fires consent actions at fixed times.
package main

import (
	"os"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"

	"github.com/spf13/cobra"
)

var (
	maxRange   float64
	timeout    time.Duration
	jsonOutput bool

	startDistance float64
	speed         float64
	stopDistance  float64
	step          time.Duration
	duration      time.Duration
	script        string
	stationary    bool
)

var rootCmd = &cobra.Command{
	Use:           "consent-sim",
	Short:         "Simulate a two-party consent session with a moving participant",
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		actions, err := parseScript(script)
		if err != nil {
			return err
		}
		sim, err := newSimulation(simConfig{
			Consent:       consent.Config{MaxRangeMeters: maxRange, RequestTimeout: timeout},
			StartDistance: startDistance,
			Speed:         speed,
			StopDistance:  stopDistance,
			Step:          step,
			Duration:      duration,
			Moving:        !stationary,
			Actions:       actions,
		})
		if err != nil {
			return err
		}
		return sim.Run(newHUD(cmd.OutOrStdout(), jsonOutput))
	},
}

func init() {
	defaults := consent.DefaultConfig()
	rootCmd.PersistentFlags().Float64Var(&maxRange, "max-range", defaults.MaxRangeMeters, "maximum interaction distance in meters")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaults.RequestTimeout, "consent request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON lines")

	rootCmd.Flags().Float64Var(&startDistance, "start-distance", 4, "initial distance between A and B in meters")
	rootCmd.Flags().Float64Var(&speed, "speed", 0.5, "mover speed in meters per second")
	rootCmd.Flags().Float64Var(&stopDistance, "stop-distance", 0.5, "distance at which the mover stops")
	rootCmd.Flags().DurationVar(&step, "step", 100*time.Millisecond, "simulation step")
	rootCmd.Flags().DurationVar(&duration, "duration", 12*time.Second, "simulated time to run")
	rootCmd.Flags().StringVar(&script, "script", defaultScript, "comma-separated actions, each seconds:action[:participant]")
	rootCmd.Flags().BoolVar(&stationary, "stationary", false, "start with the mover stopped")

	rootCmd.AddCommand(scenarioCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
