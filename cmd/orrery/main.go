// Command orrery runs a planetary resource simulation: a handful of
// worlds extracting finite reserves, trading across orbital distance,
// and living or dying by their quality of life.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "orrery",
		Short: "Planetary resource simulation with inter-world trade",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(advanceCmd())
	rootCmd.AddCommand(genCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
		port       int
		speed      float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live simulation and serve the HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(configPath, dbPath, port, speed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "orrery.yaml", "system configuration file")
	cmd.Flags().StringVar(&dbPath, "db", "data/orrery.db", "sqlite database path")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP API port")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "simulated days per second")
	return cmd
}

func advanceCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance the saved system offline and print a report",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAdvance(configPath, dbPath, days)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "orrery.yaml", "system configuration file")
	cmd.Flags().StringVar(&dbPath, "db", "data/orrery.db", "sqlite database path")
	cmd.Flags().IntVarP(&days, "days", "d", 30, "days to simulate")
	return cmd
}

func genCmd() *cobra.Command {
	var (
		outPath string
		name    string
		planets int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random system configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runGen(outPath, name, planets, seed)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "orrery.yaml", "output configuration file")
	cmd.Flags().StringVar(&name, "name", "untitled", "system name")
	cmd.Flags().IntVarP(&planets, "planets", "n", 8, "number of worlds")
	cmd.Flags().Int64Var(&seed, "seed", 0, "generation seed (0 picks a random one)")
	return cmd
}
