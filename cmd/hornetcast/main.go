package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/observability"
	"github.com/nvandessel/hornetcast/internal/store"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hornetcast",
		Short: "Asian hornet invasion and honeybee decline forecasting",
		Long: `hornetcast simulates the country-level spread of Vespa velutina across
Europe and forecasts the resulting decline of honeybee colonies.

It classifies historical hive densities into invasion stages, grows each
invaded country year by year, seeds neighbors once a country saturates,
and converts the hornet density series into a bee density forecast.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.hornetcast/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(
		newVersionCmd(),
		newClassifyCmd(),
		newSpreadCmd(),
		newBeesCmd(),
		newRunCmd(),
		newAnalyzeCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newExportCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadSettings loads the configuration named by --config, applies
// --log-level and validates the result.
func loadSettings(cmd *cobra.Command) (*config.HornetConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the operational logger. Logs go to stderr so stdout
// stays clean for tables and JSON.
func newLogger(cmd *cobra.Command, cfg *config.HornetConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// adjacencyOptions maps the configuration onto graph construction options.
func adjacencyOptions(cfg *config.HornetConfig) adjacency.Options {
	return adjacency.Options{Directed: cfg.Simulation.Directed}
}

// newCollector returns a metrics collector on a private registry when
// --metrics-file is set, nil otherwise.
func newCollector(cmd *cobra.Command) (*observability.SimulationCollector, error) {
	path, _ := cmd.Flags().GetString("metrics-file")
	if path == "" {
		return nil, nil
	}
	return observability.NewSimulationCollector(prometheus.NewRegistry())
}

// flushMetrics writes the collector to --metrics-file.
func flushMetrics(cmd *cobra.Command, c *observability.SimulationCollector) error {
	path, _ := cmd.Flags().GetString("metrics-file")
	if path == "" || c == nil {
		return nil
	}
	return c.WriteTextfile(path)
}

// resolveDBPath returns --db, else output.database, else the default
// store location.
func resolveDBPath(cmd *cobra.Command, cfg *config.HornetConfig) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, nil
	}
	if cfg.Output.Database != "" {
		return cfg.Output.Database, nil
	}
	return store.DefaultDBPath()
}

// saveDBPath returns the store a forecast command should save into, or ""
// when neither --db nor output.database is set.
func saveDBPath(cmd *cobra.Command, cfg *config.HornetConfig) string {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p
	}
	return cfg.Output.Database
}

// signalContext returns a context cancelled by the first shutdown signal, so
// a long forecast stops between years.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	if err := newIndentEncoder(cmd.OutOrStdout()).Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func newIndentEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
