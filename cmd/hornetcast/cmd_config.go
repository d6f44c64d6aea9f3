package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hornetcast configuration",
		Long: `View and modify hornetcast configuration settings.

Configuration is stored in ~/.hornetcast/config.yaml, or the file named
by --config.

Examples:
  hornetcast config list                               # Show all settings
  hornetcast config get simulation.horizon_year        # Get a specific setting
  hornetcast config set simulation.horizon_year 2040   # Set a setting
  hornetcast config set bees.decline_scale 2.5`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadPath(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, cfg)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration (%s):\n", valueOrDefault(path, "~/.hornetcast/config.yaml"))
			section := ""
			for _, key := range configKeys {
				if s, _, _ := strings.Cut(key, "."); s != section {
					section = s
					fmt.Fprintf(w, "\n%s:\n", section)
				}
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(w, "  %-36s %v\n", key+":", valueOrDefault(fmt.Sprint(value), "(not set)"))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			key := args[0]

			cfg, err := config.LoadPath(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOutput(cmd) {
					if err := printJSON(cmd, map[string]interface{}{"error": "key not found", "key": key}); err != nil {
						return err
					}
				}
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{"key": key, "value": value})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// configKeys lists every settable key in display order.
var configKeys = []string{
	"simulation.horizon_year",
	"simulation.seed_year",
	"simulation.seed_hives",
	"simulation.workers",
	"simulation.tie_break",
	"simulation.adjacency",
	"simulation.directed",
	"bees.decline_scale",
	"bees.default_correlation",
	"bees.cap_fraction",
	"bees.min_correlation_points",
	"predation.enabled",
	"predation.max_score",
	"output.dir",
	"output.format",
	"output.database",
	"logging.level",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.HornetConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.horizon_year":
		return cfg.Simulation.HorizonYear, true
	case "simulation.seed_year":
		return cfg.Simulation.SeedYear, true
	case "simulation.seed_hives":
		return cfg.Simulation.SeedHives, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.tie_break":
		return cfg.Simulation.TieBreak, true
	case "simulation.adjacency":
		return cfg.Simulation.Adjacency, true
	case "simulation.directed":
		return cfg.Simulation.Directed, true
	case "bees.decline_scale":
		return cfg.Bees.DeclineScale, true
	case "bees.default_correlation":
		return cfg.Bees.DefaultCorrelation, true
	case "bees.cap_fraction":
		return cfg.Bees.CapFraction, true
	case "bees.min_correlation_points":
		return cfg.Bees.MinCorrelationPoints, true
	case "predation.enabled":
		return cfg.Predation.Enabled, true
	case "predation.max_score":
		return cfg.Predation.MaxScore, true
	case "output.dir":
		return cfg.Output.Dir, true
	case "output.format":
		return cfg.Output.Format, true
	case "output.database":
		return cfg.Output.Database, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.HornetConfig, key, value string) error {
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
		}
		return n, nil
	}
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s (must be a number)", key, value)
		}
		return f, nil
	}
	parseBool := func() bool {
		return value == "true" || value == "1"
	}

	var err error
	switch key {
	case "simulation.horizon_year":
		cfg.Simulation.HorizonYear, err = parseInt()
	case "simulation.seed_year":
		cfg.Simulation.SeedYear, err = parseInt()
	case "simulation.seed_hives":
		cfg.Simulation.SeedHives, err = parseFloat()
	case "simulation.workers":
		cfg.Simulation.Workers, err = parseInt()
	case "simulation.tie_break":
		cfg.Simulation.TieBreak = value
	case "simulation.adjacency":
		cfg.Simulation.Adjacency = value
	case "simulation.directed":
		cfg.Simulation.Directed = parseBool()
	case "bees.decline_scale":
		cfg.Bees.DeclineScale, err = parseFloat()
	case "bees.default_correlation":
		cfg.Bees.DefaultCorrelation, err = parseFloat()
	case "bees.cap_fraction":
		cfg.Bees.CapFraction, err = parseFloat()
	case "bees.min_correlation_points":
		cfg.Bees.MinCorrelationPoints, err = parseInt()
	case "predation.enabled":
		cfg.Predation.Enabled = parseBool()
	case "predation.max_score":
		cfg.Predation.MaxScore, err = parseFloat()
	case "output.dir":
		cfg.Output.Dir = value
	case "output.format":
		cfg.Output.Format = value
	case "output.database":
		cfg.Output.Database = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
