// Package config provides unified configuration loading for hornetcast.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/logging"
	"gopkg.in/yaml.v3"
)

// HornetConfig contains all hornetcast configuration settings.
type HornetConfig struct {
	// Simulation contains settings for the hornet spread simulator.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Bees contains settings for the bee decline forecaster.
	Bees BeesConfig `json:"bees" yaml:"bees"`

	// Predation contains settings for the predator adjustment.
	Predation PredationConfig `json:"predation" yaml:"predation"`

	// Output contains settings for written tables and the run store.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures the spread simulator.
type SimulationConfig struct {
	// HorizonYear is the last simulated year, inclusive.
	HorizonYear int `json:"horizon_year" yaml:"horizon_year"`

	// SeedYear selects the historical year used as the initial state.
	// Zero means the last year present in the history.
	SeedYear int `json:"seed_year,omitempty" yaml:"seed_year,omitempty"`

	// SeedHives is the hive count placed in a newly invaded country.
	SeedHives float64 `json:"seed_hives" yaml:"seed_hives"`

	// Workers is the number of goroutines evaluating countries per year.
	Workers int `json:"workers" yaml:"workers"`

	// TieBreak selects the reported invasion source: "density" or "name".
	TieBreak string `json:"tie_break" yaml:"tie_break"`

	// Adjacency is an optional YAML adjacency file replacing the built-in table.
	Adjacency string `json:"adjacency,omitempty" yaml:"adjacency,omitempty"`

	// Directed keeps the adjacency table as given instead of symmetrising it.
	Directed bool `json:"directed" yaml:"directed"`
}

// BeesConfig configures the bee decline forecaster.
type BeesConfig struct {
	// DeclineScale (K) converts hornet density into the decline's units.
	DeclineScale float64 `json:"decline_scale" yaml:"decline_scale"`

	// DefaultCorrelation is used for countries without a coefficient.
	DefaultCorrelation float64 `json:"default_correlation" yaml:"default_correlation"`

	// CapFraction bounds a single year's decline as a fraction of density.
	CapFraction float64 `json:"cap_fraction" yaml:"cap_fraction"`

	// MinCorrelationPoints is the minimum number of joined country-years
	// before a per-country correlation is computed.
	MinCorrelationPoints int `json:"min_correlation_points" yaml:"min_correlation_points"`
}

// PredationConfig configures the predation adjustment.
type PredationConfig struct {
	// Enabled feeds predation-adjusted density into the bee forecaster.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxScore is the upper bound of the scaled predation score.
	MaxScore float64 `json:"max_score" yaml:"max_score"`
}

// OutputConfig configures where and how results are written.
type OutputConfig struct {
	// Dir is the directory receiving output tables. Supports ${VAR} syntax.
	Dir string `json:"dir" yaml:"dir"`

	// Format is the table format: "csv" or "arrow".
	Format string `json:"format" yaml:"format"`

	// Database is the SQLite run store path. Empty disables the store.
	// Supports ${VAR} syntax.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// LoggingConfig configures hornetcast's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", "trace",
	// "warn" or "error". "debug" and "trace" also write <output.dir>/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Output formats.
const (
	FormatCSV   = "csv"
	FormatArrow = "arrow"
)

// Default returns a HornetConfig with the calibrated defaults.
func Default() *HornetConfig {
	return &HornetConfig{
		Simulation: SimulationConfig{
			HorizonYear: constants.DefaultHorizonYear,
			SeedHives:   constants.DefaultSeedHives,
			Workers:     1,
			TieBreak:    "density",
		},
		Bees: BeesConfig{
			DeclineScale:         constants.DefaultDeclineScale,
			DefaultCorrelation:   constants.DefaultCorrelation,
			CapFraction:          constants.DeclineCapFraction,
			MinCorrelationPoints: constants.MinCorrelationPoints,
		},
		Predation: PredationConfig{
			Enabled:  false,
			MaxScore: constants.MaxPredationScore,
		},
		Output: OutputConfig{
			Dir:    "output",
			Format: FormatCSV,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.hornetcast/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hornetcast", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.hornetcast/config.yaml -> environment variables
func Load() (*HornetConfig, error) {
	return LoadPath("")
}

// LoadPath is Load with an explicit config file. An empty path falls back to
// ~/.hornetcast/config.yaml when it exists; an explicit path must exist.
func LoadPath(path string) (*HornetConfig, error) {
	config := Default()

	if path == "" {
		if def, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*HornetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Output.Dir = expandEnvVars(config.Output.Dir)
	config.Output.Database = expandEnvVars(config.Output.Database)
	config.Simulation.Adjacency = expandEnvVars(config.Simulation.Adjacency)

	return config, nil
}

// Save writes the configuration as YAML to path, creating parent directories.
func Save(config *HornetConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *HornetConfig) Validate() error {
	if c.Simulation.HorizonYear < 1900 {
		return fmt.Errorf("horizon_year must be 1900 or later, got %d", c.Simulation.HorizonYear)
	}

	if c.Simulation.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Simulation.Workers)
	}

	if c.Simulation.SeedHives <= 0 {
		return fmt.Errorf("seed_hives must be positive, got %g", c.Simulation.SeedHives)
	}

	validTieBreaks := map[string]bool{"": true, "density": true, "name": true}
	if !validTieBreaks[c.Simulation.TieBreak] {
		return fmt.Errorf("invalid tie_break: %s (valid: density, name)", c.Simulation.TieBreak)
	}

	if c.Bees.DeclineScale < 0 {
		return fmt.Errorf("decline_scale must be non-negative, got %g", c.Bees.DeclineScale)
	}

	if c.Bees.DefaultCorrelation < -1 || c.Bees.DefaultCorrelation > 1 {
		return fmt.Errorf("default_correlation must be between -1 and 1, got %g", c.Bees.DefaultCorrelation)
	}

	if c.Bees.CapFraction < 0 || c.Bees.CapFraction > 1 {
		return fmt.Errorf("cap_fraction must be between 0 and 1, got %g", c.Bees.CapFraction)
	}

	if c.Predation.MaxScore < 0 || c.Predation.MaxScore > 1 {
		return fmt.Errorf("predation max_score must be between 0 and 1, got %g", c.Predation.MaxScore)
	}

	validFormats := map[string]bool{FormatCSV: true, FormatArrow: true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("invalid output format: %s (valid: csv, arrow)", c.Output.Format)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %s, or empty for default)",
			c.Logging.Level, strings.Join(logging.Levels, ", "))
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *HornetConfig) {
	if v := os.Getenv("HORNETCAST_HORIZON"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.HorizonYear = n
		}
	}

	if v := os.Getenv("HORNETCAST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}

	if v := os.Getenv("HORNETCAST_DECLINE_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Bees.DeclineScale = f
		}
	}

	if v := os.Getenv("HORNETCAST_DEFAULT_CORRELATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Bees.DefaultCorrelation = f
		}
	}

	if v := os.Getenv("HORNETCAST_PREDATION"); v != "" {
		config.Predation.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("HORNETCAST_OUTPUT_FORMAT"); v != "" {
		config.Output.Format = v
	}

	if v := os.Getenv("HORNETCAST_DB"); v != "" {
		config.Output.Database = v
	}

	if v := os.Getenv("HORNETCAST_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
