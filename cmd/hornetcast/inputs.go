package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/export"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/tables"
)

// Input table flags, shared by every command that reads tables.
const (
	flagObservations = "observations"
	flagHistory      = "history"
	flagAreas        = "areas"
	flagAdjacency    = "adjacency"
	flagCorrelations = "correlations"
	flagBeeHistory   = "bee-history"
	flagColonies     = "colonies"
	flagPredators    = "predators"
)

// addHornetInputFlags registers the flags for the hornet history tables.
func addHornetInputFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagObservations, "", "Hive observations CSV (country, year, hive_count)")
	cmd.Flags().String(flagHistory, "", "Staged history CSV (country, year, hive_count, area_km2, hive_density, stage)")
	cmd.Flags().String(flagAreas, "", "Country areas CSV (country, area_km2)")
	cmd.Flags().String(flagAdjacency, "", "Adjacency YAML (default: built-in European table)")
}

// addBeeInputFlags registers the flags for the bee tables.
func addBeeInputFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagCorrelations, "", "Correlation CSV (country, r)")
	cmd.Flags().String(flagBeeHistory, "", "Bee history CSV (Country, Year, Bee_Density, Bee_Count, Area_km2)")
	cmd.Flags().String(flagColonies, "", "Bee colony counts CSV (Country, Year, Bee_Count)")
}

// inputPaths collects whichever input flags the command registered.
// The adjacency file falls back to simulation.adjacency.
func inputPaths(cmd *cobra.Command, cfg *config.HornetConfig) pipeline.Paths {
	get := func(name string) string {
		if cmd.Flags().Lookup(name) == nil {
			return ""
		}
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	paths := pipeline.Paths{
		Observations: get(flagObservations),
		History:      get(flagHistory),
		Areas:        get(flagAreas),
		Adjacency:    get(flagAdjacency),
		Correlations: get(flagCorrelations),
		BeeHistory:   get(flagBeeHistory),
		Colonies:     get(flagColonies),
		Predators:    get(flagPredators),
	}
	if paths.Adjacency == "" {
		paths.Adjacency = cfg.Simulation.Adjacency
	}
	return paths
}

// addOutputFlags registers --out and --format.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "Output directory (default: output.dir)")
	cmd.Flags().String("format", "", "Forecast table format: csv or arrow (default: output.format)")
}

// outputSettings resolves --out and --format against the configuration.
func outputSettings(cmd *cobra.Command, cfg *config.HornetConfig) (dir, format string, err error) {
	dir, _ = cmd.Flags().GetString("out")
	if dir == "" {
		dir = cfg.Output.Dir
	}
	format, _ = cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.Output.Format
	}
	format = strings.ToLower(format)
	if format != config.FormatCSV && format != config.FormatArrow {
		return "", "", fmt.Errorf("invalid format %q (use 'csv' or 'arrow')", format)
	}
	return dir, format, nil
}

// applySimulationFlags overrides the simulation section with any
// --horizon, --seed-year or --workers flag the user set.
func applySimulationFlags(cmd *cobra.Command, cfg *config.HornetConfig) error {
	if cmd.Flags().Changed("horizon") {
		cfg.Simulation.HorizonYear, _ = cmd.Flags().GetInt("horizon")
	}
	if cmd.Flags().Changed("seed-year") {
		cfg.Simulation.SeedYear, _ = cmd.Flags().GetInt("seed-year")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Simulation.Workers, _ = cmd.Flags().GetInt("workers")
	}
	return cfg.Validate()
}

func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().Int("horizon", 0, "Last simulated year (default: simulation.horizon_year)")
	cmd.Flags().Int("seed-year", 0, "History year used as the initial state (default: last year)")
	cmd.Flags().Int("workers", 0, "Goroutines evaluating countries per year (default: simulation.workers)")
}

// writeSpreadTable writes the spread forecast in format and returns its path.
func writeSpreadTable(dir, format string, rows []models.SpreadRow) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, pipeline.SpreadFile+"."+format)
	if format == config.FormatArrow {
		return path, export.WriteSpreadFile(path, rows)
	}
	return path, tables.WriteFile(path, func(w io.Writer) error {
		return tables.WriteSpreadForecast(w, rows)
	})
}

// writeBeeTable writes the bee forecast in format and returns its path.
func writeBeeTable(dir, format string, rows []models.BeeRow) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, pipeline.BeeFile+"."+format)
	if format == config.FormatArrow {
		return path, export.WriteBeesFile(path, rows)
	}
	return path, tables.WriteFile(path, func(w io.Writer) error {
		return tables.WriteBeeForecast(w, rows)
	})
}

// readSpreadTable reads a spread forecast written as CSV or Arrow,
// choosing by file extension.
func readSpreadTable(path string) ([]models.SpreadRow, error) {
	if strings.EqualFold(filepath.Ext(path), "."+config.FormatArrow) {
		return export.ReadSpreadFile(path)
	}
	return tables.ReadSpreadForecastFile(path)
}
