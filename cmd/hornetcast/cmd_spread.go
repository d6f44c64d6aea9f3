package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/spreading"
	"github.com/nvandessel/hornetcast/internal/store"
	"github.com/nvandessel/hornetcast/internal/tables"
)

func newSpreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spread",
		Short: "Simulate hornet spread to the horizon year",
		Long: `Seed the simulator from the last (or --seed-year) year of the staged
history and simulate year by year to the horizon. Countries grow along
their stage curve; a saturated neighbor seeds an invasion.

Writes the spread forecast and the invasion events into the output
directory, and stores the run when --db (or output.database) is set.

Examples:
  hornetcast spread --history staged.csv --areas areas.csv
  hornetcast spread --history staged.csv --areas areas.csv --horizon 2040 --format arrow
  hornetcast spread --observations hives.csv --areas areas.csv --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := applySimulationFlags(cmd, cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			dir, format, err := outputSettings(cmd, cfg)
			if err != nil {
				return err
			}

			in, err := pipeline.Load(inputPaths(cmd, cfg), adjacencyOptions(cfg))
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			events := logging.NewEventLogger(dir, cfg.Logging.Level)
			defer events.Close()
			collector, err := newCollector(cmd)
			if err != nil {
				return err
			}

			runner := pipeline.New(cfg)
			runner.SetLogger(logger, events)
			if collector != nil {
				runner.SetRecorder(collector)
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			staged, err := runner.Stage(in)
			if err != nil {
				return err
			}
			fc, err := runner.Simulate(ctx, in, staged)
			if err != nil {
				return fmt.Errorf("spread simulation: %w", err)
			}

			written, err := writeSpreadOutputs(dir, format, fc)
			if err != nil {
				return err
			}

			var run *store.Run
			if dbPath := saveDBPath(cmd, cfg); dbPath != "" {
				st, err := store.Open(dbPath)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer st.Close()
				saved, err := st.SaveSpreadRun(ctx, store.SpreadRun{
					StartYear: fc.StartYear,
					EndYear:   fc.EndYear,
					Params:    runParams(cmd, cfg),
					Rows:      fc.Rows,
					Events:    fc.Events,
					Final:     fc.Final,
				})
				if err != nil {
					return fmt.Errorf("saving spread run: %w", err)
				}
				run = &saved
			}

			if err := flushMetrics(cmd, collector); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				out := map[string]interface{}{
					"start_year": fc.StartYear,
					"end_year":   fc.EndYear,
					"invaded":    fc.Invaded(),
					"events":     nonNilEvents(fc.Events),
					"rows":       len(fc.Rows),
					"files":      written,
				}
				if run != nil {
					out["run_id"] = run.ID
				}
				return printJSON(cmd, out)
			}

			printSpreadSummary(cmd.OutOrStdout(), fc)
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			if run != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s\n", run.ID)
			}
			return nil
		},
	}

	addHornetInputFlags(cmd)
	addSimulationFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().String("db", "", "Store the run in this SQLite database (default: output.database)")
	return cmd
}

// writeSpreadOutputs writes the forecast table and the invasion events.
func writeSpreadOutputs(dir, format string, fc *spreading.Forecast) ([]string, error) {
	path, err := writeSpreadTable(dir, format, fc.Rows)
	if err != nil {
		return nil, err
	}
	events := filepath.Join(dir, pipeline.EventsFile)
	if err := tables.WriteFile(events, func(w io.Writer) error { return tables.WriteEvents(w, fc.Events) }); err != nil {
		return []string{path}, err
	}
	return []string{path, events}, nil
}

// printSpreadSummary prints the invasions and the final state of a forecast.
func printSpreadSummary(w io.Writer, fc *spreading.Forecast) {
	fmt.Fprintf(w, "Simulated %d-%d: %d countries invaded, %d new invasions\n",
		fc.StartYear+1, fc.EndYear, len(fc.Final), len(fc.Events))
	for _, e := range fc.Events {
		fmt.Fprintf(w, "  %d: %s invaded from %s (%s, %.4f hives/km2)\n",
			e.Year, e.Country, e.Source, e.SourceStage, e.SourceDensity)
	}

	final := fc.ByYear(fc.EndYear)
	if len(final) == 0 {
		return
	}
	var total int64
	for _, r := range final {
		total += r.HiveCount
	}
	fmt.Fprintf(w, "\nState in %d (%s hives):\n", fc.EndYear, humanize.Comma(total))
	for _, r := range final {
		fmt.Fprintf(w, "  %-24s %-14s year %-3d %10.4f hives/km2 %12s hives\n",
			r.Country, r.Stage, r.StageYear, r.HiveDensity, humanize.Comma(r.HiveCount))
	}
}

// runParams records the settings and inputs a stored run was produced with.
func runParams(cmd *cobra.Command, cfg *config.HornetConfig) map[string]any {
	params := map[string]any{
		"source":       "cli",
		"command":      cmd.Name(),
		"horizon_year": cfg.Simulation.HorizonYear,
		"seed_hives":   cfg.Simulation.SeedHives,
		"tie_break":    cfg.Simulation.TieBreak,
		"directed":     cfg.Simulation.Directed,
	}
	if cfg.Simulation.SeedYear != 0 {
		params["seed_year"] = cfg.Simulation.SeedYear
	}
	paths := inputPaths(cmd, cfg)
	for name, path := range map[string]string{
		"observations": paths.Observations,
		"history":      paths.History,
		"areas":        paths.Areas,
		"adjacency":    paths.Adjacency,
		"correlations": paths.Correlations,
		"bee_history":  paths.BeeHistory,
		"colonies":     paths.Colonies,
		"predators":    paths.Predators,
	} {
		if path != "" {
			params[name] = path
		}
	}
	return params
}

func nonNilEvents(events []models.InvasionEvent) []models.InvasionEvent {
	if events == nil {
		return []models.InvasionEvent{}
	}
	return events
}
