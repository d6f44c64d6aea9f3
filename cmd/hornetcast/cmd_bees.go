package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/bees"
	"github.com/nvandessel/hornetcast/internal/correlation"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/store"
)

func newBeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bees",
		Short: "Forecast honeybee decline from a hornet spread forecast",
		Long: `Forecast bee density per country from a hornet spread forecast.

The hornet density of each year is averaged with the previous year's and
converted into a capped yearly decline through the country's correlation
coefficient (default -0.3 when the country has none).

The spread forecast comes from a file (--spread, CSV or .arrow) or from a
stored run (--run ID, or "latest"). Supplying the staged hornet history
prepends the historical densities to the series.

Examples:
  hornetcast bees --spread output/spread_forecast.csv --bee-history bees.csv
  hornetcast bees --run latest --colonies colonies.csv --areas areas.csv --history staged.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dir, format, err := outputSettings(cmd, cfg)
			if err != nil {
				return err
			}
			spreadPath, _ := cmd.Flags().GetString("spread")
			runID, _ := cmd.Flags().GetString("run")
			beeSeedYear, _ := cmd.Flags().GetInt("bee-seed-year")
			if spreadPath != "" && runID != "" {
				return fmt.Errorf("use either --spread or --run, not both")
			}
			if spreadPath == "" && runID == "" {
				return fmt.Errorf("a spread forecast is required (--spread or --run)")
			}

			in, err := pipeline.Load(inputPaths(cmd, cfg), adjacencyOptions(cfg))
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			collector, err := newCollector(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			var st *store.SQLiteStore
			openStore := func(path string) (*store.SQLiteStore, error) {
				if st != nil {
					return st, nil
				}
				var err error
				if st, err = store.Open(path); err != nil {
					return nil, fmt.Errorf("open store: %w", err)
				}
				return st, nil
			}
			defer func() {
				if st != nil {
					st.Close()
				}
			}()

			// Step 1: Load the hornet forecast.
			var (
				rows     []models.SpreadRow
				seedYear int
				parentID string
			)
			if spreadPath != "" {
				if rows, err = readSpreadTable(spreadPath); err != nil {
					return fmt.Errorf("loading spread forecast: %w", err)
				}
				seedYear = firstYear(rows) - 1
			} else {
				dbPath, err := resolveDBPath(cmd, cfg)
				if err != nil {
					return err
				}
				s, err := openStore(dbPath)
				if err != nil {
					return err
				}
				run, err := resolveRun(ctx, s, runID, store.RunKindSpread)
				if err != nil {
					return err
				}
				if rows, err = s.SpreadRows(ctx, run.ID); err != nil {
					return err
				}
				seedYear, parentID = run.StartYear, run.ID
			}
			if len(rows) == 0 {
				return fmt.Errorf("spread forecast has no rows")
			}
			if !cmd.Flags().Changed("horizon") {
				cfg.Simulation.HorizonYear = lastYear(rows)
			} else {
				cfg.Simulation.HorizonYear, _ = cmd.Flags().GetInt("horizon")
			}

			// Step 2: Build the hornet series and the coefficients.
			runner := pipeline.New(cfg)
			runner.SetLogger(logger, nil)
			var staged []models.CountryYearRecord
			if len(in.Observations) > 0 || len(in.History) > 0 {
				if staged, err = runner.Stage(in); err != nil {
					return err
				}
			}
			hornets := bees.FromRows(rows)
			if len(staged) > 0 {
				hornets = bees.Combine(staged, rows, seedYear)
			}

			var trends []models.BeeTrend
			if len(in.Colonies) > 0 {
				trends = bees.Trends(in.Colonies, in.Areas, logger)
			}
			coefficients := in.Correlations
			if coefficients == nil && len(staged) > 0 && len(trends) > 0 {
				results := correlation.ByCountry(correlation.Join(staged, trends), cfg.Bees.MinCorrelationPoints)
				coefficients = correlation.Coefficients(results)
			}

			beeHistory := in.BeeHistory
			if len(beeHistory) == 0 {
				beeHistory = bees.Records(trends)
			}
			if len(beeHistory) == 0 {
				return fmt.Errorf("bee history or colony counts are required: %w", bees.ErrNoBeeData)
			}

			// Step 3: Forecast.
			f := bees.NewForecaster(pipeline.BeeConfig(cfg))
			f.SetLogger(logger)
			if collector != nil {
				f.SetRecorder(collector)
			}
			seed, beeYear, err := f.Seed(beeHistory, beeSeedYear, in.Areas)
			if err != nil {
				return fmt.Errorf("bee forecast: %w", err)
			}
			forecast, err := f.Forecast(ctx, seed, beeYear, hornets, coefficients)
			if err != nil {
				return fmt.Errorf("bee forecast: %w", err)
			}

			path, err := writeBeeTable(dir, format, forecast)
			if err != nil {
				return err
			}

			var saved *store.Run
			if dbPath := saveDBPath(cmd, cfg); dbPath != "" {
				s, err := openStore(dbPath)
				if err != nil {
					return err
				}
				run, err := s.SaveBeeRun(ctx, store.BeeRun{
					ParentID:  parentID,
					StartYear: beeYear,
					EndYear:   cfg.Simulation.HorizonYear,
					Params:    runParams(cmd, cfg),
					Rows:      forecast,
				})
				if err != nil {
					return fmt.Errorf("saving bee run: %w", err)
				}
				saved = &run
			}

			if err := flushMetrics(cmd, collector); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				out := map[string]interface{}{
					"seed_year":  beeYear,
					"end_year":   cfg.Simulation.HorizonYear,
					"countries":  len(seed),
					"rows":       forecast,
					"file":       path,
					"spread_run": parentID,
				}
				if saved != nil {
					out["run_id"] = saved.ID
				}
				return printJSON(cmd, out)
			}

			printBeeSummary(cmd.OutOrStdout(), seed, beeYear, forecast)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			if saved != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s\n", saved.ID)
			}
			return nil
		},
	}

	addHornetInputFlags(cmd)
	addBeeInputFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().String("spread", "", "Spread forecast file (CSV or .arrow)")
	cmd.Flags().String("run", "", "Stored spread run ID, or \"latest\"")
	cmd.Flags().Int("horizon", 0, "Last forecast year (default: last year of the spread forecast)")
	cmd.Flags().Int("bee-seed-year", 0, "Bee history year used as the initial state (default: last year)")
	cmd.Flags().String("db", "", "Run store for --run, and where to save the forecast (default: output.database)")
	return cmd
}

// resolveRun returns the run named by id, or the newest run of kind when
// id is "" or "latest". An empty kind matches runs of any kind.
func resolveRun(ctx context.Context, st store.RunStore, id string, kind store.RunKind) (*store.Run, error) {
	if (id == "" || id == "latest") && kind == "" {
		runs, err := st.ListRuns(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no stored runs: %w", store.ErrRunNotFound)
		}
		return &runs[0], nil
	}
	if id == "" || id == "latest" {
		run, err := st.LatestRun(ctx, kind)
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, fmt.Errorf("no stored %s runs: %w", kind, err)
		}
		return run, err
	}
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind != "" && run.Kind != kind {
		return nil, fmt.Errorf("run %s is a %s run, not %s", id, run.Kind, kind)
	}
	return run, nil
}

// printBeeSummary prints the first and last forecast density per country.
func printBeeSummary(w io.Writer, seed bees.State, seedYear int, rows []models.BeeRow) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "No forecast years after %d\n", seedYear)
		return
	}
	fmt.Fprintf(w, "Bee forecast %d-%d for %d countries:\n", seedYear+1, lastBeeYear(rows), len(seed))
	for i := 0; i < len(rows); i++ {
		if i+1 < len(rows) && rows[i+1].Country == rows[i].Country {
			continue
		}
		last := rows[i]
		start := seed[last.Country]
		change := 0.0
		if start.BeeDensity != 0 {
			change = (last.BeeDensity - start.BeeDensity) / start.BeeDensity * 100
		}
		fmt.Fprintf(w, "  %-24s %10.4f -> %10.4f colonies/km2 (%+.1f%%) %12s colonies\n",
			last.Country, start.BeeDensity, last.BeeDensity, change, humanize.Comma(last.BeeCount))
	}
}

func firstYear(rows []models.SpreadRow) int {
	year := rows[0].Year
	for _, r := range rows {
		if r.Year < year {
			year = r.Year
		}
	}
	return year
}

func lastYear(rows []models.SpreadRow) int {
	year := rows[0].Year
	for _, r := range rows {
		if r.Year > year {
			year = r.Year
		}
	}
	return year
}

func lastBeeYear(rows []models.BeeRow) int {
	year := rows[0].Year
	for _, r := range rows {
		if r.Year > year {
			year = r.Year
		}
	}
	return year
}
