package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full forecasting pipeline",
		Long: `Classify the hornet history, simulate the spread, apply the predation
adjustment when predator counts are given, compute bee trends and
correlations, and forecast bee decline. Every table the inputs allow is
written to the output directory.

Examples:
  hornetcast run --observations hives.csv --areas areas.csv --bee-history bees.csv
  hornetcast run --history staged.csv --areas areas.csv --colonies colonies.csv \
      --predators predators.csv --predation --db runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("predation") {
				cfg.Predation.Enabled, _ = cmd.Flags().GetBool("predation")
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

			res, err := runner.Run(ctx, in)
			if err != nil {
				return err
			}

			written, err := pipeline.Write(res, dir, format)
			if err != nil {
				return err
			}

			var spreadRun store.Run
			var beeRun *store.Run
			dbPath := saveDBPath(cmd, cfg)
			if dbPath != "" {
				st, err := store.Open(dbPath)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer st.Close()
				if spreadRun, beeRun, err = pipeline.Save(ctx, st, res, runParams(cmd, cfg)); err != nil {
					return err
				}
			}

			if err := flushMetrics(cmd, collector); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				out := map[string]interface{}{
					"seed_year":     res.SeedYear,
					"end_year":      res.Spread.EndYear,
					"invaded":       res.Spread.Invaded(),
					"events":        nonNilEvents(res.Events),
					"bee_seed_year": res.BeeSeedYear,
					"bee_rows":      len(res.Bees),
					"correlations":  len(res.Correlations),
					"predation":     cfg.Predation.Enabled && len(res.Scores) > 0,
					"files":         written,
				}
				if dbPath != "" {
					out["spread_run_id"] = spreadRun.ID
					if beeRun != nil {
						out["bee_run_id"] = beeRun.ID
					}
				}
				return printJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Classified %d country-years\n", len(res.Staged))
			printSpreadSummary(w, res.Spread)
			if len(res.Scores) > 0 {
				state := "reported only"
				if cfg.Predation.Enabled {
					state = "applied to the bee forecast"
				}
				fmt.Fprintf(w, "\nPredation scores for %d countries (%s)\n", len(res.Scores), state)
			}
			if len(res.Correlations) > 0 {
				fmt.Fprintf(w, "Computed correlations for %d countries\n", len(res.Correlations))
			}
			if len(res.Bees) > 0 {
				var total int64
				for _, r := range res.Bees {
					if r.Year == res.Spread.EndYear {
						total += r.BeeCount
					}
				}
				fmt.Fprintf(w, "Bee forecast from %d: %s rows, %s colonies in %d\n",
					res.BeeSeedYear, humanize.Comma(int64(len(res.Bees))), humanize.Comma(total), res.Spread.EndYear)
			}
			fmt.Fprintln(w)
			for _, path := range written {
				fmt.Fprintf(w, "Wrote %s\n", path)
			}
			if dbPath != "" {
				fmt.Fprintf(w, "Saved spread run %s\n", spreadRun.ID)
				if beeRun != nil {
					fmt.Fprintf(w, "Saved bee run %s\n", beeRun.ID)
				}
			}
			return nil
		},
	}

	addHornetInputFlags(cmd)
	addBeeInputFlags(cmd)
	cmd.Flags().String(flagPredators, "", "Predator counts CSV (country, predator_total or per-species columns)")
	addSimulationFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().Bool("predation", false, "Feed predation-adjusted hornet density into the bee forecast")
	cmd.Flags().String("db", "", "Store the runs in this SQLite database (default: output.database)")
	return cmd
}
