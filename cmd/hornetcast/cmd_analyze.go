package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/analysis"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/tables"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Describe the historical invasion",
		Long: `Analyze the staged history: the first invasion year of each country,
the neighbor each invasion most likely came from with the source density
at the time, and the average density per stage and year within stage.

Examples:
  hornetcast analyze --history staged.csv
  hornetcast analyze --observations hives.csv --areas areas.csv --out analysis/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")

			in, err := pipeline.Load(inputPaths(cmd, cfg), adjacencyOptions(cfg))
			if err != nil {
				return err
			}
			runner := pipeline.New(cfg)
			runner.SetLogger(newLogger(cmd, cfg), nil)
			staged, err := runner.Stage(in)
			if err != nil {
				return err
			}
			report := analysis.Analyze(staged, in.Graph)

			var written []string
			if out != "" {
				thresholds := filepath.Join(out, pipeline.ThresholdsFile)
				if err := tables.WriteFile(thresholds, func(w io.Writer) error {
					return tables.WriteSpreadThresholds(w, report.SpreadEvents)
				}); err != nil {
					return err
				}
				stageYears := filepath.Join(out, pipeline.StageYearsFile)
				if err := tables.WriteFile(stageYears, func(w io.Writer) error {
					return tables.WriteStageYears(w, report.StageYears)
				}); err != nil {
					return err
				}
				written = append(written, thresholds, stageYears)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"report": report,
					"files":  written,
				})
			}

			printReport(cmd.OutOrStdout(), report)
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			return nil
		},
	}

	addHornetInputFlags(cmd)
	cmd.Flags().String("out", "", "Write the spread-threshold and stage-year tables into this directory")
	return cmd
}

func printReport(w io.Writer, report analysis.Report) {
	fmt.Fprintln(w, "First invasions:")
	for _, f := range report.FirstInvasions {
		fmt.Fprintf(w, "  %d  %s\n", f.Year, f.Country)
	}

	fmt.Fprintln(w, "\nSpread events:")
	if len(report.SpreadEvents) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, e := range report.SpreadEvents {
		fmt.Fprintf(w, "  %d  %s -> %s at %.4f hives/km2 (%.0f hives)\n",
			e.Year, e.From, e.To, e.DensityAtSpread, e.HivesAtSpread)
	}

	fmt.Fprintln(w, "\nDensity by stage and year in stage:")
	fmt.Fprintf(w, "  %-14s %5s %12s %12s %9s\n", "STAGE", "YEAR", "AVG DENSITY", "AVG HIVES", "COUNTRIES")
	for _, s := range report.StageYears {
		fmt.Fprintf(w, "  %-14s %5d %12.4f %12.1f %9d\n", s.Stage, s.StageYear, s.AvgDensity, s.AvgHives, s.Countries)
	}
}
