package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/tables"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify hive densities into invasion stages",
		Long: `Compute hive density per country and year and classify it into an
invasion stage (1 Newly Invaded, 2 Expanding, 3 Saturated), keeping the
stage monotonic within each country.

Input is either raw hive observations with an areas table, or a staged
history whose stages are recomputed when missing.

Examples:
  hornetcast classify --observations hives.csv --areas areas.csv
  hornetcast classify --observations hives.csv --areas areas.csv --out staged.csv`,
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

			if out != "" {
				if err := tables.WriteFile(out, func(w io.Writer) error { return tables.WriteStaged(w, staged) }); err != nil {
					return err
				}
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"records": staged,
					"count":   len(staged),
					"path":    out,
				})
			}
			if out == "" {
				return tables.WriteStaged(cmd.OutOrStdout(), staged)
			}

			countries := make(map[string]bool)
			for _, r := range staged {
				countries[r.Country] = true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Classified %d country-years across %d countries\n", len(staged), len(countries))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}

	addHornetInputFlags(cmd)
	cmd.Flags().String("out", "", "Write the staged history CSV here (default: stdout)")
	return cmd
}
