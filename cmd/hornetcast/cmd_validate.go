package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/pipeline"
)

// ValidationReport is the result of validate.
type ValidationReport struct {
	Valid        bool                  `json:"valid"`
	Errors       []string              `json:"errors"`
	Asymmetries  []adjacency.Asymmetry `json:"asymmetries"`
	NotInGraph   []string              `json:"not_in_graph"`
	MissingAreas []string              `json:"missing_areas"`
	Tables       map[string]int        `json:"tables"`
	Directed     bool                  `json:"directed"`
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the adjacency table and input files",
		Long: `Check the configuration, parse every given input table, and report:
  - adjacency edges listed in one direction only
  - history countries missing from the adjacency graph
  - history countries without an area

Asymmetric edges are symmetrised when the graph is loaded unless
simulation.directed is set; --strict turns them into errors.

Examples:
  hornetcast validate
  hornetcast validate --adjacency europe.yaml --strict
  hornetcast validate --history staged.csv --areas areas.csv --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			strict, _ := cmd.Flags().GetBool("strict")

			report := ValidationReport{
				Errors:       []string{},
				NotInGraph:   []string{},
				MissingAreas: []string{},
				Tables:       map[string]int{},
				Directed:     cfg.Simulation.Directed,
			}

			in, err := pipeline.Load(inputPaths(cmd, cfg), adjacencyOptions(cfg))
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
			} else {
				checkInputs(in, &report)
			}
			if report.Asymmetries == nil {
				report.Asymmetries = []adjacency.Asymmetry{}
			}
			if strict {
				for _, a := range report.Asymmetries {
					report.Errors = append(report.Errors, fmt.Sprintf("asymmetric edge %s -> %s", a.From, a.To))
				}
			}
			report.Valid = len(report.Errors) == 0

			if jsonOutput(cmd) {
				if err := printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printValidation(cmd, report)
			}
			if !report.Valid {
				return fmt.Errorf("validation failed with %d error(s)", len(report.Errors))
			}
			return nil
		},
	}

	addHornetInputFlags(cmd)
	addBeeInputFlags(cmd)
	cmd.Flags().String(flagPredators, "", "Predator counts CSV")
	cmd.Flags().Bool("strict", false, "Treat asymmetric adjacency edges as errors")
	return cmd
}

func checkInputs(in *pipeline.Inputs, report *ValidationReport) {
	report.Asymmetries = in.Graph.Asymmetries()
	report.Tables["adjacency_countries"] = len(in.Graph.Countries())
	counts := map[string]int{
		"observations": len(in.Observations),
		"history":      len(in.History),
		"areas":        len(in.Areas),
		"correlations": len(in.Correlations),
		"bee_history":  len(in.BeeHistory),
		"colonies":     len(in.Colonies),
		"predators":    len(in.Predators),
	}
	for name, n := range counts {
		if n > 0 {
			report.Tables[name] = n
		}
	}

	seen := make(map[string]bool)
	check := func(country string, area float64) {
		if seen[country] {
			return
		}
		seen[country] = true
		if !in.Graph.Has(country) {
			report.NotInGraph = append(report.NotInGraph, country)
		}
		if _, ok := in.Areas.Area(country); !ok && area <= 0 {
			report.MissingAreas = append(report.MissingAreas, country)
		}
	}
	for _, o := range in.Observations {
		check(o.Country, o.AreaKm2)
	}
	for _, r := range in.History {
		check(r.Country, r.AreaKm2)
	}
	sort.Strings(report.NotInGraph)
	sort.Strings(report.MissingAreas)
}

func printValidation(cmd *cobra.Command, report ValidationReport) {
	w := cmd.OutOrStdout()
	kind := "symmetrised"
	if report.Directed {
		kind = "directed"
	}
	fmt.Fprintf(w, "Adjacency: %d countries (%s)\n", report.Tables["adjacency_countries"], kind)
	for _, a := range report.Asymmetries {
		fmt.Fprintf(w, "  ⚠ %s lists %s, but %s does not list %s\n", a.From, a.To, a.To, a.From)
	}

	names := make([]string, 0, len(report.Tables))
	for name := range report.Tables {
		if name != "adjacency_countries" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "Loaded %s: %d rows\n", name, report.Tables[name])
	}
	for _, c := range report.NotInGraph {
		fmt.Fprintf(w, "  ⚠ %s has history but no adjacency entry\n", c)
	}
	for _, c := range report.MissingAreas {
		fmt.Fprintf(w, "  ⚠ %s has no area; its density cannot be computed\n", c)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}

	if report.Valid {
		fmt.Fprintln(w, "✓ Validation passed")
	} else {
		fmt.Fprintf(w, "✗ Validation failed: %d error(s)\n", len(report.Errors))
	}
}
