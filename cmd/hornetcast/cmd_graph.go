package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/store"
	"github.com/nvandessel/hornetcast/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize the adjacency graph",
		Long: `Output the country adjacency graph in DOT (Graphviz) or JSON format.

With a spread forecast (--forecast file or --run ID) the countries are
coloured by their stage in --year (default: the last forecast year) and
the invasions of that year are drawn as bold edges.

Examples:
  hornetcast graph | dot -Tsvg > europe.svg
  hornetcast graph --run latest --year 2030 --format json
  hornetcast graph --forecast output/spread_forecast.csv --year 2027 --output 2027.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			forecast, _ := cmd.Flags().GetString("forecast")
			runID, _ := cmd.Flags().GetString("run")
			year, _ := cmd.Flags().GetInt("year")

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}
			if forecast != "" && runID != "" {
				return fmt.Errorf("use either --forecast or --run, not both")
			}

			g, err := loadGraph(cmd, cfg)
			if err != nil {
				return err
			}

			var rows []models.SpreadRow
			var events []models.InvasionEvent
			switch {
			case forecast != "":
				if rows, err = readSpreadTable(forecast); err != nil {
					return fmt.Errorf("loading spread forecast: %w", err)
				}
			case runID != "":
				if rows, events, err = loadStoredForecast(cmd, cfg, runID); err != nil {
					return err
				}
			}

			var snap *visualization.Snapshot
			if len(rows) > 0 {
				if year == 0 {
					year = lastYear(rows)
				}
				snap = visualization.NewSnapshot(year, rows, events)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				w = file
			}

			switch f {
			case visualization.FormatJSON:
				enc := newIndentEncoder(w)
				if err := enc.Encode(visualization.RenderJSON(g, snap)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			default:
				fmt.Fprint(w, visualization.RenderDOT(g, snap))
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().String(flagAdjacency, "", "Adjacency YAML (default: built-in European table)")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().String("forecast", "", "Spread forecast file (CSV or .arrow) to colour the graph")
	cmd.Flags().String("run", "", "Stored spread run ID, or \"latest\"")
	cmd.Flags().Int("year", 0, "Forecast year to draw (default: last year)")
	cmd.Flags().String("db", "", "Run store for --run (default: output.database or ~/.hornetcast/hornetcast.db)")
	return cmd
}

// loadGraph loads --adjacency, else simulation.adjacency, else the
// built-in table.
func loadGraph(cmd *cobra.Command, cfg *config.HornetConfig) (*adjacency.Graph, error) {
	path, _ := cmd.Flags().GetString(flagAdjacency)
	if path == "" {
		path = cfg.Simulation.Adjacency
	}
	if path == "" {
		return adjacency.Default(adjacencyOptions(cfg)), nil
	}
	return adjacency.LoadFile(path, adjacencyOptions(cfg))
}

// loadStoredForecast reads the rows and invasion events of a stored
// spread run.
func loadStoredForecast(cmd *cobra.Command, cfg *config.HornetConfig, runID string) ([]models.SpreadRow, []models.InvasionEvent, error) {
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := resolveRun(ctx, st, runID, store.RunKindSpread)
	if err != nil {
		return nil, nil, err
	}
	rows, err := st.SpreadRows(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	events, err := st.InvasionEvents(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return rows, events, nil
}
