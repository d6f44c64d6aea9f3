package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/store"
	"github.com/nvandessel/hornetcast/internal/tables"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a stored run as CSV or Arrow",
		Long: `Write the forecast table of a stored run into the output directory.
Spread runs also write their invasion events. Without an ID the newest
run of --kind is exported.

Examples:
  hornetcast export                          # newest spread run, output.format
  hornetcast export --kind bees --format arrow --out exports/
  hornetcast export 6f1c2a9e-... --out exports/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dir, format, err := outputSettings(cmd, cfg)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			id := "latest"
			if len(args) == 1 {
				id = args[0]
			}

			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			resolveKind := store.RunKind(kind)
			if id != "latest" {
				resolveKind = ""
			}
			run, err := resolveRun(ctx, st, id, resolveKind)
			if err != nil {
				return err
			}

			var written []string
			switch run.Kind {
			case store.RunKindSpread:
				rows, err := st.SpreadRows(ctx, run.ID)
				if err != nil {
					return err
				}
				events, err := st.InvasionEvents(ctx, run.ID)
				if err != nil {
					return err
				}
				path, err := writeSpreadTable(dir, format, rows)
				if err != nil {
					return err
				}
				eventsPath := filepath.Join(dir, pipeline.EventsFile)
				if err := tables.WriteFile(eventsPath, func(w io.Writer) error { return tables.WriteEvents(w, events) }); err != nil {
					return err
				}
				written = append(written, path, eventsPath)
			case store.RunKindBees:
				rows, err := st.BeeRows(ctx, run.ID)
				if err != nil {
					return err
				}
				path, err := writeBeeTable(dir, format, rows)
				if err != nil {
					return err
				}
				written = append(written, path)
			default:
				return fmt.Errorf("run %s has unknown kind %q", run.ID, run.Kind)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"run_id": run.ID,
					"kind":   run.Kind,
					"format": format,
					"files":  written,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s run %s (%d-%d)\n", run.Kind, run.ID, run.StartYear+1, run.EndYear)
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			return nil
		},
	}

	addOutputFlags(cmd)
	cmd.Flags().String("kind", string(store.RunKindSpread), "Kind of run exported when no ID is given: spread or bees")
	cmd.Flags().String("db", "", "Run store (default: output.database or ~/.hornetcast/hornetcast.db)")
	return cmd
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
