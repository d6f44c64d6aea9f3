package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored forecast runs",
		Long: `List the spread and bee forecast runs saved in the run store, newest
first.

Examples:
  hornetcast runs
  hornetcast runs --kind spread --limit 5
  hornetcast runs show <id>
  hornetcast runs delete <id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			limit, _ := cmd.Flags().GetInt("limit")
			if kind != "" && kind != string(store.RunKindSpread) && kind != string(store.RunKindBees) {
				return fmt.Errorf("invalid kind %q (use 'spread' or 'bees')", kind)
			}

			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(context.Background(), store.RunKind(kind))
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			total := len(runs)
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}
			if runs == nil {
				runs = []store.Run{}
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
					"total": total,
				})
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No stored runs.")
				return nil
			}
			fmt.Fprintf(w, "%-36s  %-6s  %-9s  %8s  %s\n", "ID", "KIND", "YEARS", "ROWS", "CREATED")
			for _, r := range runs {
				fmt.Fprintf(w, "%-36s  %-6s  %d-%d  %8s  %s\n",
					r.ID, r.Kind, r.StartYear, r.EndYear, humanize.Comma(int64(r.RowCount)), humanize.Time(r.CreatedAt))
			}
			if total > len(runs) {
				fmt.Fprintf(w, "\n%d of %d runs shown\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("db", "", "Run store (default: output.database or ~/.hornetcast/hornetcast.db)")
	cmd.Flags().String("kind", "", "Only list runs of this kind: spread or bees")
	cmd.Flags().Int("limit", 0, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run and its parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			run, err := resolveRun(ctx, st, args[0], "")
			if err != nil {
				return err
			}
			var events int
			if run.Kind == store.RunKindSpread {
				ev, err := st.InvasionEvents(ctx, run.ID)
				if err != nil {
					return err
				}
				events = len(ev)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]interface{}{
					"run":    run,
					"events": events,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run:      %s\n", run.ID)
			fmt.Fprintf(w, "Kind:     %s\n", run.Kind)
			if run.ParentID != "" {
				fmt.Fprintf(w, "Parent:   %s\n", run.ParentID)
			}
			fmt.Fprintf(w, "Years:    %d-%d\n", run.StartYear+1, run.EndYear)
			fmt.Fprintf(w, "Rows:     %s\n", humanize.Comma(int64(run.RowCount)))
			if run.Kind == store.RunKindSpread {
				fmt.Fprintf(w, "Events:   %d\n", events)
			}
			fmt.Fprintf(w, "Created:  %s (%s)\n", run.CreatedAt.Format(time.RFC3339), humanize.Time(run.CreatedAt))
			if len(run.Params) > 0 {
				fmt.Fprintln(w, "Params:")
				for _, k := range sortedKeys(run.Params) {
					fmt.Fprintf(w, "  %s: %v\n", k, run.Params[k])
				}
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{"status": "deleted", "id": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

// openRunStore opens the store named by --db, output.database or the
// default location.
func openRunStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
