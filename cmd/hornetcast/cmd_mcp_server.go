package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/mcp"
	"github.com/nvandessel/hornetcast/internal/tables"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Serve the hornetcast tools over the Model Context Protocol on stdin and
stdout: stage classification, adjacency lookup, spread simulation, bee
forecasts, graph rendering and the run store.

Logs go to stderr. Every tool call is appended to audit.jsonl next to
the run store.

Example MCP client configuration:
  {"command": "hornetcast", "args": ["mcp-server", "--areas", "areas.csv"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dbPath, err := resolveDBPath(cmd, cfg)
			if err != nil {
				return err
			}

			g, err := loadGraph(cmd, cfg)
			if err != nil {
				return err
			}
			areas := countries.NewAreaTable(nil)
			if path, _ := cmd.Flags().GetString(flagAreas); path != "" {
				if areas, err = tables.ReadAreasFile(path); err != nil {
					return fmt.Errorf("loading areas: %w", err)
				}
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "hornetcast",
				Version:  version,
				DBPath:   dbPath,
				Settings: cfg,
				Graph:    g,
				Areas:    areas,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(context.Background())
		},
	}

	cmd.Flags().String(flagAdjacency, "", "Adjacency YAML (default: built-in European table)")
	cmd.Flags().String(flagAreas, "", "Country areas CSV used for supplied histories")
	cmd.Flags().String("db", "", "Run store (default: output.database or ~/.hornetcast/hornetcast.db)")
	return cmd
}
