// Package mcp provides an MCP (Model Context Protocol) server exposing the
// hornet spread simulator, the bee forecaster and the run store as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/ratelimit"
	"github.com/nvandessel/hornetcast/internal/store"
)

// Server wraps the MCP SDK server with the simulation tools.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	graph        *adjacency.Graph
	areas        countries.AreaTable
	settings     *config.HornetConfig
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "hornetcast")
	Version string // Server version

	// DBPath is the run store. Empty uses store.DefaultDBPath().
	DBPath string

	// Settings supplies simulation defaults. Nil uses config.Default().
	Settings *config.HornetConfig

	// Graph is the adjacency graph. Nil uses the built-in European table.
	Graph *adjacency.Graph

	// Areas resolves country areas for supplied histories.
	Areas countries.AreaTable

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with hornetcast tools.
func NewServer(cfg *Config) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve run store path: %w", err)
		}
		dbPath = p
	}

	runStore, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	graph := cfg.Graph
	if graph == nil {
		graph = adjacency.Default(adjacency.Options{Directed: settings.Simulation.Directed})
	}
	areas := cfg.Areas
	if areas == nil {
		areas = countries.NewAreaTable(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		graph:        graph,
		areas:        areas,
		settings:     settings,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(ratelimit.DefaultRates),
		auditLogger:  NewAuditLogger(filepath.Dir(dbPath)),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
// The caller still owns Close.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close closes the run store and the audit log.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
