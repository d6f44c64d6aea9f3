package mcp

import "github.com/nvandessel/hornetcast/internal/models"

// ClassifyInput defines the input for hornet_classify tool.
type ClassifyInput struct {
	Density   float64 `json:"density" jsonschema:"Hive density in hives per km2"`
	HiveCount float64 `json:"hive_count,omitempty" jsonschema:"Hive count; with area_km2 it replaces density"`
	AreaKm2   float64 `json:"area_km2,omitempty" jsonschema:"Country area in km2"`
}

// ClassifyOutput defines the output for hornet_classify tool.
type ClassifyOutput struct {
	Density            float64 `json:"density" jsonschema:"Density that was classified"`
	Stage              int     `json:"stage" jsonschema:"Invasion stage 1-3"`
	Label              string  `json:"label" jsonschema:"Stage label"`
	ExpandingThreshold float64 `json:"expanding_threshold" jsonschema:"Lowest density classified as stage 2"`
	SaturatedThreshold float64 `json:"saturated_threshold" jsonschema:"Lowest density classified as stage 3"`
}

// NeighborsInput defines the input for hornet_neighbors tool.
type NeighborsInput struct {
	Country string `json:"country" jsonschema:"Country name; common aliases are accepted"`
}

// NeighborsOutput defines the output for hornet_neighbors tool.
type NeighborsOutput struct {
	Country   string   `json:"country" jsonschema:"Canonical country name"`
	Known     bool     `json:"known" jsonschema:"Whether the country is in the adjacency graph"`
	Neighbors []string `json:"neighbors" jsonschema:"Countries an invasion can spread to"`
	Directed  bool     `json:"directed" jsonschema:"Whether the graph keeps one-way edges"`
}

// RunsInput defines the input for hornet_runs tool.
type RunsInput struct {
	Kind  string `json:"kind,omitempty" jsonschema:"Run kind to list: spread or bees (default: all)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default: 20)"`
}

// RunsOutput defines the output for hornet_runs tool.
type RunsOutput struct {
	Runs  []RunSummary `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int          `json:"count" jsonschema:"Number of runs returned"`
	Total int          `json:"total" jsonschema:"Number of stored runs of the kind"`
}

// RunSummary provides a list view of a stored run.
type RunSummary struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ParentID  string `json:"parent_id,omitempty"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
	RowCount  int    `json:"row_count"`
	CreatedAt string `json:"created_at"`
	Age       string `json:"age"`
}

// HistoryInput is one historical country-year supplied to hornet_spread.
type HistoryInput struct {
	Country     string  `json:"country" jsonschema:"Country name"`
	Year        int     `json:"year" jsonschema:"Observation year"`
	HiveDensity float64 `json:"hive_density" jsonschema:"Hive density in hives per km2"`
	AreaKm2     float64 `json:"area_km2,omitempty" jsonschema:"Country area in km2; looked up when omitted"`
	Stage       int     `json:"stage,omitempty" jsonschema:"Final invasion stage 1-3; classified from density when omitted"`
}

// SpreadInput defines the input for hornet_spread tool.
type SpreadInput struct {
	History     []HistoryInput `json:"history,omitempty" jsonschema:"Historical records; the last year seeds the simulation"`
	FromRun     string         `json:"from_run,omitempty" jsonschema:"Continue a stored spread run from its last year (an ID or 'latest')"`
	SeedYear    int            `json:"seed_year,omitempty" jsonschema:"History year to seed from (default: last year)"`
	HorizonYear int            `json:"horizon_year,omitempty" jsonschema:"Last simulated year (default: configured horizon)"`
	Save        bool           `json:"save,omitempty" jsonschema:"Store the forecast as a new run"`
}

// SpreadOutput defines the output for hornet_spread tool.
type SpreadOutput struct {
	RunID     string                 `json:"run_id,omitempty" jsonschema:"ID of the stored run when saved"`
	StartYear int                    `json:"start_year" jsonschema:"Seed year"`
	EndYear   int                    `json:"end_year" jsonschema:"Last simulated year"`
	RowCount  int                    `json:"row_count" jsonschema:"Number of forecast rows"`
	Invasions []models.InvasionEvent `json:"invasions" jsonschema:"Neighbor-triggered invasions in order"`
	Final     []models.SpreadRow     `json:"final" jsonschema:"Rows of the last simulated year"`
	Message   string                 `json:"message" jsonschema:"Human-readable summary"`
}

// BeeInput is one historical bee record supplied to hornet_bees.
type BeeInput struct {
	Country    string  `json:"country" jsonschema:"Country name"`
	Year       int     `json:"year" jsonschema:"Observation year"`
	BeeDensity float64 `json:"bee_density" jsonschema:"Colonies per km2"`
	BeeCount   float64 `json:"bee_count" jsonschema:"Colony count"`
	AreaKm2    float64 `json:"area_km2,omitempty" jsonschema:"Country area in km2; looked up when omitted"`
}

// BeesInput defines the input for hornet_bees tool.
type BeesInput struct {
	RunID        string             `json:"run_id,omitempty" jsonschema:"Stored spread run to use (default: latest)"`
	BeeHistory   []BeeInput         `json:"bee_history" jsonschema:"Historical bee densities; the last year seeds the forecast"`
	Correlations map[string]float64 `json:"correlations,omitempty" jsonschema:"Per-country hornet vs bee growth coefficients"`
	Save         bool               `json:"save,omitempty" jsonschema:"Store the forecast linked to the spread run"`
}

// BeesOutput defines the output for hornet_bees tool.
type BeesOutput struct {
	RunID       string          `json:"run_id,omitempty" jsonschema:"ID of the stored bee run when saved"`
	SpreadRunID string          `json:"spread_run_id" jsonschema:"Spread run the forecast consumed"`
	StartYear   int             `json:"start_year" jsonschema:"Bee seed year"`
	EndYear     int             `json:"end_year" jsonschema:"Last forecast year"`
	RowCount    int             `json:"row_count" jsonschema:"Number of forecast rows"`
	Final       []models.BeeRow `json:"final" jsonschema:"Rows of the last forecast year"`
	Message     string          `json:"message" jsonschema:"Human-readable summary"`
}

// GraphInput defines the input for hornet_graph tool.
type GraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: dot or json (default: json)"`
	RunID  string `json:"run_id,omitempty" jsonschema:"Stored spread run to colour by stage ('latest' allowed)"`
	Year   int    `json:"year,omitempty" jsonschema:"Forecast year to colour (default: last year of the run)"`
}

// GraphOutput defines the output for hornet_graph tool.
type GraphOutput struct {
	Format    string      `json:"format" jsonschema:"Output format used"`
	Graph     interface{} `json:"graph" jsonschema:"Rendered graph (DOT string or JSON object)"`
	Year      int         `json:"year,omitempty" jsonschema:"Year the stages were taken from"`
	NodeCount int         `json:"node_count" jsonschema:"Number of countries"`
	EdgeCount int         `json:"edge_count" jsonschema:"Number of edges"`
}
