package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/hornetcast/internal/bees"
	"github.com/nvandessel/hornetcast/internal/classify"
	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/pipeline"
	"github.com/nvandessel/hornetcast/internal/ratelimit"
	"github.com/nvandessel/hornetcast/internal/spreading"
	"github.com/nvandessel/hornetcast/internal/store"
	"github.com/nvandessel/hornetcast/internal/visualization"
)

// defaultRunsLimit caps hornet_runs when no limit is given.
const defaultRunsLimit = 20

// latestRunURI is the resource summarising the newest spread run.
const latestRunURI = "hornetcast://runs/latest"

// registerTools registers all hornetcast MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_classify",
		Description: "Classify a hive density (hives per km2) into an invasion stage",
	}, s.handleClassify)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_neighbors",
		Description: "List the countries an invasion can spread to from a country",
	}, s.handleNeighbors)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_runs",
		Description: "List stored spread and bee forecast runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_spread",
		Description: "Simulate hornet spread from a supplied history or continue a stored run",
	}, s.handleSpread)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_bees",
		Description: "Forecast bee colony decline from a stored spread run and a bee history",
	}, s.handleBees)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hornet_graph",
		Description: "Render the adjacency graph in DOT or JSON, coloured by a stored run's stages",
	}, s.handleGraph)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         latestRunURI,
		Name:        "hornetcast-latest-run",
		Description: "Summary of the most recent stored spread forecast.",
		MIMEType:    "text/markdown",
	}, s.handleLatestRunResource)
}

// handleLatestRunResource summarises the newest spread run as markdown.
func (s *Server) handleLatestRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Latest Hornet Forecast\n\n")

	run, err := s.store.LatestRun(ctx, store.RunKindSpread)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		sb.WriteString("No stored spread runs yet. Run `hornet_spread` with `save: true`.\n")
	case err != nil:
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	default:
		events, err := s.store.InvasionEvents(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load invasion events: %w", err)
		}
		fmt.Fprintf(&sb, "Run `%s`, %d-%d, created %s.\n\n", run.ID, run.StartYear, run.EndYear, humanize.Time(run.CreatedAt))
		if len(events) == 0 {
			sb.WriteString("No new invasions.\n")
		}
		for _, e := range events {
			fmt.Fprintf(&sb, "- %d: %s invaded from %s (%s, %.5f hives/km2)\n",
				e.Year, e.Country, e.Source, e.SourceStage, e.SourceDensity)
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      latestRunURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleClassify implements the hornet_classify tool.
func (s *Server) handleClassify(ctx context.Context, req *sdk.CallToolRequest, args ClassifyInput) (_ *sdk.CallToolResult, _ ClassifyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("hornet_classify", start, retErr, "", sanitizeToolParams(map[string]interface{}{
			"density":    args.Density,
			"hive_count": args.HiveCount,
			"area_km2":   args.AreaKm2,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_classify"); err != nil {
		return nil, ClassifyOutput{}, err
	}

	density := args.Density
	if args.AreaKm2 > 0 {
		density = args.HiveCount / args.AreaKm2
	}
	if density < 0 {
		return nil, ClassifyOutput{}, fmt.Errorf("density must be non-negative, got %v", density)
	}

	stage := classify.ClassifyValue(density)
	return nil, ClassifyOutput{
		Density:            density,
		Stage:              int(stage),
		Label:              stage.String(),
		ExpandingThreshold: constants.ExpandingDensityThreshold,
		SaturatedThreshold: constants.SaturatedDensityThreshold,
	}, nil
}

// handleNeighbors implements the hornet_neighbors tool.
func (s *Server) handleNeighbors(ctx context.Context, req *sdk.CallToolRequest, args NeighborsInput) (_ *sdk.CallToolResult, _ NeighborsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("hornet_neighbors", start, retErr, "", sanitizeToolParams(map[string]interface{}{
			"country": args.Country,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_neighbors"); err != nil {
		return nil, NeighborsOutput{}, err
	}
	if strings.TrimSpace(args.Country) == "" {
		return nil, NeighborsOutput{}, fmt.Errorf("country is required")
	}

	country := countries.Canonical(args.Country)
	neighbors := s.graph.Neighbors(country)
	if neighbors == nil {
		neighbors = []string{}
	}
	return nil, NeighborsOutput{
		Country:   country,
		Known:     s.graph.Has(country),
		Neighbors: neighbors,
		Directed:  s.graph.Directed(),
	}, nil
}

// handleRuns implements the hornet_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("hornet_runs", start, retErr, "", sanitizeToolParams(map[string]interface{}{
			"kind":  args.Kind,
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	kind := store.RunKind(args.Kind)
	switch kind {
	case "", store.RunKindSpread, store.RunKindBees:
	default:
		return nil, RunsOutput{}, fmt.Errorf("unknown run kind %q (use 'spread' or 'bees')", args.Kind)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	runs, err := s.store.ListRuns(ctx, kind)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	total := len(runs)
	if len(runs) > limit {
		runs = runs[:limit]
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{
			ID:        r.ID,
			Kind:      string(r.Kind),
			ParentID:  r.ParentID,
			StartYear: r.StartYear,
			EndYear:   r.EndYear,
			RowCount:  r.RowCount,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Age:       humanize.Time(r.CreatedAt),
		}
	}
	return nil, RunsOutput{Runs: summaries, Count: len(summaries), Total: total}, nil
}

// handleSpread implements the hornet_spread tool.
func (s *Server) handleSpread(ctx context.Context, req *sdk.CallToolRequest, args SpreadInput) (_ *sdk.CallToolResult, _ SpreadOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		s.auditTool("hornet_spread", start, retErr, runID, sanitizeToolParams(map[string]interface{}{
			"history":      len(args.History),
			"from_run":     args.FromRun,
			"seed_year":    args.SeedYear,
			"horizon_year": args.HorizonYear,
			"save":         args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_spread"); err != nil {
		return nil, SpreadOutput{}, err
	}

	cfg := pipeline.SpreadConfig(s.settings)
	if args.HorizonYear != 0 {
		cfg.HorizonYear = args.HorizonYear
	}
	sim := spreading.NewSimulator(s.graph, s.areas, cfg)
	sim.SetLogger(s.logger, nil)

	// Step 1: Seed from the supplied history or a stored run.
	var (
		seed     spreading.State
		seedYear int
		params   = map[string]any{"source": "mcp", "horizon_year": cfg.HorizonYear}
	)
	switch {
	case len(args.History) > 0 && args.FromRun != "":
		return nil, SpreadOutput{}, fmt.Errorf("history and from_run are mutually exclusive")

	case len(args.History) > 0:
		history, err := historyRecords(args.History)
		if err != nil {
			return nil, SpreadOutput{}, err
		}
		if seed, seedYear, err = sim.Seed(history, args.SeedYear); err != nil {
			return nil, SpreadOutput{}, fmt.Errorf("failed to seed: %w", err)
		}

	case args.FromRun != "":
		run, err := s.resolveRun(ctx, args.FromRun, store.RunKindSpread)
		if err != nil {
			return nil, SpreadOutput{}, err
		}
		if seed, seedYear, err = s.resumeRun(ctx, run); err != nil {
			return nil, SpreadOutput{}, fmt.Errorf("failed to resume run %s: %w", run.ID, err)
		}
		params["from_run"] = run.ID

	default:
		return nil, SpreadOutput{}, fmt.Errorf("history or from_run is required")
	}

	if cfg.HorizonYear <= seedYear {
		return nil, SpreadOutput{}, fmt.Errorf("horizon year %d must be after the seed year %d", cfg.HorizonYear, seedYear)
	}
	if cfg.HorizonYear-seedYear > constants.MaxForecastYears {
		return nil, SpreadOutput{}, fmt.Errorf("horizon year %d is more than %d years after the seed year %d",
			cfg.HorizonYear, constants.MaxForecastYears, seedYear)
	}

	// Step 2: Simulate.
	fc, err := sim.Run(ctx, seed, seedYear)
	if err != nil {
		return nil, SpreadOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	out := SpreadOutput{
		StartYear: fc.StartYear,
		EndYear:   fc.EndYear,
		RowCount:  len(fc.Rows),
		Invasions: append([]models.InvasionEvent{}, fc.Events...),
		Final:     append([]models.SpreadRow{}, fc.ByYear(fc.EndYear)...),
	}

	// Step 3: Optionally store.
	if args.Save {
		run, err := s.store.SaveSpreadRun(ctx, store.SpreadRun{
			StartYear: fc.StartYear,
			EndYear:   fc.EndYear,
			Params:    params,
			Rows:      fc.Rows,
			Events:    fc.Events,
			Final:     fc.Final,
		})
		if err != nil {
			return nil, SpreadOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = run.ID
		runID = run.ID
	}

	out.Message = fmt.Sprintf("Simulated %d-%d: %s countries invaded, %s new invasion(s)",
		fc.StartYear+1, fc.EndYear, humanize.Comma(int64(len(fc.Final))), humanize.Comma(int64(len(fc.Events))))
	if out.RunID != "" {
		out.Message += fmt.Sprintf(", saved as %s", out.RunID)
	}
	s.logger.Info("mcp spread run", "from", fc.StartYear, "to", fc.EndYear, "invasions", len(fc.Events), "run_id", out.RunID)
	return nil, out, nil
}

// resumeRun returns the state a stored spread run ended in. Runs saved
// without their final state are rebuilt from the stored rows.
func (s *Server) resumeRun(ctx context.Context, run *store.Run) (spreading.State, int, error) {
	final, err := s.store.FinalState(ctx, run.ID)
	if err != nil {
		return nil, 0, err
	}
	if len(final) > 0 {
		return spreading.ResumeState(final, run.EndYear)
	}
	rows, err := s.store.SpreadRows(ctx, run.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load rows: %w", err)
	}
	return spreading.Resume(rows, s.areas)
}

// handleBees implements the hornet_bees tool.
func (s *Server) handleBees(ctx context.Context, req *sdk.CallToolRequest, args BeesInput) (_ *sdk.CallToolResult, _ BeesOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		s.auditTool("hornet_bees", start, retErr, runID, sanitizeToolParams(map[string]interface{}{
			"run_id":       args.RunID,
			"bee_history":  len(args.BeeHistory),
			"correlations": len(args.Correlations),
			"save":         args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_bees"); err != nil {
		return nil, BeesOutput{}, err
	}
	if len(args.BeeHistory) == 0 {
		return nil, BeesOutput{}, fmt.Errorf("bee_history is required")
	}

	// Step 1: Load the hornet trajectory.
	spread, err := s.resolveRun(ctx, args.RunID, store.RunKindSpread)
	if err != nil {
		return nil, BeesOutput{}, err
	}
	rows, err := s.store.SpreadRows(ctx, spread.ID)
	if err != nil {
		return nil, BeesOutput{}, fmt.Errorf("failed to load run %s: %w", spread.ID, err)
	}

	// Step 2: Forecast through the spread run's last year.
	cfg := pipeline.BeeConfig(s.settings)
	cfg.HorizonYear = spread.EndYear
	f := bees.NewForecaster(cfg)
	f.SetLogger(s.logger)

	seed, beeYear, err := f.Seed(beeRecords(args.BeeHistory), 0, s.areas)
	if err != nil {
		return nil, BeesOutput{}, fmt.Errorf("failed to seed bee forecast: %w", err)
	}
	beeRows, err := f.Forecast(ctx, seed, beeYear, bees.FromRows(rows), args.Correlations)
	if err != nil {
		return nil, BeesOutput{}, fmt.Errorf("bee forecast failed: %w", err)
	}

	out := BeesOutput{
		SpreadRunID: spread.ID,
		StartYear:   beeYear,
		EndYear:     spread.EndYear,
		RowCount:    len(beeRows),
		Final:       []models.BeeRow{},
	}
	for _, r := range beeRows {
		if r.Year == spread.EndYear {
			out.Final = append(out.Final, r)
		}
	}

	// Step 3: Optionally store, linked to the spread run.
	if args.Save {
		run, err := s.store.SaveBeeRun(ctx, store.BeeRun{
			ParentID:  spread.ID,
			StartYear: beeYear,
			EndYear:   spread.EndYear,
			Params:    map[string]any{"source": "mcp", "correlations": len(args.Correlations)},
			Rows:      beeRows,
		})
		if err != nil {
			return nil, BeesOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = run.ID
		runID = run.ID
	}

	out.Message = fmt.Sprintf("Forecast %s bee rows for %d countries from %d to %d",
		humanize.Comma(int64(len(beeRows))), len(seed), beeYear, spread.EndYear)
	return nil, out, nil
}

// handleGraph implements the hornet_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("hornet_graph", start, retErr, args.RunID, sanitizeToolParams(map[string]interface{}{
			"format": args.Format,
			"run_id": args.RunID,
			"year":   args.Year,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "hornet_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}
	f, err := visualization.ParseFormat(format)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	var snap *visualization.Snapshot
	if args.RunID != "" {
		run, err := s.resolveRun(ctx, args.RunID, store.RunKindSpread)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		rows, err := s.store.SpreadRows(ctx, run.ID)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("failed to load run %s: %w", run.ID, err)
		}
		events, err := s.store.InvasionEvents(ctx, run.ID)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("failed to load events of %s: %w", run.ID, err)
		}
		year := args.Year
		if year == 0 {
			year = run.EndYear
		}
		snap = visualization.NewSnapshot(year, rows, events)
	}

	edges := s.graph.EdgeCount()
	if !s.graph.Directed() {
		edges /= 2
	}
	out := GraphOutput{
		Format:    string(f),
		NodeCount: len(s.graph.Countries()),
		EdgeCount: edges,
	}
	if snap != nil {
		out.Year = snap.Year
	}
	switch f {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(s.graph, snap)
	default:
		out.Graph = visualization.RenderJSON(s.graph, snap)
	}
	return nil, out, nil
}

// resolveRun returns the run named by id, or the latest run of kind when
// id is empty or "latest".
func (s *Server) resolveRun(ctx context.Context, id string, kind store.RunKind) (*store.Run, error) {
	if id == "" || id == "latest" {
		run, err := s.store.LatestRun(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("no stored %s run: %w", kind, err)
		}
		return run, nil
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Kind != kind {
		return nil, fmt.Errorf("run %s is a %s run, want %s", id, run.Kind, kind)
	}
	return run, nil
}

// historyRecords converts supplied history into records for seeding.
func historyRecords(in []HistoryInput) ([]models.CountryYearRecord, error) {
	out := make([]models.CountryYearRecord, 0, len(in))
	for i, h := range in {
		stage := models.Stage(h.Stage)
		if h.Stage != 0 && !stage.Valid() {
			return nil, fmt.Errorf("history[%d]: stage must be 1-3, got %d", i, h.Stage)
		}
		if h.HiveDensity < 0 {
			return nil, fmt.Errorf("history[%d]: hive_density must be non-negative", i)
		}
		out = append(out, models.CountryYearRecord{
			Country:     h.Country,
			Year:        h.Year,
			HiveCount:   h.HiveDensity * h.AreaKm2,
			AreaKm2:     h.AreaKm2,
			HiveDensity: models.Float64Ptr(h.HiveDensity),
			FinalStage:  stage,
		})
	}
	return out, nil
}

// beeRecords converts supplied bee history into records for seeding.
func beeRecords(in []BeeInput) []models.BeeRecord {
	out := make([]models.BeeRecord, len(in))
	for i, b := range in {
		out[i] = models.BeeRecord{
			Country:    b.Country,
			Year:       b.Year,
			BeeDensity: b.BeeDensity,
			BeeCount:   b.BeeCount,
			AreaKm2:    b.AreaKm2,
		}
	}
	return out
}
