package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/hornetcast/internal/bees"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/spreading"
	"github.com/nvandessel/hornetcast/internal/store"
)

// Runner orchestrates scenario runs against the real simulator and a real
// run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.Open(filepath.Join(tmpDir, store.DefaultDBName))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	// Phase 1: Build the simulator.
	cfg := spreading.DefaultConfig()
	if scenario.SpreadConfig != nil {
		cfg = *scenario.SpreadConfig
	}
	graph := scenario.graph()
	areas := scenario.areas()
	sim := spreading.NewSimulator(graph, areas, cfg)

	// Phase 2: Seed and simulate.
	history := scenario.records()
	seed, seedYear, err := sim.Seed(history, scenario.SeedYear)
	if err != nil {
		r.t.Fatalf("Run(%s): seed: %v", scenario.Name, err)
	}
	forecast, err := sim.Run(ctx, seed, seedYear)
	if err != nil {
		r.t.Fatalf("Run(%s): simulate: %v", scenario.Name, err)
	}

	// Phase 3: Store and read back.
	run, err := r.store.SaveSpreadRun(ctx, store.SpreadRun{
		StartYear: forecast.StartYear,
		EndYear:   forecast.EndYear,
		Params:    map[string]any{"scenario": scenario.Name},
		Rows:      forecast.Rows,
		Events:    forecast.Events,
		Final:     forecast.Final,
	})
	if err != nil {
		r.t.Fatalf("Run(%s): save spread run: %v", scenario.Name, err)
	}
	stored, err := r.store.SpreadRows(ctx, run.ID)
	if err != nil {
		r.t.Fatalf("Run(%s): read spread rows: %v", scenario.Name, err)
	}

	result := SimulationResult{
		Name:       scenario.Name,
		Graph:      graph,
		Areas:      areas,
		Config:     sim.Config(),
		Seed:       seed,
		SeedYear:   seedYear,
		Forecast:   forecast,
		SpreadRun:  run,
		StoredRows: stored,
		Store:      r.store,
	}

	// Phase 4: Optional bee forecast on history + forecast.
	if len(scenario.Bees) > 0 {
		r.runBees(ctx, scenario, history, &result)
	}

	return result
}

func (r *Runner) runBees(ctx context.Context, scenario Scenario, history []models.CountryYearRecord, result *SimulationResult) {
	r.t.Helper()

	beeCfg := bees.DefaultConfig()
	if scenario.BeeConfig != nil {
		beeCfg = *scenario.BeeConfig
	}
	beeCfg.HorizonYear = result.Config.HorizonYear
	f := bees.NewForecaster(beeCfg)

	beeSeed, beeYear, err := f.Seed(scenario.Bees, 0, result.Areas)
	if err != nil {
		r.t.Fatalf("Run(%s): bee seed: %v", scenario.Name, err)
	}
	hornets := bees.Combine(history, result.StoredRows, result.SeedYear)
	rows, err := f.Forecast(ctx, beeSeed, beeYear, hornets, scenario.Correlations)
	if err != nil {
		r.t.Fatalf("Run(%s): bee forecast: %v", scenario.Name, err)
	}

	run, err := r.store.SaveBeeRun(ctx, store.BeeRun{
		ParentID:  result.SpreadRun.ID,
		StartYear: beeYear,
		EndYear:   beeCfg.HorizonYear,
		Rows:      rows,
	})
	if err != nil {
		r.t.Fatalf("Run(%s): save bee run: %v", scenario.Name, err)
	}
	stored, err := r.store.BeeRows(ctx, run.ID)
	if err != nil {
		r.t.Fatalf("Run(%s): read bee rows: %v", scenario.Name, err)
	}
	result.Bees = stored
	result.BeeRun = &run
}
