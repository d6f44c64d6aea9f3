package simulation

import (
	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/bees"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/spreading"
	"github.com/nvandessel/hornetcast/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Adjacency is the neighbor table. Nil uses the built-in European table.
	Adjacency map[string][]string
	Directed  bool

	// Areas maps country to km². Countries without an area cannot be invaded.
	Areas map[string]float64

	// History is the historical state; the latest year (or SeedYear) seeds the run.
	History  []CountrySpec
	SeedYear int

	// SpreadConfig overrides the simulator defaults when non-nil.
	SpreadConfig *spreading.Config

	// Bees, when non-empty, runs the bee forecaster on the combined hornet series.
	Bees         []models.BeeRecord
	Correlations map[string]float64
	BeeConfig    *bees.Config
}

// CountrySpec is a flat builder for a historical country-year record.
type CountrySpec struct {
	Country string
	Year    int
	Stage   models.Stage
	Density float64
	Hives   float64
}

// ToRecord converts a CountrySpec into a CountryYearRecord. A zero Stage is
// left to the classifier.
func (c CountrySpec) ToRecord() models.CountryYearRecord {
	return models.CountryYearRecord{
		Country:       c.Country,
		Year:          c.Year,
		HiveCount:     c.Hives,
		HiveDensity:   models.Float64Ptr(c.Density),
		InvasionStage: c.Stage,
		FinalStage:    c.Stage,
	}
}

func (s Scenario) graph() *adjacency.Graph {
	opts := adjacency.Options{Directed: s.Directed}
	if s.Adjacency == nil {
		return adjacency.Default(opts)
	}
	return adjacency.New(s.Adjacency, opts)
}

func (s Scenario) areas() countries.AreaTable {
	return countries.NewAreaTable(s.Areas)
}

func (s Scenario) records() []models.CountryYearRecord {
	out := make([]models.CountryYearRecord, len(s.History))
	for i, c := range s.History {
		out[i] = c.ToRecord()
	}
	return out
}

// SimulationResult captures a scenario run and the stored copy of it.
type SimulationResult struct {
	Name      string
	Graph     *adjacency.Graph
	Areas     countries.AreaTable
	Config    spreading.Config
	Seed      spreading.State
	SeedYear  int
	Forecast  *spreading.Forecast
	Bees      []models.BeeRow
	SpreadRun store.Run
	BeeRun    *store.Run

	// StoredRows are the spread rows read back from the store.
	StoredRows []models.SpreadRow
	Store      *store.SQLiteStore
}

// Years returns the rows of the stored forecast grouped by year, seed year
// included as the rows derived from Seed.
func (r SimulationResult) Years() map[int]map[string]models.SpreadRow {
	out := make(map[int]map[string]models.SpreadRow)
	seed := make(map[string]models.SpreadRow, len(r.Seed))
	for c, s := range r.Seed {
		seed[c] = models.SpreadRow{Year: r.SeedYear, Country: c, Stage: s.Stage, StageYear: s.StageYear, HiveDensity: s.HiveDensity}
	}
	out[r.SeedYear] = seed
	for _, row := range r.StoredRows {
		if out[row.Year] == nil {
			out[row.Year] = make(map[string]models.SpreadRow)
		}
		out[row.Year][row.Country] = row
	}
	return out
}
