package spreading

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/hornetcast/internal/classify"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// ErrEmptySeed is returned when the historical table yields no country to
// start the simulation from.
var ErrEmptySeed = errors.New("no countries to seed the simulation")

// Seed builds the initial State from the historical records of seedYear.
// When seedYear is 0 the last year present in history is used. It returns
// the state and the year it was taken from.
//
// Each country gets its final stage (or the stage classified from its
// density when the stored stage is null), its density, its area (the
// record's own area, else the simulator's AreaProvider) and StageYear 1.
// Countries with neither a stage nor a density are skipped.
func (s *Simulator) Seed(history []models.CountryYearRecord, seedYear int) (State, int, error) {
	if len(history) == 0 {
		return nil, 0, ErrEmptySeed
	}

	// Step 1: Resolve the seed year.
	if seedYear == 0 {
		for _, r := range history {
			if r.Year > seedYear {
				seedYear = r.Year
			}
		}
	}

	// Step 2: Seed every country present that year.
	state := make(State)
	skipped := 0
	for _, r := range history {
		if r.Year != seedYear {
			continue
		}
		country := countries.Canonical(r.Country)

		stage := r.FinalStage
		if !stage.Valid() {
			stage = classify.Classify(r.HiveDensity)
		}
		if !stage.Valid() {
			skipped++
			continue
		}

		density, _ := r.Density()
		area := r.AreaKm2
		if area <= 0 && s.areas != nil {
			if a, ok := s.areas.Area(country); ok {
				area = a
			}
		}
		if !finite(density) {
			density = 0
		}
		if !finite(area) {
			area = 0
		}

		state[country] = models.CountryState{
			Stage:       stage,
			StageYear:   1,
			HiveDensity: density,
			AreaKm2:     area,
		}
	}

	if len(state) == 0 {
		return nil, seedYear, fmt.Errorf("seed year %d: %w", seedYear, ErrEmptySeed)
	}
	if skipped > 0 {
		s.logger.Warn("skipped seed records without stage or density", "year", seedYear, "skipped", skipped)
	}
	s.logger.Info("seeded simulation", "year", seedYear, "countries", len(state))
	return state, seedYear, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ResumeState continues from the exact state a stored run ended in at year.
// Continuing from it reproduces an uninterrupted run.
func ResumeState(final map[string]models.CountryState, year int) (State, int, error) {
	state := make(State, len(final))
	for c, cs := range final {
		if !cs.Stage.Valid() {
			continue
		}
		state[countries.Canonical(c)] = cs
	}
	if len(state) == 0 {
		return nil, year, fmt.Errorf("resume: %w", ErrEmptySeed)
	}
	return state, year, nil
}

// Resume rebuilds the state of the last year in rows, a stored forecast,
// so a simulation can continue from it. The rows carry rounded densities,
// so prefer ResumeState when the run's final state is available. Stage years are kept. Areas come
// from areas, else from hive count over density. It returns the state and
// the year it was taken from.
func Resume(rows []models.SpreadRow, areas countries.AreaProvider) (State, int, error) {
	last := 0
	for _, r := range rows {
		if r.Year > last {
			last = r.Year
		}
	}

	state := make(State)
	for _, r := range rows {
		if r.Year != last || !r.Stage.Valid() {
			continue
		}
		country := countries.Canonical(r.Country)
		area := 0.0
		if areas != nil {
			area, _ = areas.Area(country)
		}
		if area <= 0 && r.HiveDensity > 0 {
			area = float64(r.HiveCount) / r.HiveDensity
		}
		stageYear := r.StageYear
		if stageYear < 1 {
			stageYear = 1
		}
		state[country] = models.CountryState{
			Stage:       r.Stage,
			StageYear:   stageYear,
			HiveDensity: r.HiveDensity,
			AreaKm2:     area,
		}
	}

	if len(state) == 0 {
		return nil, last, fmt.Errorf("resume: %w", ErrEmptySeed)
	}
	return state, last, nil
}
