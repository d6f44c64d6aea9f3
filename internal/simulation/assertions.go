package simulation

import (
	"math"
	"sort"
	"testing"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/models"
)

// sortedYears returns the years of result in ascending order.
func sortedYears(years map[int]map[string]models.SpreadRow) []int {
	out := make([]int, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// AssertMonotonicStages asserts that no country's stage ever decreases and
// that no invaded country disappears.
func AssertMonotonicStages(t *testing.T, result SimulationResult) {
	t.Helper()
	years := result.Years()
	ys := sortedYears(years)
	for i := 1; i < len(ys); i++ {
		prev, cur := years[ys[i-1]], years[ys[i]]
		for country, p := range prev {
			c, ok := cur[country]
			if !ok {
				t.Errorf("AssertMonotonicStages: %s present in %d but missing in %d", country, ys[i-1], ys[i])
				continue
			}
			if c.Stage < p.Stage {
				t.Errorf("AssertMonotonicStages: %s regressed from stage %d to %d in %d", country, p.Stage, c.Stage, ys[i])
			}
		}
	}
}

// AssertStageYearResets asserts that stage_year is 1 in the year a country
// changes stage and increments by one otherwise.
func AssertStageYearResets(t *testing.T, result SimulationResult) {
	t.Helper()
	years := result.Years()
	ys := sortedYears(years)
	for i := 1; i < len(ys); i++ {
		prev, cur := years[ys[i-1]], years[ys[i]]
		for country, c := range cur {
			p, ok := prev[country]
			if !ok {
				if c.StageYear != 1 {
					t.Errorf("AssertStageYearResets: newly invaded %s has stage_year %d in %d, want 1", country, c.StageYear, ys[i])
				}
				continue
			}
			want := p.StageYear + 1
			if c.Stage != p.Stage {
				want = 1
			}
			if c.StageYear != want {
				t.Errorf("AssertStageYearResets: %s stage_year %d in %d, want %d (stage %d -> %d)",
					country, c.StageYear, ys[i], want, p.Stage, c.Stage)
			}
		}
	}
}

// AssertNoSpontaneousInvasion asserts that every country first appearing in
// a year had a neighbor at stage 2 or higher in the previous year.
func AssertNoSpontaneousInvasion(t *testing.T, result SimulationResult) {
	t.Helper()
	years := result.Years()
	ys := sortedYears(years)
	for i := 1; i < len(ys); i++ {
		prev, cur := years[ys[i-1]], years[ys[i]]
		for country := range cur {
			if _, ok := prev[country]; ok {
				continue
			}
			qualified := false
			for _, n := range result.Graph.Neighbors(country) {
				if p, ok := prev[n]; ok && p.Stage >= models.StageExpanding {
					qualified = true
					break
				}
			}
			if !qualified {
				t.Errorf("AssertNoSpontaneousInvasion: %s invaded in %d without a stage 2+ neighbor", country, ys[i])
			}
		}
	}
}

// AssertInvasionSeed asserts that every invaded country enters at stage 1,
// stage_year 1, with exactly SeedHives / area hives per km².
func AssertInvasionSeed(t *testing.T, result SimulationResult) {
	t.Helper()
	years := result.Years()
	for _, e := range result.Forecast.Events {
		row, ok := years[e.Year][e.Country]
		if !ok {
			t.Errorf("AssertInvasionSeed: no row for invaded %s in %d", e.Country, e.Year)
			continue
		}
		area, ok := result.Areas.Area(e.Country)
		if !ok {
			t.Errorf("AssertInvasionSeed: %s invaded without an area", e.Country)
			continue
		}
		want := models.Round(result.Config.SeedHives/area, constants.SpreadDensityDecimals)
		if row.Stage != models.StageNewlyInvaded || row.StageYear != 1 {
			t.Errorf("AssertInvasionSeed: %s entered at stage %d year %d, want 1/1", e.Country, row.Stage, row.StageYear)
		}
		if row.HiveDensity != want {
			t.Errorf("AssertInvasionSeed: %s seed density %.7f, want %.7f", e.Country, row.HiveDensity, want)
		}
	}
}

// AssertInvadedBy asserts that country is invaded exactly in year.
func AssertInvadedBy(t *testing.T, result SimulationResult, country string, year int) {
	t.Helper()
	got, ok := result.Forecast.InvasionYear(country)
	if !ok {
		t.Errorf("AssertInvadedBy: %s never invaded, want %d", country, year)
		return
	}
	if got != year {
		t.Errorf("AssertInvadedBy: %s invaded in %d, want %d", country, got, year)
	}
}

// AssertNeverInvaded asserts that country has no forecast row.
func AssertNeverInvaded(t *testing.T, result SimulationResult, country string) {
	t.Helper()
	for _, r := range result.StoredRows {
		if r.Country == country {
			t.Errorf("AssertNeverInvaded: %s has a row in %d", country, r.Year)
			return
		}
	}
}

// AssertStoredMatchesForecast asserts that the stored rows equal the
// in-memory forecast rows.
func AssertStoredMatchesForecast(t *testing.T, result SimulationResult) {
	t.Helper()
	if len(result.StoredRows) != len(result.Forecast.Rows) {
		t.Fatalf("AssertStoredMatchesForecast: stored %d rows, forecast has %d", len(result.StoredRows), len(result.Forecast.Rows))
	}
	for i, want := range result.Forecast.Rows {
		if result.StoredRows[i] != want {
			t.Errorf("AssertStoredMatchesForecast: row %d = %+v, want %+v", i, result.StoredRows[i], want)
		}
	}
}

// AssertBeeDeclineCapped asserts that no country loses more than the cap
// fraction of its bee density in one year and that density stays
// non-negative. Rounded densities are compared with a tolerance of one unit
// in the last place.
func AssertBeeDeclineCapped(t *testing.T, result SimulationResult, capFraction float64) {
	t.Helper()
	tol := math.Pow(10, -constants.BeeDensityDecimals)
	for i, r := range result.Bees {
		if r.BeeDensity < 0 {
			t.Errorf("AssertBeeDeclineCapped: %s %d negative density %v", r.Country, r.Year, r.BeeDensity)
		}
		if i == 0 || result.Bees[i-1].Country != r.Country {
			continue
		}
		prev := result.Bees[i-1].BeeDensity
		if r.BeeDensity < (1-capFraction)*prev-tol {
			t.Errorf("AssertBeeDeclineCapped: %s %d fell from %v to %v (cap %.2f)", r.Country, r.Year, prev, r.BeeDensity, capFraction)
		}
		if r.BeeDensity > prev+tol {
			t.Errorf("AssertBeeDeclineCapped: %s %d rose from %v to %v", r.Country, r.Year, prev, r.BeeDensity)
		}
	}
}
