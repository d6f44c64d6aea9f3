// Package analysis derives descriptive statistics from staged historical
// records: when each country was first invaded, which neighbor most likely
// carried the invasion there, and how density grows with years spent in a
// stage.
package analysis

import (
	"sort"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/models"
)

// FirstInvasion is the first year a country carries a stage.
type FirstInvasion struct {
	Country string `json:"country"`
	Year    int    `json:"year"`
}

// SpreadEvent is the inferred direction of an historical invasion.
type SpreadEvent struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	Year            int     `json:"year"`
	DensityAtSpread float64 `json:"density_at_spread"`
	HivesAtSpread   float64 `json:"hives_at_spread"`
}

// StageYearStat averages density and hive count over every country at a
// given stage and year within that stage.
type StageYearStat struct {
	Stage      models.Stage `json:"stage"`
	StageYear  int          `json:"stage_year"`
	AvgDensity float64      `json:"avg_density"`
	AvgHives   float64      `json:"avg_hives"`
	Countries  int          `json:"num_countries"`
}

// Report bundles every analysis.
type Report struct {
	FirstInvasions []FirstInvasion `json:"first_invasions"`
	SpreadEvents   []SpreadEvent   `json:"spread_events"`
	StageYears     []StageYearStat `json:"stage_years"`
}

// Analyze runs every analysis over records.
func Analyze(records []models.CountryYearRecord, graph *adjacency.Graph) Report {
	return Report{
		FirstInvasions: FirstInvasions(records),
		SpreadEvents:   SpreadEvents(records, graph),
		StageYears:     StageYearSummary(records),
	}
}

// FirstInvasions returns, per country, the earliest year with a non-null
// final stage, ordered by year then country.
func FirstInvasions(records []models.CountryYearRecord) []FirstInvasion {
	first := make(map[string]int)
	for _, r := range records {
		if r.FinalStage == models.StageNone {
			continue
		}
		if y, ok := first[r.Country]; !ok || r.Year < y {
			first[r.Country] = r.Year
		}
	}

	out := make([]FirstInvasion, 0, len(first))
	for c, y := range first {
		out = append(out, FirstInvasion{Country: c, Year: y})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// SpreadEvents infers, for every invaded country, the neighbor it was most
// likely invaded from. A candidate parent was invaded strictly earlier,
// lists the country as a neighbor, and has a record with a known density
// in the year before. The parent with the highest density wins; ties go to
// the smallest name.
func SpreadEvents(records []models.CountryYearRecord, graph *adjacency.Graph) []SpreadEvent {
	type key struct {
		country string
		year    int
	}
	byKey := make(map[key]models.CountryYearRecord, len(records))
	for _, r := range records {
		k := key{r.Country, r.Year}
		if _, dup := byKey[k]; !dup {
			byKey[k] = r
		}
	}

	first := FirstInvasions(records)
	var events []SpreadEvent
	for _, child := range first {
		var best *SpreadEvent
		for _, parent := range first {
			if parent.Year >= child.Year {
				break
			}
			if !contains(graph.Neighbors(parent.Country), child.Country) {
				continue
			}
			rec, ok := byKey[key{parent.Country, child.Year - 1}]
			if !ok {
				continue
			}
			d, ok := rec.Density()
			if !ok {
				continue
			}
			if best == nil || d > best.DensityAtSpread || (d == best.DensityAtSpread && parent.Country < best.From) {
				best = &SpreadEvent{
					From:            parent.Country,
					To:              child.Country,
					Year:            child.Year,
					DensityAtSpread: d,
					HivesAtSpread:   rec.HiveCount,
				}
			}
		}
		if best != nil {
			events = append(events, *best)
		}
	}
	return events
}

// StageYearSummary groups records by (final stage, stage year), where the
// stage year is the dense rank of the year among a country's years in that
// stage. Records with a null stage are ignored, as are unknown densities in
// the density average.
func StageYearSummary(records []models.CountryYearRecord) []StageYearStat {
	type group struct {
		country string
		stage   models.Stage
	}
	years := make(map[group][]int)
	for _, r := range records {
		if r.FinalStage == models.StageNone {
			continue
		}
		g := group{r.Country, r.FinalStage}
		years[g] = append(years[g], r.Year)
	}
	rank := make(map[group]map[int]int, len(years))
	for g, ys := range years {
		sort.Ints(ys)
		rank[g] = make(map[int]int)
		n := 0
		for i, y := range ys {
			if i == 0 || y != ys[i-1] {
				n++
			}
			rank[g][y] = n
		}
	}

	type cell struct {
		stage     models.Stage
		stageYear int
	}
	type acc struct {
		densitySum float64
		densityN   int
		hiveSum    float64
		hiveN      int
		countries  map[string]bool
	}
	cells := make(map[cell]*acc)
	for _, r := range records {
		if r.FinalStage == models.StageNone {
			continue
		}
		c := cell{r.FinalStage, rank[group{r.Country, r.FinalStage}][r.Year]}
		a := cells[c]
		if a == nil {
			a = &acc{countries: make(map[string]bool)}
			cells[c] = a
		}
		if d, ok := r.Density(); ok {
			a.densitySum += d
			a.densityN++
		}
		a.hiveSum += r.HiveCount
		a.hiveN++
		a.countries[r.Country] = true
	}

	out := make([]StageYearStat, 0, len(cells))
	for c, a := range cells {
		s := StageYearStat{Stage: c.stage, StageYear: c.stageYear, Countries: len(a.countries)}
		if a.densityN > 0 {
			s.AvgDensity = models.Round(a.densitySum/float64(a.densityN), 5)
		}
		if a.hiveN > 0 {
			s.AvgHives = models.Round(a.hiveSum/float64(a.hiveN), 1)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].StageYear < out[j].StageYear
	})
	return out
}

func contains(list []string, s string) bool {
	i := sort.SearchStrings(list, s)
	return i < len(list) && list[i] == s
}
