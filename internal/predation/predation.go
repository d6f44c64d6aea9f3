// Package predation turns predator sighting counts into a per-country
// predation score and applies it to hornet densities.
package predation

import (
	"math"
	"sort"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Sightings is the number of predator observations per species in one
// country.
type Sightings struct {
	Country string             `json:"country"`
	Species map[string]float64 `json:"species"`
}

// Total returns the sum over all species, ignoring non-finite counts.
func (s Sightings) Total() float64 {
	var total float64
	for _, n := range s.Species {
		if !math.IsNaN(n) && !math.IsInf(n, 0) {
			total += n
		}
	}
	return total
}

// Score is the predation pressure of one country.
type Score struct {
	Country string  `json:"country"`
	Total   float64 `json:"predator_total"`
	Score   float64 `json:"predation_score"`
}

// Scores min-max scales predator totals into [0, max]. Rows for the same
// country are summed. When every total is equal all scores are 0. The
// result is sorted by country.
func Scores(sightings []Sightings, max float64) []Score {
	if max <= 0 {
		max = constants.MaxPredationScore
	}

	totals := make(map[string]float64)
	for _, s := range sightings {
		totals[countries.Canonical(s.Country)] += s.Total()
	}
	if len(totals) == 0 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range totals {
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}

	out := make([]Score, 0, len(totals))
	for c, t := range totals {
		score := 0.0
		if hi > lo {
			score = (t - lo) / (hi - lo) * max
		}
		out = append(out, Score{Country: c, Total: t, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// Index returns the scores keyed by country.
func Index(scores []Score) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		out[s.Country] = s.Score
	}
	return out
}

// AdjustedRow is a forecast row with its predation-adjusted density.
type AdjustedRow struct {
	models.SpreadRow
	PredationScore  float64 `json:"predation_score"`
	AdjustedDensity float64 `json:"adjusted_hive_density"`
}

// Adjust applies density * (1 - score) to every row. Countries without a
// score are left unchanged.
func Adjust(rows []models.SpreadRow, scores map[string]float64) []AdjustedRow {
	out := make([]AdjustedRow, len(rows))
	for i, r := range rows {
		score := scores[countries.Canonical(r.Country)]
		out[i] = AdjustedRow{
			SpreadRow:       r,
			PredationScore:  score,
			AdjustedDensity: r.HiveDensity * (1 - score),
		}
	}
	return out
}

// Rows returns copies of the adjusted rows with HiveDensity replaced by the
// adjusted density, ready to feed the bee forecaster.
func Rows(adjusted []AdjustedRow) []models.SpreadRow {
	out := make([]models.SpreadRow, len(adjusted))
	for i, a := range adjusted {
		r := a.SpreadRow
		r.HiveDensity = a.AdjustedDensity
		out[i] = r
	}
	return out
}
