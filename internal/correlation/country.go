package correlation

import (
	"math"
	"sort"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Point is one (country, year) where both hornet and bee data exist.
type Point struct {
	Country       string
	Year          int
	HornetDensity float64
	HornetCount   float64
	BeeGrowth     float64
}

// Result is the correlation of one country. CountR and CountP are nil when
// the hive count has no variance, for example when counts were not supplied.
type Result struct {
	Country  string   `json:"country"`
	DensityR float64  `json:"density_vs_bee_growth_r"`
	DensityP float64  `json:"density_p_value"`
	CountR   *float64 `json:"count_vs_bee_growth_r,omitempty"`
	CountP   *float64 `json:"count_p_value,omitempty"`
	Points   int      `json:"data_points"`
}

// Join inner-joins hornet records with bee trends on (country, year).
// Pairs with an unknown hornet density or bee growth are dropped.
func Join(hornets []models.CountryYearRecord, trends []models.BeeTrend) []Point {
	type key struct {
		country string
		year    int
	}
	growth := make(map[key]float64, len(trends))
	for _, t := range trends {
		if t.Growth == nil || math.IsNaN(*t.Growth) || math.IsInf(*t.Growth, 0) {
			continue
		}
		growth[key{countries.Canonical(t.Country), t.Year}] = *t.Growth
	}

	var out []Point
	for _, h := range hornets {
		d, ok := h.Density()
		if !ok || math.IsNaN(d) {
			continue
		}
		k := key{countries.Canonical(h.Country), h.Year}
		g, ok := growth[k]
		if !ok {
			continue
		}
		out = append(out, Point{
			Country:       k.country,
			Year:          h.Year,
			HornetDensity: d,
			HornetCount:   h.HiveCount,
			BeeGrowth:     g,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// ByCountry correlates hornet density and hornet count with bee growth for
// every country with at least minPoints pairs. Countries whose density
// correlation is undefined are omitted. Coefficients and p-values are
// rounded to 4 decimals; results are sorted by density coefficient.
func ByCountry(points []Point, minPoints int) []Result {
	if minPoints <= 0 {
		minPoints = constants.MinCorrelationPoints
	}

	grouped := make(map[string][]Point)
	for _, p := range points {
		grouped[p.Country] = append(grouped[p.Country], p)
	}

	var out []Result
	for country, ps := range grouped {
		if len(ps) < minPoints {
			continue
		}
		density := make([]float64, len(ps))
		count := make([]float64, len(ps))
		bee := make([]float64, len(ps))
		for i, p := range ps {
			density[i], count[i], bee[i] = p.HornetDensity, p.HornetCount, p.BeeGrowth
		}

		rd, pd, ok := Pearson(density, bee)
		if !ok {
			continue
		}
		res := Result{
			Country:  country,
			DensityR: models.Round(rd, 4),
			DensityP: models.Round(pd, 4),
			Points:   len(ps),
		}
		if rc, pc, ok := Pearson(count, bee); ok {
			res.CountR = models.Float64Ptr(models.Round(rc, 4))
			res.CountP = models.Float64Ptr(models.Round(pc, 4))
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DensityR != out[j].DensityR {
			return out[i].DensityR < out[j].DensityR
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// Coefficients returns the density coefficient per country, the form the
// bee forecaster consumes.
func Coefficients(results []Result) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, r := range results {
		if !math.IsNaN(r.DensityR) {
			out[r.Country] = r.DensityR
		}
	}
	return out
}
