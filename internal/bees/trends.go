package bees

import (
	"log/slog"
	"sort"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Trends converts raw colony counts into bee densities with year-over-year
// growth. Countries without a known area are left out. Growth is nil for a
// country's first year and whenever the previous density is 0.
func Trends(colonies []models.BeeColonyRecord, areas countries.AreaProvider, logger *slog.Logger) []models.BeeTrend {
	out := make([]models.BeeTrend, 0, len(colonies))
	missing := make(map[string]bool)
	for _, c := range colonies {
		name := countries.Canonical(c.Country)
		area, ok := 0.0, false
		if areas != nil {
			area, ok = areas.Area(name)
		}
		if !ok || area <= 0 || !finite(c.Colonies) {
			missing[name] = true
			continue
		}
		out = append(out, models.BeeTrend{BeeRecord: models.BeeRecord{
			Country:    name,
			Year:       c.Year,
			BeeDensity: c.Colonies / area,
			BeeCount:   c.Colonies,
			AreaKm2:    area,
		}})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Year < out[j].Year
	})
	for i := range out {
		if i == 0 || out[i-1].Country != out[i].Country || out[i-1].BeeDensity == 0 {
			continue
		}
		g := models.Round((out[i].BeeDensity-out[i-1].BeeDensity)/out[i-1].BeeDensity, constants.GrowthDecimals)
		out[i].Growth = &g
	}

	if len(missing) > 0 && logger != nil {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		logger.Warn("bee colonies without area skipped", "countries", names)
	}
	return out
}

// Records returns the BeeRecord part of trends.
func Records(trends []models.BeeTrend) []models.BeeRecord {
	out := make([]models.BeeRecord, len(trends))
	for i, t := range trends {
		out[i] = t.BeeRecord
	}
	return out
}
