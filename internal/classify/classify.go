// Package classify turns hive densities into invasion stages and enforces
// that a country's stage never regresses over time.
package classify

import (
	"log/slog"
	"math"
	"sort"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Classify maps a hive density to its raw invasion stage.
// A nil (or NaN) density yields StageNone.
func Classify(density *float64) models.Stage {
	if density == nil || math.IsNaN(*density) {
		return models.StageNone
	}
	return ClassifyValue(*density)
}

// ClassifyValue maps a known density to its raw invasion stage.
func ClassifyValue(d float64) models.Stage {
	switch {
	case d < constants.ExpandingDensityThreshold:
		return models.StageNewlyInvaded
	case d < constants.SaturatedDensityThreshold:
		return models.StageExpanding
	default:
		return models.StageSaturated
	}
}

// EnforceProgression returns a copy of records sorted by (country, year)
// with FinalStage set so that it never decreases within a country.
//
// The running maximum per country starts at stage 1 on the first non-null
// observation. A null raw stage yields a null final stage and leaves the
// running maximum untouched. The input slice is not modified.
func EnforceProgression(records []models.CountryYearRecord) []models.CountryYearRecord {
	out := make([]models.CountryYearRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		return out[i].Year < out[j].Year
	})

	maxSoFar := make(map[string]models.Stage)
	for i := range out {
		raw := out[i].InvasionStage
		if raw == models.StageNone {
			out[i].FinalStage = models.StageNone
			continue
		}
		prev, ok := maxSoFar[out[i].Country]
		if !ok {
			prev = models.StageNewlyInvaded
		}
		locked := models.MaxStage(prev, raw)
		out[i].FinalStage = locked
		maxSoFar[out[i].Country] = locked
	}
	return out
}

// Builder computes hive densities from observations and classifies them.
type Builder struct {
	areas  countries.AreaProvider
	logger *slog.Logger
}

// NewBuilder creates a Builder resolving missing areas through areas.
func NewBuilder(areas countries.AreaProvider) *Builder {
	return &Builder{areas: areas}
}

// SetLogger sets the structured logger.
func (b *Builder) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

// BuildRecords converts observations into records with hive density and raw
// stage filled in. The observation's own area wins over the AreaProvider;
// when neither is known the density (and stage) stay null.
func (b *Builder) BuildRecords(obs []models.HiveObservation) []models.CountryYearRecord {
	records := make([]models.CountryYearRecord, 0, len(obs))
	missing := 0
	for _, o := range obs {
		rec := models.CountryYearRecord{
			Country:   countries.Canonical(o.Country),
			Year:      o.Year,
			HiveCount: o.HiveCount,
			AreaKm2:   o.AreaKm2,
		}
		if rec.AreaKm2 <= 0 && b.areas != nil {
			if a, ok := b.areas.Area(rec.Country); ok {
				rec.AreaKm2 = a
			}
		}
		if rec.AreaKm2 > 0 && !math.IsInf(rec.AreaKm2, 0) {
			rec.HiveDensity = models.Float64Ptr(rec.HiveCount / rec.AreaKm2)
		} else {
			missing++
		}
		rec.InvasionStage = Classify(rec.HiveDensity)
		records = append(records, rec)
	}
	if b.logger != nil {
		if missing > 0 {
			b.logger.Warn("records have missing area values", "missing", missing, "total", len(obs))
		} else {
			b.logger.Debug("all hive records matched with area data", "total", len(obs))
		}
	}
	return records
}

// Stage builds records from observations, classifies them and enforces
// monotonic progression.
func (b *Builder) Stage(obs []models.HiveObservation) []models.CountryYearRecord {
	return EnforceProgression(b.BuildRecords(obs))
}

// Reclassify recomputes raw and final stages for records that already carry
// a density, for example a history table whose stage column is missing.
func Reclassify(records []models.CountryYearRecord) []models.CountryYearRecord {
	out := make([]models.CountryYearRecord, len(records))
	for i, r := range records {
		r.InvasionStage = Classify(r.HiveDensity)
		out[i] = r
	}
	return EnforceProgression(out)
}
