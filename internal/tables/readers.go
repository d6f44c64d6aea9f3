package tables

import (
	"fmt"
	"io"
	"sort"

	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/predation"
)

// Column aliases accepted by the readers.
var (
	countryCols   = []string{"country", "admin", "country_name"}
	yearCols      = []string{"year"}
	hiveCountCols = []string{"hive_count", "hornet_count", "count", "estimated_hives_without_weighting"}
	areaCols      = []string{"area_km2", "area", "shapefile_area_km2"}
	densityCols   = []string{"hive_density", "hornet_density"}
	stageCols     = []string{"stage", "final_stage"}
	corrCols      = []string{"r", "density_vs_beegrowth_r", "density_vs_bee_growth_r"}
	beeCountCols  = []string{"bee_count", "honey_bee_colonies", "colonies"}
)

// ReadObservations reads aggregated hive counts
// (country, year, hive_count, optional area_km2).
func ReadObservations(r io.Reader, name string) ([]models.HiveObservation, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	yc, err := t.require(yearCols...)
	if err != nil {
		return nil, err
	}
	hc, err := t.require(hiveCountCols...)
	if err != nil {
		return nil, err
	}
	ac, _ := t.column(areaCols...)

	out := make([]models.HiveObservation, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var o models.HiveObservation
		if o.Country, err = t.country(row, cc, line); err != nil {
			return nil, err
		}
		if o.Year, err = t.year(row, yc, line); err != nil {
			return nil, err
		}
		count, ok, err := t.float(row, hc, line)
		if err != nil {
			return nil, err
		}
		if !ok {
			count = 0
		}
		o.HiveCount = count
		if area, ok, err := t.float(row, ac, line); err != nil {
			return nil, err
		} else if ok {
			o.AreaKm2 = area
		}
		o.Country = countries.Canonical(o.Country)
		out = append(out, o)
	}
	return out, nil
}

// ReadHistory reads a staged history table
// (country, year, hive_count, area_km2, hive_density, stage). Besides
// country and year it needs a density, a stage, or both count and area to
// seed from. A missing density is derived from count and area when both are
// present. A missing stage column leaves FinalStage unset.
func ReadHistory(r io.Reader, name string) ([]models.CountryYearRecord, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	yc, err := t.require(yearCols...)
	if err != nil {
		return nil, err
	}
	hc, _ := t.column(hiveCountCols...)
	ac, _ := t.column(areaCols...)
	dc, _ := t.column(densityCols...)
	sc, _ := t.column(stageCols...)
	rc, _ := t.column("invasion_stage")
	if dc < 0 && sc < 0 && rc < 0 && (hc < 0 || ac < 0) {
		return nil, fmt.Errorf("%s: %w %q (or %q, or %q with %q)",
			name, ErrMissingColumn, densityCols[0], stageCols[0], hiveCountCols[0], areaCols[0])
	}

	out := make([]models.CountryYearRecord, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var rec models.CountryYearRecord
		if rec.Country, err = t.country(row, cc, line); err != nil {
			return nil, err
		}
		rec.Country = countries.Canonical(rec.Country)
		if rec.Year, err = t.year(row, yc, line); err != nil {
			return nil, err
		}

		count, hasCount, err := t.float(row, hc, line)
		if err != nil {
			return nil, err
		}
		if hasCount {
			rec.HiveCount = count
		}
		area, hasArea, err := t.float(row, ac, line)
		if err != nil {
			return nil, err
		}
		if hasArea {
			rec.AreaKm2 = area
		}
		density, hasDensity, err := t.float(row, dc, line)
		if err != nil {
			return nil, err
		}
		switch {
		case hasDensity:
			rec.HiveDensity = models.Float64Ptr(density)
		case hasCount && hasArea && area > 0:
			rec.HiveDensity = models.Float64Ptr(count / area)
		}

		if rec.FinalStage, err = parseStage(t, row, sc, line); err != nil {
			return nil, err
		}
		if rec.InvasionStage, err = parseStage(t, row, rc, line); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseStage(t *table, row []string, col int, line int) (models.Stage, error) {
	if col < 0 {
		return models.StageNone, nil
	}
	s, err := models.ParseStage(cell(row, col))
	if err != nil {
		return models.StageNone, fmt.Errorf("%s line %d: %w: %v", t.name, line, ErrBadValue, err)
	}
	return s, nil
}

// ReadAreas reads a country area table (country, area_km2).
func ReadAreas(r io.Reader, name string) (countries.AreaTable, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	ac, err := t.require(areaCols...)
	if err != nil {
		return nil, err
	}

	areas := make(countries.AreaTable, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		c, err := t.country(row, cc, line)
		if err != nil {
			return nil, err
		}
		a, ok, err := t.float(row, ac, line)
		if err != nil {
			return nil, err
		}
		if ok {
			areas.Set(c, a)
		}
	}
	return areas, nil
}

// ReadCorrelations reads per-country coefficients (country, r). Null
// coefficients are dropped.
func ReadCorrelations(r io.Reader, name string) (map[string]float64, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	rc, err := t.require(corrCols...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		c, err := t.country(row, cc, line)
		if err != nil {
			return nil, err
		}
		v, ok, err := t.float(row, rc, line)
		if err != nil {
			return nil, err
		}
		if ok {
			out[countries.Canonical(c)] = v
		}
	}
	return out, nil
}

// ReadBeeHistory reads bee densities
// (Country, Year, Bee_Density, Bee_Count, Area_km2). Null cells become NaN
// (area: 0) and are dropped later when seeding.
func ReadBeeHistory(r io.Reader, name string) ([]models.BeeRecord, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	yc, err := t.require(yearCols...)
	if err != nil {
		return nil, err
	}
	dc, err := t.require("bee_density")
	if err != nil {
		return nil, err
	}
	bc, err := t.require(beeCountCols...)
	if err != nil {
		return nil, err
	}
	ac, _ := t.column(areaCols...)

	out := make([]models.BeeRecord, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var rec models.BeeRecord
		if rec.Country, err = t.country(row, cc, line); err != nil {
			return nil, err
		}
		rec.Country = countries.Canonical(rec.Country)
		if rec.Year, err = t.year(row, yc, line); err != nil {
			return nil, err
		}
		if rec.BeeDensity, _, err = t.float(row, dc, line); err != nil {
			return nil, err
		}
		if rec.BeeCount, _, err = t.float(row, bc, line); err != nil {
			return nil, err
		}
		area, ok, err := t.float(row, ac, line)
		if err != nil {
			return nil, err
		}
		if ok {
			rec.AreaKm2 = area
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadColonies reads raw colony counts (Country, Year, Bee_Count).
// Rows with a null count are skipped.
func ReadColonies(r io.Reader, name string) ([]models.BeeColonyRecord, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	yc, err := t.require(yearCols...)
	if err != nil {
		return nil, err
	}
	bc, err := t.require(beeCountCols...)
	if err != nil {
		return nil, err
	}

	out := make([]models.BeeColonyRecord, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var rec models.BeeColonyRecord
		if rec.Country, err = t.country(row, cc, line); err != nil {
			return nil, err
		}
		rec.Country = countries.Canonical(rec.Country)
		if rec.Year, err = t.year(row, yc, line); err != nil {
			return nil, err
		}
		v, ok, err := t.float(row, bc, line)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rec.Colonies = v
		out = append(out, rec)
	}
	return out, nil
}

// ReadPredators reads predator sightings. A predator_total column is used
// as is; otherwise every numeric column other than the country is treated
// as a species count.
func ReadPredators(r io.Reader, name string) ([]predation.Sightings, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}

	species := make(map[string]int)
	if tc, ok := t.column("predator_total", "total"); ok {
		species["predator_total"] = tc
	} else {
		for h, i := range t.header {
			switch h {
			case "predation_score", "year":
				continue
			}
			if i != cc {
				species[h] = i
			}
		}
	}
	if len(species) == 0 {
		return nil, fmt.Errorf("%s: %w %q", name, ErrMissingColumn, "predator_total")
	}
	names := make([]string, 0, len(species))
	for s := range species {
		names = append(names, s)
	}
	sort.Strings(names)

	out := make([]predation.Sightings, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		c, err := t.country(row, cc, line)
		if err != nil {
			return nil, err
		}
		s := predation.Sightings{Country: countries.Canonical(c), Species: make(map[string]float64, len(names))}
		for _, n := range names {
			v, ok, err := t.float(row, species[n], line)
			if err != nil {
				return nil, err
			}
			if ok {
				s.Species[n] = v
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadSpreadForecast reads a spread forecast written by WriteSpreadForecast.
// An adjusted_hive_density column, when present, replaces the density.
func ReadSpreadForecast(r io.Reader, name string) ([]models.SpreadRow, error) {
	t, err := readTable(r, name)
	if err != nil {
		return nil, err
	}
	cc, err := t.require(countryCols...)
	if err != nil {
		return nil, err
	}
	yc, err := t.require(yearCols...)
	if err != nil {
		return nil, err
	}
	dc, err := t.require("adjusted_hive_density", "hive_density")
	if err != nil {
		return nil, err
	}
	sc, _ := t.column(stageCols...)
	syc, _ := t.column("stage_year")
	hc, _ := t.column(hiveCountCols...)

	out := make([]models.SpreadRow, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var rec models.SpreadRow
		if rec.Country, err = t.country(row, cc, line); err != nil {
			return nil, err
		}
		rec.Country = countries.Canonical(rec.Country)
		if rec.Year, err = t.year(row, yc, line); err != nil {
			return nil, err
		}
		d, _, err := t.float(row, dc, line)
		if err != nil {
			return nil, err
		}
		rec.HiveDensity = models.Finite(d)
		if rec.Stage, err = parseStage(t, row, sc, line); err != nil {
			return nil, err
		}
		if syc >= 0 {
			sy, err := t.year(row, syc, line)
			if err != nil {
				return nil, err
			}
			rec.StageYear = sy
		}
		if n, ok, err := t.float(row, hc, line); err != nil {
			return nil, err
		} else if ok {
			rec.HiveCount = models.RoundCount(n)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadObservationsFile reads observations from path.
func ReadObservationsFile(path string) (out []models.HiveObservation, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadObservations(r, name)
		return err
	})
	return out, err
}

// ReadHistoryFile reads a staged history from path.
func ReadHistoryFile(path string) (out []models.CountryYearRecord, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadHistory(r, name)
		return err
	})
	return out, err
}

// ReadAreasFile reads an area table from path.
func ReadAreasFile(path string) (out countries.AreaTable, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadAreas(r, name)
		return err
	})
	return out, err
}

// ReadCorrelationsFile reads coefficients from path.
func ReadCorrelationsFile(path string) (out map[string]float64, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadCorrelations(r, name)
		return err
	})
	return out, err
}

// ReadBeeHistoryFile reads bee densities from path.
func ReadBeeHistoryFile(path string) (out []models.BeeRecord, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadBeeHistory(r, name)
		return err
	})
	return out, err
}

// ReadColoniesFile reads colony counts from path.
func ReadColoniesFile(path string) (out []models.BeeColonyRecord, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadColonies(r, name)
		return err
	})
	return out, err
}

// ReadPredatorsFile reads predator sightings from path.
func ReadPredatorsFile(path string) (out []predation.Sightings, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadPredators(r, name)
		return err
	})
	return out, err
}

// ReadSpreadForecastFile reads a spread forecast from path.
func ReadSpreadForecastFile(path string) (out []models.SpreadRow, err error) {
	err = openFile(path, func(r io.Reader, name string) error {
		out, err = ReadSpreadForecast(r, name)
		return err
	})
	return out, err
}
