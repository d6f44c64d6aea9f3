package bees

import (
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
)

// HornetSeries is hornet density indexed by country then year.
type HornetSeries struct {
	values map[string]map[int]float64
	years  map[int]bool
}

// NewHornetSeries creates an empty series.
func NewHornetSeries() *HornetSeries {
	return &HornetSeries{
		values: make(map[string]map[int]float64),
		years:  make(map[int]bool),
	}
}

// Set records a density. Later values for the same key overwrite earlier ones.
func (h *HornetSeries) Set(country string, year int, density float64) {
	country = countries.Canonical(country)
	if h.values[country] == nil {
		h.values[country] = make(map[int]float64)
	}
	h.values[country][year] = models.Finite(density)
	h.years[year] = true
}

// Density returns the density of a country in a year, 0 when absent.
func (h *HornetSeries) Density(country string, year int) float64 {
	if h == nil {
		return 0
	}
	return h.values[countries.Canonical(country)][year]
}

// HasYear reports whether any country has a value for year.
func (h *HornetSeries) HasYear(year int) bool {
	return h != nil && h.years[year]
}

// Len returns the number of (country, year) values.
func (h *HornetSeries) Len() int {
	if h == nil {
		return 0
	}
	n := 0
	for _, ys := range h.values {
		n += len(ys)
	}
	return n
}

// Combine builds the hornet series fed to the bee forecaster: historical
// densities up to and including lastHistoryYear, followed by forecast rows
// after it. Records with unknown density are left out.
func Combine(history []models.CountryYearRecord, forecast []models.SpreadRow, lastHistoryYear int) *HornetSeries {
	h := NewHornetSeries()
	for _, r := range history {
		if r.Year > lastHistoryYear {
			continue
		}
		if d, ok := r.Density(); ok {
			h.Set(r.Country, r.Year, d)
		}
	}
	for _, r := range forecast {
		if r.Year <= lastHistoryYear {
			continue
		}
		h.Set(r.Country, r.Year, r.HiveDensity)
	}
	return h
}

// FromRows builds a series from forecast rows alone.
func FromRows(rows []models.SpreadRow) *HornetSeries {
	h := NewHornetSeries()
	for _, r := range rows {
		h.Set(r.Country, r.Year, r.HiveDensity)
	}
	return h
}
