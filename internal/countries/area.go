package countries

import (
	"math"
	"sort"
)

// AreaProvider resolves a country to its area in km².
type AreaProvider interface {
	// Area returns the area of the country and whether it is known.
	Area(country string) (float64, bool)
}

// AreaTable is an in-memory AreaProvider keyed by canonical country name.
type AreaTable map[string]float64

// NewAreaTable builds an AreaTable, canonicalising every key. Entries with a
// non-finite or non-positive area are dropped.
func NewAreaTable(areas map[string]float64) AreaTable {
	t := make(AreaTable, len(areas))
	for name, area := range areas {
		t.Set(name, area)
	}
	return t
}

// Set records the area of a country. Invalid areas are ignored.
func (t AreaTable) Set(country string, area float64) {
	if math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return
	}
	t[Canonical(country)] = area
}

// Area implements AreaProvider.
func (t AreaTable) Area(country string) (float64, bool) {
	a, ok := t[Canonical(country)]
	return a, ok
}

// Countries returns the known countries in sorted order.
func (t AreaTable) Countries() []string {
	out := make([]string, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Chain is an AreaProvider that consults each provider in order.
type Chain []AreaProvider

// Area implements AreaProvider.
func (c Chain) Area(country string) (float64, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if a, ok := p.Area(country); ok {
			return a, true
		}
	}
	return 0, false
}
