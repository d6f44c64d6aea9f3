package spreading

import (
	"sort"

	"github.com/nvandessel/hornetcast/internal/models"
)

// State is the per-country simulation state for one year. A State is never
// mutated after a year completes; each step builds a fresh map.
type State map[string]models.CountryState

// Clone returns a copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Countries returns the invaded countries, sorted.
func (s State) Countries() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CountByStage returns the number of countries in each stage.
func (s State) CountByStage() map[models.Stage]int {
	out := make(map[models.Stage]int, 3)
	for _, cs := range s {
		out[cs.Stage]++
	}
	return out
}

// MeanDensity returns the average hive density over all invaded countries.
func (s State) MeanDensity() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, cs := range s {
		sum += cs.HiveDensity
	}
	return sum / float64(len(s))
}
