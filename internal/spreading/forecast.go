package spreading

import (
	"sort"

	"github.com/nvandessel/hornetcast/internal/models"
)

// Forecast is the result of a simulation run.
type Forecast struct {
	// StartYear is the seed year; rows begin at StartYear+1.
	StartYear int `json:"start_year"`

	// EndYear is the last simulated year (StartYear when nothing ran).
	EndYear int `json:"end_year"`

	// Rows are sorted by (year, country).
	Rows []models.SpreadRow `json:"rows"`

	// Events are the invasions in the order they happened.
	Events []models.InvasionEvent `json:"events"`

	// Final is the state after EndYear.
	Final State `json:"-"`
}

// ByYear returns the rows of one year.
func (f *Forecast) ByYear(year int) []models.SpreadRow {
	lo := sort.Search(len(f.Rows), func(i int) bool { return f.Rows[i].Year >= year })
	hi := sort.Search(len(f.Rows), func(i int) bool { return f.Rows[i].Year > year })
	return f.Rows[lo:hi]
}

// Series returns country -> year -> hive density.
func (f *Forecast) Series() map[string]map[int]float64 {
	out := make(map[string]map[int]float64)
	for _, r := range f.Rows {
		if out[r.Country] == nil {
			out[r.Country] = make(map[int]float64)
		}
		out[r.Country][r.Year] = r.HiveDensity
	}
	return out
}

// Invaded returns the countries present at the end of the forecast, sorted.
func (f *Forecast) Invaded() []string {
	return f.Final.Countries()
}

// InvasionYear returns the year a country was invaded during the forecast.
func (f *Forecast) InvasionYear(country string) (int, bool) {
	for _, e := range f.Events {
		if e.Country == country {
			return e.Year, true
		}
	}
	return 0, false
}
