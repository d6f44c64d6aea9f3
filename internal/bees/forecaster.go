// Package bees forecasts honeybee colony density under hornet predation.
// Bees do not spread: every country with historical bee data is tracked
// from the start and declines according to the hornet density next to it.
package bees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/models"
)

// ErrNoBeeData is returned when no usable bee record exists for the seed year.
var ErrNoBeeData = errors.New("no bee data to seed the forecast")

// Config holds the decline parameters.
type Config struct {
	// DeclineScale (K) converts hornet density into the decline's units. Default: 3.
	DeclineScale float64

	// Exponent of the non-linear response. Default: 1.1.
	Exponent float64

	// Multiplier applied after the correlation. Default: 2.0.
	Multiplier float64

	// CapFraction bounds the single-year decline as a fraction of the
	// current density. Default: 0.5.
	CapFraction float64

	// DefaultCorrelation is used for countries without a coefficient. Default: -0.3.
	DefaultCorrelation float64

	// HorizonYear is the last forecast year, inclusive. Default: 2050.
	HorizonYear int
}

// DefaultConfig returns the calibrated configuration.
func DefaultConfig() Config {
	return Config{
		DeclineScale:       constants.DefaultDeclineScale,
		Exponent:           constants.DeclineExponent,
		Multiplier:         constants.DeclineMultiplier,
		CapFraction:        constants.DeclineCapFraction,
		DefaultCorrelation: constants.DefaultCorrelation,
		HorizonYear:        constants.DefaultHorizonYear,
	}
}

// Recorder receives per-year bee metrics.
type Recorder interface {
	ObserveBeeYear(year int, meanDensity float64)
}

// State is the bee state of every tracked country.
type State map[string]models.BeeCountryState

// Forecaster steps bee density forward one year at a time.
type Forecaster struct {
	config   Config
	logger   *slog.Logger
	recorder Recorder
}

// NewForecaster creates a forecaster. The decline parameters are used as
// given, so a zero DeclineScale or CapFraction disables the decline; start
// from DefaultConfig for the calibrated values. A zero HorizonYear takes the
// default horizon.
func NewForecaster(config Config) *Forecaster {
	if config.HorizonYear == 0 {
		config.HorizonYear = DefaultConfig().HorizonYear
	}
	return &Forecaster{config: config, logger: logging.Discard()}
}

// Config returns the effective configuration.
func (f *Forecaster) Config() Config {
	return f.config
}

// SetLogger sets the structured logger.
func (f *Forecaster) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	f.logger = logger
}

// SetRecorder sets the metrics recorder.
func (f *Forecaster) SetRecorder(r Recorder) {
	f.recorder = r
}

// Decline returns the decline for one year and the resulting density.
// The decline never exceeds CapFraction of density and the new density is
// never negative.
func (f *Forecaster) Decline(density, hornetAvg, corr float64) (decline, next float64) {
	base := math.Pow(hornetAvg*f.config.DeclineScale, f.config.Exponent) * math.Abs(corr) * f.config.Multiplier
	if math.IsNaN(base) {
		base = 0
	}
	decline = math.Min(base, f.config.CapFraction*density)
	next = math.Max(density-decline, 0)
	return decline, next
}

// Seed builds the initial state from the bee history of seedYear, or the
// last year present when seedYear is 0. Rows with a non-finite density or
// count are dropped; a missing area falls back to areas.
func (f *Forecaster) Seed(history []models.BeeRecord, seedYear int, areas countries.AreaProvider) (State, int, error) {
	if seedYear == 0 {
		for _, r := range history {
			if r.Year > seedYear {
				seedYear = r.Year
			}
		}
	}

	state := make(State)
	dropped := 0
	for _, r := range history {
		if r.Year != seedYear {
			continue
		}
		country := countries.Canonical(r.Country)
		area := r.AreaKm2
		if (area <= 0 || !finite(area)) && areas != nil {
			area, _ = areas.Area(country)
		}
		if !finite(r.BeeDensity) || !finite(r.BeeCount) || !finite(area) || area <= 0 {
			dropped++
			continue
		}
		state[country] = models.BeeCountryState{
			Country:    country,
			BeeDensity: r.BeeDensity,
			BeeCount:   r.BeeCount,
			AreaKm2:    area,
		}
	}

	if len(state) == 0 {
		return nil, seedYear, fmt.Errorf("bee seed year %d: %w", seedYear, ErrNoBeeData)
	}
	if dropped > 0 {
		f.logger.Warn("dropped incomplete bee records", "year", seedYear, "dropped", dropped)
	}
	return state, seedYear, nil
}

// Forecast steps the seed from startYear+1 through the horizon. Each year
// the hornet density is averaged with the previous year's when the series
// has any value for that previous year; corr supplies per-country
// coefficients. Rows are sorted by (country, year).
func (f *Forecaster) Forecast(ctx context.Context, seed State, startYear int, hornets *HornetSeries, corr map[string]float64) ([]models.BeeRow, error) {
	if len(seed) == 0 {
		return nil, ErrNoBeeData
	}

	names := make([]string, 0, len(seed))
	for c := range seed {
		names = append(names, c)
	}
	sort.Strings(names)

	coef := make(map[string]float64, len(corr))
	for c, r := range corr {
		coef[countries.Canonical(c)] = r
	}

	var rows []models.BeeRow
	state := seed
	for year := startYear + 1; year <= f.config.HorizonYear; year++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bee forecast cancelled at %d: %w", year, err)
		}

		lagged := hornets.HasYear(year - 1)
		next := make(State, len(state))
		var sum float64
		for _, c := range names {
			cur := state[c]

			// Step 1: Lag-smooth the hornet density.
			hornet := hornets.Density(c, year)
			avg := hornet
			if lagged {
				avg = (hornet + hornets.Density(c, year-1)) / 2
			}

			// Step 2: Apply the capped decline.
			r, ok := coef[c]
			if !ok || !finite(r) {
				r = f.config.DefaultCorrelation
			}
			_, density := f.Decline(cur.BeeDensity, avg, r)
			count := density * cur.AreaKm2

			next[c] = models.BeeCountryState{
				Country:    c,
				BeeDensity: density,
				BeeCount:   count,
				AreaKm2:    cur.AreaKm2,
			}
			sum += density

			rows = append(rows, models.BeeRow{
				Year:          year,
				Country:       c,
				HornetDensity: hornet,
				BeeDensity:    models.Round(density, constants.BeeDensityDecimals),
				BeeCount:      models.RoundCount(count),
			})
		}
		state = next

		mean := sum / float64(len(names))
		f.logger.Debug("forecast bee year", "year", year, "mean_density", mean)
		if f.recorder != nil {
			f.recorder.ObserveBeeYear(year, mean)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Country != rows[j].Country {
			return rows[i].Country < rows[j].Country
		}
		return rows[i].Year < rows[j].Year
	})
	fillGrowth(rows)
	return rows, nil
}

// fillGrowth sets BeeDensityGrowth to the per-country percentage change of
// the rounded density. rows must be sorted by (country, year).
func fillGrowth(rows []models.BeeRow) {
	for i := range rows {
		if i == 0 || rows[i-1].Country != rows[i].Country {
			rows[i].BeeDensityGrowth = 0
			continue
		}
		rows[i].BeeDensityGrowth = pctChange(rows[i-1].BeeDensity, rows[i].BeeDensity)
	}
}

// pctChange returns (cur-prev)/prev rounded to 4 decimals, 0 when undefined.
func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	g := models.Round((cur-prev)/prev, constants.GrowthDecimals)
	if !finite(g) {
		return 0
	}
	return g
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
