// Package spreading simulates the year-by-year spread of hornet invasion
// across a country adjacency graph. Each year every invaded country grows
// according to its stage, and uninvaded countries bordering an expanding or
// saturated neighbor become newly invaded. A year reads only the previous
// year's snapshot (synchronous update).
package spreading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/growth"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/models"
)

// TieBreak selects the invasion source when several neighbors qualify.
// The source is informational only; it never changes state.
type TieBreak string

const (
	// TieBreakDensity picks the neighbor with the highest previous-year
	// density, then the lexicographically smallest name.
	TieBreakDensity TieBreak = "density"

	// TieBreakName picks the lexicographically smallest neighbor name.
	TieBreakName TieBreak = "name"
)

// Config holds the simulation parameters.
type Config struct {
	// HorizonYear is the last simulated year, inclusive. Default: 2050.
	HorizonYear int

	// SeedHives is the hive count placed in a newly invaded country. Default: 2.
	SeedHives float64

	// Workers is the number of goroutines evaluating countries within a
	// year. Output is identical for any value. Default: 1.
	Workers int

	// TieBreak chooses the reported invasion source. Default: TieBreakDensity.
	TieBreak TieBreak
}

// DefaultConfig returns the default simulation configuration.
func DefaultConfig() Config {
	return Config{
		HorizonYear: constants.DefaultHorizonYear,
		SeedHives:   constants.DefaultSeedHives,
		Workers:     1,
		TieBreak:    TieBreakDensity,
	}
}

// Recorder receives simulation metrics. Implementations must be safe for
// use from the goroutine calling Run.
type Recorder interface {
	ObserveYear(year int, invaded int, elapsed time.Duration)
	ObserveInvasion(year int, country string)
	ObserveCoerced(field string)
}

// Simulator steps CountryState forward one year at a time.
// It holds no simulation state of its own; all state flows through the
// State values passed to Step and Run.
type Simulator struct {
	config   Config
	graph    *adjacency.Graph
	areas    countries.AreaProvider
	model    growth.Model
	logger   *slog.Logger
	events   *logging.EventLogger
	recorder Recorder
}

// NewSimulator creates a simulator over graph. Zero-valued Config fields
// take their defaults.
func NewSimulator(graph *adjacency.Graph, areas countries.AreaProvider, config Config) *Simulator {
	def := DefaultConfig()
	if config.HorizonYear == 0 {
		config.HorizonYear = def.HorizonYear
	}
	if config.SeedHives <= 0 {
		config.SeedHives = def.SeedHives
	}
	if config.Workers < 1 {
		config.Workers = def.Workers
	}
	if config.TieBreak == "" {
		config.TieBreak = def.TieBreak
	}
	return &Simulator{
		config: config,
		graph:  graph,
		areas:  areas,
		model:  growth.DefaultLaw(),
		logger: logging.Discard(),
	}
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.config
}

// SetLogger sets the operational logger and the optional event trace.
// Either may be nil.
func (s *Simulator) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	s.logger = logger
	s.events = events
}

// SetRecorder sets the metrics recorder.
func (s *Simulator) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetModel replaces the growth model.
func (s *Simulator) SetModel(m growth.Model) {
	if m != nil {
		s.model = m
	}
}

// outcome is the evaluation of one country for one year.
type outcome struct {
	country string
	state   models.CountryState
	present bool
	from    models.Stage
	event   *models.InvasionEvent
	coerced []string
}

// Step computes year from the previous snapshot. It returns the new
// snapshot, the forecast rows sorted by country, and any invasions.
// prev is not modified.
func (s *Simulator) Step(year int, prev State) (State, []models.SpreadRow, []models.InvasionEvent) {
	outcomes := make([]outcome, 0)
	for _, c := range s.candidates(prev) {
		outcomes = append(outcomes, s.evaluate(year, c, prev))
	}
	return s.assemble(year, outcomes)
}

// step is Step with an optional worker pool.
func (s *Simulator) step(ctx context.Context, year int, prev State) (State, []models.SpreadRow, []models.InvasionEvent, error) {
	if s.config.Workers <= 1 {
		next, rows, events := s.Step(year, prev)
		return next, rows, events, nil
	}

	names := s.candidates(prev)
	outcomes := make([]outcome, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, c := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each worker writes only its own slot.
			outcomes[i] = s.evaluate(year, c, prev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	next, rows, events := s.assemble(year, outcomes)
	return next, rows, events, nil
}

// candidates returns the union of invaded and graph countries, sorted.
func (s *Simulator) candidates(prev State) []string {
	seen := make(map[string]bool, len(prev))
	var out []string
	for c := range prev {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range s.graph.Countries() {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// evaluate computes the next state of one country. It reads prev only.
func (s *Simulator) evaluate(year int, country string, prev State) outcome {
	out := outcome{country: country}

	if cur, ok := prev[country]; ok {
		// Step 1: Grow an invaded country and apply its stage transition.
		out.state = s.model.Next(cur)
		out.from = cur.Stage
		out.present = true
	} else {
		// Step 2: Invade from a neighbor that was expanding or saturated.
		source, ok := s.source(country, prev)
		if !ok {
			return out
		}
		area, ok := s.areaOf(country)
		if !ok {
			return out
		}
		src := prev[source]
		out.state = models.CountryState{
			Stage:       models.StageNewlyInvaded,
			StageYear:   1,
			HiveDensity: s.config.SeedHives / area,
			AreaKm2:     area,
		}
		out.from = models.StageNone
		out.present = true
		out.event = &models.InvasionEvent{
			Year:          year,
			Country:       country,
			Source:        source,
			SourceStage:   src.Stage,
			SourceDensity: src.HiveDensity,
		}
	}

	// Step 3: Coerce non-finite values so the country is retained.
	if !finite(out.state.HiveDensity) {
		out.state.HiveDensity = 0
		out.coerced = append(out.coerced, "hive_density")
	}
	if !finite(out.state.AreaKm2) {
		out.state.AreaKm2 = 0
		out.coerced = append(out.coerced, "area_km2")
	}
	return out
}

// source picks the invasion source among neighbors at stage 2 or above.
func (s *Simulator) source(country string, prev State) (string, bool) {
	best := ""
	bestDensity := 0.0
	for _, n := range s.graph.Neighbors(country) {
		ns, ok := prev[n]
		if !ok || ns.Stage < models.StageExpanding {
			continue
		}
		switch {
		case best == "":
			best, bestDensity = n, ns.HiveDensity
		case s.config.TieBreak == TieBreakName:
			if n < best {
				best, bestDensity = n, ns.HiveDensity
			}
		case ns.HiveDensity > bestDensity || (ns.HiveDensity == bestDensity && n < best):
			best, bestDensity = n, ns.HiveDensity
		}
	}
	return best, best != ""
}

// areaOf returns a usable area for a newly invaded country.
func (s *Simulator) areaOf(country string) (float64, bool) {
	if s.areas == nil {
		return 0, false
	}
	a, ok := s.areas.Area(country)
	if !ok || !finite(a) || a <= 0 {
		return 0, false
	}
	return a, true
}

// assemble builds the snapshot, rows and events from per-country outcomes
// in their (sorted) order and emits logs and metrics.
func (s *Simulator) assemble(year int, outcomes []outcome) (State, []models.SpreadRow, []models.InvasionEvent) {
	next := make(State, len(outcomes))
	rows := make([]models.SpreadRow, 0, len(outcomes))
	var events []models.InvasionEvent

	for _, o := range outcomes {
		if !o.present {
			if len(s.graph.Neighbors(o.country)) > 0 {
				s.logger.Log(context.Background(), logging.LevelTrace, "country not invaded", "year", year, "country", o.country)
			}
			continue
		}
		next[o.country] = o.state
		rows = append(rows, models.SpreadRow{
			Year:        year,
			Country:     o.country,
			Stage:       o.state.Stage,
			StageYear:   o.state.StageYear,
			HiveDensity: models.Round(o.state.HiveDensity, constants.SpreadDensityDecimals),
			HiveCount:   models.RoundCount(o.state.HiveDensity * o.state.AreaKm2),
		})

		switch {
		case o.event != nil:
			events = append(events, *o.event)
			s.logger.Info(fmt.Sprintf("%d: %s -> %s invaded", year, o.event.Source, o.country),
				"year", year, "country", o.country, "source", o.event.Source)
			s.events.Invasion(year, o.country, o.event.Source, o.event.SourceDensity)
			if s.recorder != nil {
				s.recorder.ObserveInvasion(year, o.country)
			}
		case o.from != o.state.Stage:
			s.logger.Debug("stage transition", "year", year, "country", o.country,
				"from", o.from.String(), "to", o.state.Stage.String())
			s.events.Transition(year, o.country, int(o.from), int(o.state.Stage))
		default:
			s.logger.Log(context.Background(), logging.LevelTrace, "growth step", "year", year,
				"country", o.country, "stage", int(o.state.Stage), "density", o.state.HiveDensity)
		}

		for _, field := range o.coerced {
			s.logger.Warn("non-finite value coerced to zero", "year", year, "country", o.country, "field", field)
			s.events.Coerced(year, o.country, field)
			if s.recorder != nil {
				s.recorder.ObserveCoerced(field)
			}
		}
	}
	return next, rows, events
}

// Run steps the seed state from startYear+1 through the horizon year.
// The context is checked between years.
func (s *Simulator) Run(ctx context.Context, seed State, startYear int) (*Forecast, error) {
	if len(seed) == 0 {
		return nil, ErrEmptySeed
	}

	fc := &Forecast{
		StartYear: startYear,
		EndYear:   startYear,
		Final:     seed.Clone(),
	}
	state := fc.Final

	for year := startYear + 1; year <= s.config.HorizonYear; year++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled at %d: %w", year, err)
		}

		began := time.Now()
		next, rows, events, err := s.step(ctx, year, state)
		if err != nil {
			return nil, fmt.Errorf("simulating %d: %w", year, err)
		}
		state = next
		fc.Rows = append(fc.Rows, rows...)
		fc.Events = append(fc.Events, events...)
		fc.EndYear = year

		s.logger.Debug("simulated year", "year", year, "invaded", len(state), "new", len(events))
		if s.recorder != nil {
			s.recorder.ObserveYear(year, len(state), time.Since(began))
		}
	}

	fc.Final = state
	return fc, nil
}
