package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/hornetcast/internal/analysis"
	"github.com/nvandessel/hornetcast/internal/bees"
	"github.com/nvandessel/hornetcast/internal/classify"
	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/correlation"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/predation"
	"github.com/nvandessel/hornetcast/internal/spreading"
)

// ErrNoHistory is returned when neither observations nor a staged history
// were supplied.
var ErrNoHistory = errors.New("observations or a staged history are required")

// Recorder receives both spread and bee metrics.
type Recorder interface {
	spreading.Recorder
	bees.Recorder
}

// Result is everything one pipeline run produces.
type Result struct {
	Staged   []models.CountryYearRecord `json:"staged"`
	Analysis analysis.Report            `json:"analysis"`

	SeedYear int                    `json:"seed_year"`
	Spread   *spreading.Forecast    `json:"spread"`
	Events   []models.InvasionEvent `json:"events"`

	Scores   []predation.Score       `json:"predation_scores,omitempty"`
	Adjusted []predation.AdjustedRow `json:"adjusted,omitempty"`

	Trends       []models.BeeTrend    `json:"bee_trends,omitempty"`
	Correlations []correlation.Result `json:"correlations,omitempty"`
	Coefficients map[string]float64   `json:"coefficients,omitempty"`

	BeeSeedYear int             `json:"bee_seed_year,omitempty"`
	Bees        []models.BeeRow `json:"bees,omitempty"`
}

// SpreadConfig maps the configuration onto the simulator's parameters.
func SpreadConfig(cfg *config.HornetConfig) spreading.Config {
	c := spreading.DefaultConfig()
	c.HorizonYear = cfg.Simulation.HorizonYear
	c.SeedHives = cfg.Simulation.SeedHives
	c.Workers = cfg.Simulation.Workers
	c.TieBreak = spreading.TieBreak(cfg.Simulation.TieBreak)
	return c
}

// BeeConfig maps the configuration onto the forecaster's parameters.
func BeeConfig(cfg *config.HornetConfig) bees.Config {
	c := bees.DefaultConfig()
	c.DeclineScale = cfg.Bees.DeclineScale
	c.CapFraction = cfg.Bees.CapFraction
	c.DefaultCorrelation = cfg.Bees.DefaultCorrelation
	c.HorizonYear = cfg.Simulation.HorizonYear
	return c
}

// Runner executes the pipeline with one configuration.
type Runner struct {
	cfg      *config.HornetConfig
	logger   *slog.Logger
	events   *logging.EventLogger
	recorder Recorder
}

// New creates a Runner. A nil config uses config.Default().
func New(cfg *config.HornetConfig) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{cfg: cfg, logger: logging.Discard()}
}

// SetLogger sets the operational logger and the optional event trace.
func (r *Runner) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	r.logger = logger
	r.events = events
}

// SetRecorder sets the metrics recorder.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Stage returns the classified history: observations when given, else the
// staged history, reclassified when it carries no stage at all.
func (r *Runner) Stage(in *Inputs) ([]models.CountryYearRecord, error) {
	if len(in.Observations) > 0 {
		b := classify.NewBuilder(in.Areas)
		b.SetLogger(r.logger)
		return b.Stage(in.Observations), nil
	}
	if len(in.History) == 0 {
		return nil, ErrNoHistory
	}
	for _, rec := range in.History {
		if rec.FinalStage.Valid() {
			return in.History, nil
		}
	}
	r.logger.Debug("history carries no stages, reclassifying", "records", len(in.History))
	return classify.Reclassify(in.History), nil
}

// Simulate seeds and runs the spread simulator over staged records.
func (r *Runner) Simulate(ctx context.Context, in *Inputs, staged []models.CountryYearRecord) (*spreading.Forecast, error) {
	sim := spreading.NewSimulator(in.Graph, in.Areas, SpreadConfig(r.cfg))
	sim.SetLogger(r.logger, r.events)
	if r.recorder != nil {
		sim.SetRecorder(r.recorder)
	}

	seed, seedYear, err := sim.Seed(staged, r.cfg.Simulation.SeedYear)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx, seed, seedYear)
}

// Run executes every step the inputs allow.
func (r *Runner) Run(ctx context.Context, in *Inputs) (*Result, error) {
	// Step 1: Classify.
	staged, err := r.Stage(in)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Staged:   staged,
		Analysis: analysis.Analyze(staged, in.Graph),
	}

	// Step 2: Simulate.
	fc, err := r.Simulate(ctx, in, staged)
	if err != nil {
		return nil, fmt.Errorf("spread simulation: %w", err)
	}
	res.Spread = fc
	res.SeedYear = fc.StartYear
	res.Events = fc.Events
	r.logger.Info("spread forecast complete",
		"from", fc.StartYear, "to", fc.EndYear, "invaded", len(fc.Final), "invasions", len(fc.Events))

	// Step 3: Predation.
	hornetRows := fc.Rows
	if len(in.Predators) > 0 {
		res.Scores = predation.Scores(in.Predators, r.cfg.Predation.MaxScore)
		res.Adjusted = predation.Adjust(fc.Rows, predation.Index(res.Scores))
		if r.cfg.Predation.Enabled {
			hornetRows = predation.Rows(res.Adjusted)
			r.logger.Debug("using predation-adjusted hornet density", "scored", len(res.Scores))
		}
	}

	// Step 4: Bee trends and correlations.
	if len(in.Colonies) > 0 {
		res.Trends = bees.Trends(in.Colonies, in.Areas, r.logger)
	}
	res.Coefficients = in.Correlations
	if res.Coefficients == nil && len(res.Trends) > 0 {
		res.Correlations = correlation.ByCountry(correlation.Join(staged, res.Trends), r.cfg.Bees.MinCorrelationPoints)
		res.Coefficients = correlation.Coefficients(res.Correlations)
		r.logger.Debug("computed correlations", "countries", len(res.Correlations))
	}

	// Step 5: Bee forecast.
	beeHistory := in.BeeHistory
	if len(beeHistory) == 0 && len(res.Trends) > 0 {
		beeHistory = bees.Records(res.Trends)
	}
	if len(beeHistory) == 0 {
		return res, nil
	}
	f := bees.NewForecaster(BeeConfig(r.cfg))
	f.SetLogger(r.logger)
	if r.recorder != nil {
		f.SetRecorder(r.recorder)
	}
	beeSeed, beeYear, err := f.Seed(beeHistory, 0, in.Areas)
	if err != nil {
		return nil, fmt.Errorf("bee forecast: %w", err)
	}
	hornets := bees.Combine(staged, hornetRows, res.SeedYear)
	if res.Bees, err = f.Forecast(ctx, beeSeed, beeYear, hornets, res.Coefficients); err != nil {
		return nil, fmt.Errorf("bee forecast: %w", err)
	}
	res.BeeSeedYear = beeYear
	r.logger.Info("bee forecast complete", "from", beeYear, "countries", len(beeSeed), "rows", len(res.Bees))
	return res, nil
}
