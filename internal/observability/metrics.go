// Package observability exposes Prometheus metrics for simulation runs.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulationCollector bundles the metrics of the spread simulator and the
// bee forecaster. It implements spreading.Recorder and bees.Recorder.
// A nil collector is a no-op.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	YearsSimulated   prometheus.Counter
	Invasions        *prometheus.CounterVec
	InvadedCountries prometheus.Gauge
	CoercedValues    *prometheus.CounterVec
	StepDuration     prometheus.Histogram
	BeeDensityMean   prometheus.Gauge
}

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing metrics.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	years, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hornetcast_years_simulated_total",
		Help: "Number of simulated years across all spread runs.",
	}), "hornetcast_years_simulated_total")
	if err != nil {
		return nil, err
	}

	invasions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hornetcast_invasions_total",
		Help: "Neighbor-triggered invasions, labeled by invaded country.",
	}, []string{"country"}), "hornetcast_invasions_total")
	if err != nil {
		return nil, err
	}

	invaded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hornetcast_invaded_countries",
		Help: "Countries with hornet presence after the last simulated year.",
	}), "hornetcast_invaded_countries")
	if err != nil {
		return nil, err
	}

	coerced, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hornetcast_coerced_values_total",
		Help: "Non-finite densities or areas replaced by zero, labeled by field.",
	}, []string{"field"}), "hornetcast_coerced_values_total")
	if err != nil {
		return nil, err
	}

	step, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hornetcast_step_duration_seconds",
		Help:    "Wall time of one simulated year.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "hornetcast_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	beeMean, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hornetcast_bee_density_mean",
		Help: "Mean forecast bee colony density of the last forecast year.",
	}), "hornetcast_bee_density_mean")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:         gatherer,
		YearsSimulated:   years,
		Invasions:        invasions,
		InvadedCountries: invaded,
		CoercedValues:    coerced,
		StepDuration:     step,
		BeeDensityMean:   beeMean,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveYear records one simulated year.
func (c *SimulationCollector) ObserveYear(year int, invaded int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.YearsSimulated.Inc()
	c.InvadedCountries.Set(float64(invaded))
	c.StepDuration.Observe(elapsed.Seconds())
}

// ObserveInvasion records an invasion of country.
func (c *SimulationCollector) ObserveInvasion(year int, country string) {
	if c == nil {
		return
	}
	c.Invasions.WithLabelValues(country).Inc()
}

// ObserveCoerced records a coerced value.
func (c *SimulationCollector) ObserveCoerced(field string) {
	if c == nil {
		return
	}
	c.CoercedValues.WithLabelValues(field).Inc()
}

// ObserveBeeYear records the mean bee density of a forecast year.
func (c *SimulationCollector) ObserveBeeYear(year int, meanDensity float64) {
	if c == nil {
		return
	}
	c.BeeDensityMean.Set(meanDensity)
}

// WriteTextfile writes every metric of the collector's gatherer to path in
// the Prometheus text format, for the node exporter textfile collector.
func (c *SimulationCollector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
