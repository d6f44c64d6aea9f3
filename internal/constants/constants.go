// Package constants provides named constants used throughout the hornetcast codebase.
// This centralizes the thresholds and growth parameters of the invasion model.
package constants

// Stage classification thresholds (hives/km²). These are fixed by the
// invasion model and are not configurable at runtime.
const (
	// ExpandingDensityThreshold is the lowest density classified as stage 2.
	// Also the density at which a newly invaded country advances to stage 2.
	ExpandingDensityThreshold = 0.0002

	// SaturatedDensityThreshold is the lowest density classified as stage 3.
	// Also the density at which an expanding country advances to stage 3.
	SaturatedDensityThreshold = 0.005
)

// Growth law parameters, one set per invasion stage.
const (
	// ColonizationRate is the yearly multiplier applied in stage 1.
	ColonizationRate = 1.35

	// ExpansionIncrement is the base yearly increment applied in stage 2.
	ExpansionIncrement = 0.0005

	// SaturationIncrement is the base yearly increment applied in stage 3.
	SaturationIncrement = 0.0003

	// SaturationExponent dampens stage 3 growth with the years spent in stage.
	SaturationExponent = 1.2
)

// Simulation defaults
const (
	// DefaultHorizonYear is the last simulated calendar year.
	DefaultHorizonYear = 2050

	// MaxForecastYears bounds how far past its seed year a remote caller
	// may forecast.
	MaxForecastYears = 200

	// DefaultSeedHives is the number of hives placed in a newly invaded country.
	DefaultSeedHives = 2.0

	// SpreadDensityDecimals is the rounding applied to hive density in spread output.
	SpreadDensityDecimals = 7
)

// Bee decline defaults
const (
	// DefaultDeclineScale (K) converts hornet density units into the decline model.
	DefaultDeclineScale = 3.0

	// DeclineExponent is the non-linearity applied to the scaled hornet density.
	DeclineExponent = 1.1

	// DeclineMultiplier amplifies the correlation-weighted decline.
	DeclineMultiplier = 2.0

	// DeclineCapFraction caps a single year's decline as a fraction of current bee density.
	DeclineCapFraction = 0.5

	// DefaultCorrelation is used for countries without a historical correlation.
	DefaultCorrelation = -0.3

	// BeeDensityDecimals is the rounding applied to bee density in forecast output.
	BeeDensityDecimals = 6

	// GrowthDecimals is the rounding applied to bee density growth rates.
	GrowthDecimals = 4
)

// Analysis constants
const (
	// MinCorrelationPoints is the number of joined country-years required
	// before a per-country correlation is reported.
	MinCorrelationPoints = 5

	// MaxPredationScore is the upper bound of the scaled predation score.
	MaxPredationScore = 0.5
)
