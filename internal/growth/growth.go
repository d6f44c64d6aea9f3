// Package growth implements the stage-dependent hive density growth laws
// and the stage transitions they trigger.
package growth

import (
	"math"

	"github.com/nvandessel/hornetcast/internal/constants"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Model applies one year of growth to a country's state.
type Model interface {
	Next(state models.CountryState) models.CountryState
}

// Law holds the growth constants and transition thresholds. The zero value
// is not useful; use DefaultLaw.
type Law struct {
	ColonizationRate    float64
	ExpansionIncrement  float64
	SaturationIncrement float64
	SaturationExponent  float64
	ExpandingThreshold  float64
	SaturatedThreshold  float64
}

// DefaultLaw returns the calibrated growth law.
func DefaultLaw() Law {
	return Law{
		ColonizationRate:    constants.ColonizationRate,
		ExpansionIncrement:  constants.ExpansionIncrement,
		SaturationIncrement: constants.SaturationIncrement,
		SaturationExponent:  constants.SaturationExponent,
		ExpandingThreshold:  constants.ExpandingDensityThreshold,
		SaturatedThreshold:  constants.SaturatedDensityThreshold,
	}
}

// Stage1 is exponential colonization growth.
func (l Law) Stage1(d float64) float64 {
	return d * l.ColonizationRate
}

// Stage2 is additive growth that slows with the years spent in the stage.
func (l Law) Stage2(d float64, stageYear int) float64 {
	return d + l.ExpansionIncrement*(1+1/math.Sqrt(float64(stageYear)+1))
}

// Stage3 is a power-law decaying increment approaching saturation.
func (l Law) Stage3(d float64, stageYear int) float64 {
	return d + l.SaturationIncrement/math.Pow(float64(stageYear)+1, l.SaturationExponent)
}

// Density returns the density after one year of growth for the given stage.
// An unrecognised stage falls back to the saturation law.
func (l Law) Density(stage models.Stage, stageYear int, d float64) float64 {
	switch stage {
	case models.StageNewlyInvaded:
		return l.Stage1(d)
	case models.StageExpanding:
		return l.Stage2(d, stageYear)
	default:
		return l.Stage3(d, stageYear)
	}
}

// Next grows the density and evaluates the transition against the new
// density. A transition resets StageYear to 1; otherwise it increments.
func (l Law) Next(s models.CountryState) models.CountryState {
	next := s
	next.HiveDensity = l.Density(s.Stage, s.StageYear, s.HiveDensity)

	switch {
	case s.Stage == models.StageNewlyInvaded && next.HiveDensity >= l.ExpandingThreshold:
		next.Stage = models.StageExpanding
		next.StageYear = 1
	case s.Stage == models.StageExpanding && next.HiveDensity >= l.SaturatedThreshold:
		next.Stage = models.StageSaturated
		next.StageYear = 1
	default:
		next.StageYear = s.StageYear + 1
	}
	return next
}
