// Package models defines the core data types shared by the invasion and bee
// forecasting components.
package models

import (
	"fmt"
	"strconv"
)

// Stage is the categorical maturity of hornet presence in a country.
type Stage int

const (
	// StageNone marks an unknown stage (no density observed).
	StageNone Stage = 0

	// StageNewlyInvaded is a country with a young, exponentially growing population.
	StageNewlyInvaded Stage = 1

	// StageExpanding is a country where growth is saturating.
	StageExpanding Stage = 2

	// StageSaturated is a country close to carrying capacity.
	StageSaturated Stage = 3
)

// stageLabels maps stages to their human-readable labels.
var stageLabels = map[Stage]string{
	StageNewlyInvaded: "Newly Invaded",
	StageExpanding:    "Expanding",
	StageSaturated:    "Saturated",
}

// Valid reports whether s is one of the three invasion stages.
func (s Stage) Valid() bool {
	return s >= StageNewlyInvaded && s <= StageSaturated
}

// String returns the stage label, or "" for StageNone.
func (s Stage) String() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	if s == StageNone {
		return ""
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

// ParseStage parses a stage from its numeric form ("1", "2.0", "3").
// An empty string yields StageNone.
func ParseStage(v string) (Stage, error) {
	if v == "" {
		return StageNone, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return StageNone, fmt.Errorf("invalid stage %q: %w", v, err)
	}
	if f != f { // NaN
		return StageNone, nil
	}
	s := Stage(int(f))
	if float64(s) != f || !s.Valid() {
		return StageNone, fmt.Errorf("invalid stage %q: must be 1, 2 or 3", v)
	}
	return s, nil
}

// MaxStage returns the higher of two stages.
func MaxStage(a, b Stage) Stage {
	if a > b {
		return a
	}
	return b
}
