// Package pipeline chains classification, spread simulation, predation
// adjustment, correlation and the bee forecast into one run.
package pipeline

import (
	"fmt"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/predation"
	"github.com/nvandessel/hornetcast/internal/tables"
)

// Paths names the input tables. Empty paths are skipped.
type Paths struct {
	Observations string `json:"observations,omitempty"`
	History      string `json:"history,omitempty"`
	Areas        string `json:"areas,omitempty"`
	Adjacency    string `json:"adjacency,omitempty"`
	Correlations string `json:"correlations,omitempty"`
	BeeHistory   string `json:"bee_history,omitempty"`
	Colonies     string `json:"colonies,omitempty"`
	Predators    string `json:"predators,omitempty"`
}

// Inputs holds every loaded table.
type Inputs struct {
	Observations []models.HiveObservation
	History      []models.CountryYearRecord
	Areas        countries.AreaTable
	Graph        *adjacency.Graph

	// Correlations is nil when no coefficient table was supplied.
	Correlations map[string]float64

	BeeHistory []models.BeeRecord
	Colonies   []models.BeeColonyRecord
	Predators  []predation.Sightings
}

// Load reads every non-empty path. Without an adjacency file the built-in
// European table is used.
func Load(paths Paths, opts adjacency.Options) (*Inputs, error) {
	in := &Inputs{}
	var err error

	if paths.Areas != "" {
		if in.Areas, err = tables.ReadAreasFile(paths.Areas); err != nil {
			return nil, fmt.Errorf("loading areas: %w", err)
		}
	}
	if in.Areas == nil {
		in.Areas = countries.NewAreaTable(nil)
	}

	if paths.Adjacency != "" {
		if in.Graph, err = adjacency.LoadFile(paths.Adjacency, opts); err != nil {
			return nil, fmt.Errorf("loading adjacency: %w", err)
		}
	} else {
		in.Graph = adjacency.Default(opts)
	}

	if paths.Observations != "" {
		if in.Observations, err = tables.ReadObservationsFile(paths.Observations); err != nil {
			return nil, fmt.Errorf("loading observations: %w", err)
		}
	}
	if paths.History != "" {
		if in.History, err = tables.ReadHistoryFile(paths.History); err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}
	if paths.Correlations != "" {
		if in.Correlations, err = tables.ReadCorrelationsFile(paths.Correlations); err != nil {
			return nil, fmt.Errorf("loading correlations: %w", err)
		}
	}
	if paths.BeeHistory != "" {
		if in.BeeHistory, err = tables.ReadBeeHistoryFile(paths.BeeHistory); err != nil {
			return nil, fmt.Errorf("loading bee history: %w", err)
		}
	}
	if paths.Colonies != "" {
		if in.Colonies, err = tables.ReadColoniesFile(paths.Colonies); err != nil {
			return nil, fmt.Errorf("loading colonies: %w", err)
		}
	}
	if paths.Predators != "" {
		if in.Predators, err = tables.ReadPredatorsFile(paths.Predators); err != nil {
			return nil, fmt.Errorf("loading predators: %w", err)
		}
	}
	return in, nil
}
