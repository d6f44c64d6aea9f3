package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nvandessel/hornetcast/internal/config"
	"github.com/nvandessel/hornetcast/internal/export"
	"github.com/nvandessel/hornetcast/internal/store"
	"github.com/nvandessel/hornetcast/internal/tables"
)

// Output file names.
const (
	StagedFile       = "staged_history.csv"
	SpreadFile       = "spread_forecast"
	EventsFile       = "invasion_events.csv"
	ThresholdsFile   = "spread_thresholds_by_direction.csv"
	StageYearsFile   = "stage_year_summary.csv"
	ScoresFile       = "predation_scores.csv"
	AdjustedFile     = "adjusted_forecast.csv"
	TrendsFile       = "bee_trends.csv"
	CorrelationsFile = "correlations.csv"
	BeeFile          = "bee_forecast"
)

// Write writes every non-empty table of res into dir and returns the
// written paths. The spread and bee forecasts follow format; the other
// tables are always CSV.
func Write(res *Result, dir, format string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	csv := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		if err := tables.WriteFile(path, write); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := csv(StagedFile, func(w io.Writer) error { return tables.WriteStaged(w, res.Staged) }); err != nil {
		return written, err
	}
	if err := csv(ThresholdsFile, func(w io.Writer) error {
		return tables.WriteSpreadThresholds(w, res.Analysis.SpreadEvents)
	}); err != nil {
		return written, err
	}
	if err := csv(StageYearsFile, func(w io.Writer) error {
		return tables.WriteStageYears(w, res.Analysis.StageYears)
	}); err != nil {
		return written, err
	}

	if res.Spread != nil {
		path, err := writeSpread(dir, format, res)
		if err != nil {
			return written, err
		}
		written = append(written, path)
		if err := csv(EventsFile, func(w io.Writer) error { return tables.WriteEvents(w, res.Events) }); err != nil {
			return written, err
		}
	}

	if len(res.Scores) > 0 {
		if err := csv(ScoresFile, func(w io.Writer) error { return tables.WritePredationScores(w, res.Scores) }); err != nil {
			return written, err
		}
		if err := csv(AdjustedFile, func(w io.Writer) error { return tables.WriteAdjusted(w, res.Adjusted) }); err != nil {
			return written, err
		}
	}
	if len(res.Trends) > 0 {
		if err := csv(TrendsFile, func(w io.Writer) error { return tables.WriteTrends(w, res.Trends) }); err != nil {
			return written, err
		}
	}
	if len(res.Correlations) > 0 {
		if err := csv(CorrelationsFile, func(w io.Writer) error {
			return tables.WriteCorrelations(w, res.Correlations)
		}); err != nil {
			return written, err
		}
	}

	if len(res.Bees) > 0 {
		path := filepath.Join(dir, BeeFile+"."+format)
		var err error
		if format == config.FormatArrow {
			err = export.WriteBeesFile(path, res.Bees)
		} else {
			err = tables.WriteFile(path, func(w io.Writer) error { return tables.WriteBeeForecast(w, res.Bees) })
		}
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeSpread(dir, format string, res *Result) (string, error) {
	path := filepath.Join(dir, SpreadFile+"."+format)
	if format == config.FormatArrow {
		return path, export.WriteSpreadFile(path, res.Spread.Rows)
	}
	return path, tables.WriteFile(path, func(w io.Writer) error {
		return tables.WriteSpreadForecast(w, res.Spread.Rows)
	})
}

// Save stores the spread forecast, and the bee forecast linked to it when
// present. params are recorded on both runs.
func Save(ctx context.Context, st store.RunStore, res *Result, params map[string]any) (store.Run, *store.Run, error) {
	spread, err := st.SaveSpreadRun(ctx, store.SpreadRun{
		StartYear: res.Spread.StartYear,
		EndYear:   res.Spread.EndYear,
		Params:    params,
		Rows:      res.Spread.Rows,
		Events:    res.Events,
		Final:     res.Spread.Final,
	})
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("saving spread run: %w", err)
	}
	if len(res.Bees) == 0 {
		return spread, nil, nil
	}

	bee, err := st.SaveBeeRun(ctx, store.BeeRun{
		ParentID:  spread.ID,
		StartYear: res.BeeSeedYear,
		EndYear:   res.Spread.EndYear,
		Params:    params,
		Rows:      res.Bees,
	})
	if err != nil {
		return spread, nil, fmt.Errorf("saving bee run: %w", err)
	}
	return spread, &bee, nil
}
