package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/hornetcast/internal/analysis"
	"github.com/nvandessel/hornetcast/internal/correlation"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/predation"
)

// Output headers.
var (
	SpreadHeader      = []string{"year", "country", "stage", "stage_year", "hive_density", "hive_count"}
	BeeHeader         = []string{"Year", "Country", "Hornet_Density", "Bee_Density", "Bee_Count", "Bee_Density_Growth"}
	StagedHeader      = []string{"country", "year", "hive_count", "area_km2", "hive_density", "invasion_stage", "final_stage", "stage_label"}
	EventHeader       = []string{"year", "country", "source", "source_stage", "source_density"}
	ThresholdHeader   = []string{"from", "to", "year", "density_at_spread", "hives_at_spread"}
	StageYearHeader   = []string{"final_stage", "stage_year", "avg_density", "avg_hives", "num_countries"}
	CorrelationHeader = []string{"Country", "Density_vs_BeeGrowth_r", "Density_p_value", "Count_vs_BeeGrowth_r", "Count_p_value", "Data_Points"}
	AdjustedHeader    = []string{"year", "country", "stage", "stage_year", "hive_density", "hive_count", "predation_score", "adjusted_hive_density"}
	TrendHeader       = []string{"Country", "Year", "Bee_Count", "Area_km2", "Bee_Density", "Bee_Density_Growth"}
	PredationHeader   = []string{"country", "predator_total", "predation_score"}
)

// writeCSV writes header and n rows produced by row.
func writeCSV(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func stageCell(s models.Stage) string {
	if s == models.StageNone {
		return ""
	}
	return itoa(int(s))
}

// WriteSpreadForecast writes the spread forecast table.
func WriteSpreadForecast(w io.Writer, rows []models.SpreadRow) error {
	return writeCSV(w, SpreadHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			itoa(r.Year), r.Country, stageCell(r.Stage), itoa(r.StageYear),
			strconv.FormatFloat(r.HiveDensity, 'f', 7, 64),
			strconv.FormatInt(r.HiveCount, 10),
		}
	})
}

// WriteBeeForecast writes the bee forecast table.
func WriteBeeForecast(w io.Writer, rows []models.BeeRow) error {
	return writeCSV(w, BeeHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			itoa(r.Year), r.Country, formatFloat(r.HornetDensity),
			strconv.FormatFloat(r.BeeDensity, 'f', 6, 64),
			strconv.FormatInt(r.BeeCount, 10),
			formatFloat(r.BeeDensityGrowth),
		}
	})
}

// WriteStaged writes classified historical records.
func WriteStaged(w io.Writer, records []models.CountryYearRecord) error {
	return writeCSV(w, StagedHeader, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.Country, itoa(r.Year), formatFloat(r.HiveCount), formatFloat(r.AreaKm2),
			formatOptional(r.HiveDensity), stageCell(r.InvasionStage), stageCell(r.FinalStage),
			r.FinalStage.String(),
		}
	})
}

// WriteEvents writes simulated invasion events.
func WriteEvents(w io.Writer, events []models.InvasionEvent) error {
	return writeCSV(w, EventHeader, len(events), func(i int) []string {
		e := events[i]
		return []string{itoa(e.Year), e.Country, e.Source, stageCell(e.SourceStage), formatFloat(e.SourceDensity)}
	})
}

// WriteSpreadThresholds writes historical spread directions.
func WriteSpreadThresholds(w io.Writer, events []analysis.SpreadEvent) error {
	return writeCSV(w, ThresholdHeader, len(events), func(i int) []string {
		e := events[i]
		return []string{e.From, e.To, itoa(e.Year), formatFloat(e.DensityAtSpread), formatFloat(e.HivesAtSpread)}
	})
}

// WriteStageYears writes the stage-year growth summary.
func WriteStageYears(w io.Writer, stats []analysis.StageYearStat) error {
	return writeCSV(w, StageYearHeader, len(stats), func(i int) []string {
		s := stats[i]
		return []string{stageCell(s.Stage), itoa(s.StageYear), formatFloat(s.AvgDensity), formatFloat(s.AvgHives), itoa(s.Countries)}
	})
}

// WriteCorrelations writes per-country correlations. Undefined
// coefficients are written as empty cells.
func WriteCorrelations(w io.Writer, results []correlation.Result) error {
	return writeCSV(w, CorrelationHeader, len(results), func(i int) []string {
		r := results[i]
		return []string{r.Country, formatFloat(r.DensityR), formatFloat(r.DensityP), formatOptional(r.CountR), formatOptional(r.CountP), itoa(r.Points)}
	})
}

// WriteAdjusted writes the predation-adjusted spread forecast.
func WriteAdjusted(w io.Writer, rows []predation.AdjustedRow) error {
	return writeCSV(w, AdjustedHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			itoa(r.Year), r.Country, stageCell(r.Stage), itoa(r.StageYear),
			strconv.FormatFloat(r.HiveDensity, 'f', 7, 64), strconv.FormatInt(r.HiveCount, 10),
			formatFloat(r.PredationScore), formatFloat(r.AdjustedDensity),
		}
	})
}

// WriteTrends writes historical bee densities and growth.
func WriteTrends(w io.Writer, trends []models.BeeTrend) error {
	return writeCSV(w, TrendHeader, len(trends), func(i int) []string {
		t := trends[i]
		return []string{t.Country, itoa(t.Year), formatFloat(t.BeeCount), formatFloat(t.AreaKm2), formatFloat(t.BeeDensity), formatOptional(t.Growth)}
	})
}

// WritePredationScores writes scaled predation scores.
func WritePredationScores(w io.Writer, scores []predation.Score) error {
	return writeCSV(w, PredationHeader, len(scores), func(i int) []string {
		s := scores[i]
		return []string{s.Country, formatFloat(s.Total), formatFloat(s.Score)}
	})
}

// WriteFile creates path (and its directory) and writes it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
