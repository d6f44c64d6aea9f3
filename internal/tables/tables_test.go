package tables

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/hornetcast/internal/analysis"
	"github.com/nvandessel/hornetcast/internal/correlation"
	"github.com/nvandessel/hornetcast/internal/models"
	"github.com/nvandessel/hornetcast/internal/predation"
)

func TestReadObservations(t *testing.T) {
	in := "# aggregated by the clustering step\n Country ,YEAR,Hornet_Count,area_km2\nCzech Republic,2020,12,\nFrance,2021.0,40,551695\n"
	got, err := ReadObservations(strings.NewReader(in), "obs.csv")
	if err != nil {
		t.Fatalf("ReadObservations() error = %v", err)
	}
	want := []models.HiveObservation{
		{Country: "Czechia", Year: 2020, HiveCount: 12},
		{Country: "France", Year: 2021, HiveCount: 40, AreaKm2: 551695},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"empty input", "", ErrEmptyTable},
		{"header only", "country,year,hive_count\n", ErrEmptyTable},
		{"missing column", "country,year\nFrance,2020\n", ErrMissingColumn},
		{"bad year", "country,year,hive_count\nFrance,twenty,3\n", ErrBadValue},
		{"fractional year", "country,year,hive_count\nFrance,2020.5,3\n", ErrBadValue},
		{"bad count", "country,year,hive_count\nFrance,2020,lots\n", ErrBadValue},
		{"empty country", "country,year,hive_count\n,2020,3\n", ErrBadValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObservations(strings.NewReader(tt.in), "obs.csv")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadHistory(t *testing.T) {
	in := "country,year,hive_count,area_km2,hive_density,final_stage\n" +
		"France,2023,550,550000,0.001,2\n" +
		"Spain,2023,10,500000,,1.0\n" +
		"Malta,2023,,,NaN,\n"
	got, err := ReadHistory(strings.NewReader(in), "history.csv")
	if err != nil {
		t.Fatalf("ReadHistory() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if d, _ := got[0].Density(); d != 0.001 || got[0].FinalStage != models.StageExpanding {
		t.Errorf("France = %+v", got[0])
	}
	if d, ok := got[1].Density(); !ok || d != 10.0/500000 || got[1].FinalStage != models.StageNewlyInvaded {
		t.Errorf("Spain density should be derived, got %v (%v), stage %v", d, ok, got[1].FinalStage)
	}
	if got[2].HiveDensity != nil || got[2].FinalStage != models.StageNone {
		t.Errorf("Malta should be null, got %+v", got[2])
	}

	_, err = ReadHistory(strings.NewReader("country,year,stage\nFrance,2020,7\n"), "bad.csv")
	if !errors.Is(err, ErrBadValue) {
		t.Errorf("stage 7 error = %v, want ErrBadValue", err)
	}
}

func TestReadHistory_RequiresSeedColumns(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"country and year only", "country,year\nFrance,2020\n", ErrMissingColumn},
		{"count without area", "country,year,hive_count\nFrance,2020,30\n", ErrMissingColumn},
		{"density", "country,year,hive_density\nFrance,2020,0.001\n", nil},
		{"stage", "country,year,stage\nFrance,2020,2\n", nil},
		{"invasion stage", "country,year,invasion_stage\nFrance,2020,2\n", nil},
		{"count and area", "country,year,hive_count,area_km2\nFrance,2020,30,1000\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHistory(strings.NewReader(tt.in), "history.csv")
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ReadHistory() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadHistory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadAreasAndCorrelations(t *testing.T) {
	areas, err := ReadAreas(strings.NewReader("ADMIN,area\nCzech Republic,78871\nNowhere,-1\n"), "areas.csv")
	if err != nil {
		t.Fatalf("ReadAreas() error = %v", err)
	}
	if a, ok := areas.Area("Czechia"); !ok || a != 78871 {
		t.Errorf("Czechia area = %v (%v)", a, ok)
	}
	if _, ok := areas.Area("Nowhere"); ok {
		t.Error("negative areas should be dropped")
	}

	corr, err := ReadCorrelations(strings.NewReader("Country,Density_vs_BeeGrowth_r,Data_Points\nFrance,-0.42,8\nSpain,,3\n"), "corr.csv")
	if err != nil {
		t.Fatalf("ReadCorrelations() error = %v", err)
	}
	if diff := cmp.Diff(map[string]float64{"France": -0.42}, corr); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBees(t *testing.T) {
	hist, err := ReadBeeHistory(strings.NewReader("Country,Year,Bee_Density,Bee_Count,Area_km2\nFrance,2024,0.02,11000,550000\nSpain,2024,,5,\n"), "bees.csv")
	if err != nil {
		t.Fatalf("ReadBeeHistory() error = %v", err)
	}
	if hist[0].BeeDensity != 0.02 || hist[0].AreaKm2 != 550000 {
		t.Errorf("France = %+v", hist[0])
	}
	if !math.IsNaN(hist[1].BeeDensity) || hist[1].AreaKm2 != 0 {
		t.Errorf("Spain = %+v, want NaN density and no area", hist[1])
	}

	cols, err := ReadColonies(strings.NewReader("Country,Year,Honey_bee_colonies\nFrance,2020,1000\nFrance,2021,\n"), "colonies.csv")
	if err != nil {
		t.Fatalf("ReadColonies() error = %v", err)
	}
	if diff := cmp.Diff([]models.BeeColonyRecord{{Country: "France", Year: 2020, Colonies: 1000}}, cols); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPredators(t *testing.T) {
	species, err := ReadPredators(strings.NewReader("country,Gallus,Martes,Pernis\nFrance,1,2,3\nSpain,,4,0\n"), "pred.csv")
	if err != nil {
		t.Fatalf("ReadPredators() error = %v", err)
	}
	if species[0].Total() != 6 || species[1].Total() != 4 {
		t.Errorf("totals = %v, %v", species[0].Total(), species[1].Total())
	}

	totals, err := ReadPredators(strings.NewReader("country,Gallus,predator_total,predation_score\nFrance,1,9,0.5\n"), "pred.csv")
	if err != nil {
		t.Fatalf("ReadPredators() error = %v", err)
	}
	if totals[0].Total() != 9 {
		t.Errorf("predator_total should win, got %v", totals[0].Total())
	}
}

func TestSpreadForecastRoundTrip(t *testing.T) {
	rows := []models.SpreadRow{
		{Year: 2026, Country: "France", Stage: 3, StageYear: 4, HiveDensity: 0.0123457, HiveCount: 6811},
		{Year: 2026, Country: "Portugal", Stage: 1, StageYear: 1, HiveDensity: 0.0000217, HiveCount: 2},
	}
	var buf bytes.Buffer
	if err := WriteSpreadForecast(&buf, rows); err != nil {
		t.Fatalf("WriteSpreadForecast() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "year,country,stage,stage_year,hive_density,hive_count\n2026,France,3,4,0.0123457,6811\n") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	back, err := ReadSpreadForecast(&buf, "spread.csv")
	if err != nil {
		t.Fatalf("ReadSpreadForecast() error = %v", err)
	}
	if diff := cmp.Diff(rows, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBeeForecast(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBeeForecast(&buf, []models.BeeRow{
		{Year: 2025, Country: "France", HornetDensity: 0.006, BeeDensity: 0.019123, BeeCount: 10518, BeeDensityGrowth: 0},
		{Year: 2026, Country: "France", HornetDensity: 0.0065, BeeDensity: 0.018, BeeCount: 9900, BeeDensityGrowth: -0.0587},
	})
	if err != nil {
		t.Fatalf("WriteBeeForecast() error = %v", err)
	}
	want := "Year,Country,Hornet_Density,Bee_Density,Bee_Count,Bee_Density_Growth\n" +
		"2025,France,0.006,0.019123,10518,0\n" +
		"2026,France,0.0065,0.018000,9900,-0.0587\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriters(t *testing.T) {
	tests := []struct {
		name  string
		write func(*bytes.Buffer) error
		want  string
	}{
		{
			name: "staged",
			write: func(b *bytes.Buffer) error {
				return WriteStaged(b, []models.CountryYearRecord{
					{Country: "France", Year: 2020, HiveCount: 55, AreaKm2: 550000, HiveDensity: models.Float64Ptr(0.0001), InvasionStage: 1, FinalStage: 2},
					{Country: "Malta", Year: 2020},
				})
			},
			want: "France,2020,55,550000,0.0001,1,2,Expanding\nMalta,2020,0,0,,,,\n",
		},
		{
			name: "events",
			write: func(b *bytes.Buffer) error {
				return WriteEvents(b, []models.InvasionEvent{{Year: 2026, Country: "Portugal", Source: "Spain", SourceStage: 2, SourceDensity: 0.0011}})
			},
			want: "2026,Portugal,Spain,2,0.0011\n",
		},
		{
			name: "thresholds",
			write: func(b *bytes.Buffer) error {
				return WriteSpreadThresholds(b, []analysis.SpreadEvent{{From: "France", To: "Spain", Year: 2011, DensityAtSpread: 0.0001, HivesAtSpread: 55}})
			},
			want: "France,Spain,2011,0.0001,55\n",
		},
		{
			name: "stage years",
			write: func(b *bytes.Buffer) error {
				return WriteStageYears(b, []analysis.StageYearStat{{Stage: 2, StageYear: 1, AvgDensity: 0.00065, AvgHives: 350, Countries: 2}})
			},
			want: "2,1,0.00065,350,2\n",
		},
		{
			name: "correlations",
			write: func(b *bytes.Buffer) error {
				return WriteCorrelations(b, []correlation.Result{{Country: "Spain", DensityR: 0.9, DensityP: 0.04, Points: 5}})
			},
			want: "Spain,0.9,0.04,,,5\n",
		},
		{
			name: "adjusted",
			write: func(b *bytes.Buffer) error {
				return WriteAdjusted(b, []predation.AdjustedRow{{
					SpreadRow:       models.SpreadRow{Year: 2030, Country: "France", Stage: 3, StageYear: 2, HiveDensity: 0.01, HiveCount: 5517},
					PredationScore:  0.5,
					AdjustedDensity: 0.005,
				}})
			},
			want: "2030,France,3,2,0.0100000,5517,0.5,0.005\n",
		},
		{
			name: "trends",
			write: func(b *bytes.Buffer) error {
				g := 0.1
				return WriteTrends(b, []models.BeeTrend{
					{BeeRecord: models.BeeRecord{Country: "France", Year: 2020, BeeCount: 100, AreaKm2: 1000, BeeDensity: 0.1}},
					{BeeRecord: models.BeeRecord{Country: "France", Year: 2021, BeeCount: 110, AreaKm2: 1000, BeeDensity: 0.11}, Growth: &g},
				})
			},
			want: "France,2020,100,1000,0.1,\nFrance,2021,110,1000,0.11,0.1\n",
		},
		{
			name: "predation scores",
			write: func(b *bytes.Buffer) error {
				return WritePredationScores(b, []predation.Score{{Country: "France", Total: 40, Score: 0.5}})
			},
			want: "France,40,0.5\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.write(&buf); err != nil {
				t.Fatalf("write error = %v", err)
			}
			_, body, _ := strings.Cut(buf.String(), "\n")
			if body != tt.want {
				t.Errorf("got:\n%q\nwant:\n%q", body, tt.want)
			}
		})
	}
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "spread.csv")
	rows := []models.SpreadRow{{Year: 2026, Country: "Spain", Stage: 2, StageYear: 3, HiveDensity: 0.002, HiveCount: 1012}}

	err := WriteFile(path, func(w io.Writer) error { return WriteSpreadForecast(w, rows) })
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	back, err := ReadSpreadForecastFile(path)
	if err != nil {
		t.Fatalf("ReadSpreadForecastFile() error = %v", err)
	}
	if diff := cmp.Diff(rows, back); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadHistoryFile(filepath.Join(dir, "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}
