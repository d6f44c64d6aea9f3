package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/models"
)

func staged(country string, year int, stage models.Stage, density, hives float64) models.CountryYearRecord {
	return models.CountryYearRecord{
		Country:     country,
		Year:        year,
		HiveCount:   hives,
		HiveDensity: models.Float64Ptr(density),
		FinalStage:  stage,
	}
}

func history() []models.CountryYearRecord {
	return []models.CountryYearRecord{
		staged("France", 2010, 1, 0.0001, 55),
		staged("France", 2011, 2, 0.001, 550),
		staged("France", 2012, 2, 0.002, 1100),
		staged("Belgium", 2011, 1, 0.0003, 9),
		staged("Belgium", 2012, 1, 0.0004, 12),
		staged("Spain", 2011, 1, 0.00005, 25),
		staged("Spain", 2012, 2, 0.0003, 150),
		staged("Portugal", 2013, 1, 0.0001, 9),
		{Country: "Italy", Year: 2012, HiveCount: 3},
	}
}

func graph() *adjacency.Graph {
	return adjacency.New(map[string][]string{
		"France":   {"Belgium", "Spain", "Italy"},
		"Spain":    {"France", "Portugal"},
		"Portugal": {"Spain"},
	}, adjacency.Options{})
}

func TestFirstInvasions(t *testing.T) {
	want := []FirstInvasion{
		{Country: "France", Year: 2010},
		{Country: "Belgium", Year: 2011},
		{Country: "Spain", Year: 2011},
		{Country: "Portugal", Year: 2013},
	}
	if diff := cmp.Diff(want, FirstInvasions(history())); diff != "" {
		t.Errorf("FirstInvasions() mismatch (-want +got):\n%s", diff)
	}
}

func TestSpreadEvents(t *testing.T) {
	want := []SpreadEvent{
		{From: "France", To: "Belgium", Year: 2011, DensityAtSpread: 0.0001, HivesAtSpread: 55},
		{From: "France", To: "Spain", Year: 2011, DensityAtSpread: 0.0001, HivesAtSpread: 55},
		{From: "Spain", To: "Portugal", Year: 2013, DensityAtSpread: 0.0003, HivesAtSpread: 150},
	}
	if diff := cmp.Diff(want, SpreadEvents(history(), graph())); diff != "" {
		t.Errorf("SpreadEvents() mismatch (-want +got):\n%s", diff)
	}
}

func TestSpreadEvents_HighestDensityWins(t *testing.T) {
	records := []models.CountryYearRecord{
		staged("A", 2010, 2, 0.001, 1),
		staged("B", 2010, 3, 0.009, 1),
		staged("C", 2011, 1, 0.0001, 1),
	}
	g := adjacency.New(map[string][]string{"C": {"A", "B"}}, adjacency.Options{})

	events := SpreadEvents(records, g)
	if len(events) != 1 || events[0].From != "B" {
		t.Errorf("events = %+v, want single event from B", events)
	}
}

func TestSpreadEvents_RequiresPriorYearRecord(t *testing.T) {
	records := []models.CountryYearRecord{
		staged("A", 2008, 2, 0.001, 1),
		staged("C", 2011, 1, 0.0001, 1),
	}
	g := adjacency.New(map[string][]string{"C": {"A"}}, adjacency.Options{})
	if events := SpreadEvents(records, g); len(events) != 0 {
		t.Errorf("expected no events without a 2010 record for A, got %+v", events)
	}
}

func TestStageYearSummary(t *testing.T) {
	got := StageYearSummary(history())
	want := []StageYearStat{
		{Stage: 1, StageYear: 1, AvgDensity: models.Round((0.0001+0.0003+0.00005+0.0001)/4, 5), AvgHives: 24.5, Countries: 4},
		{Stage: 1, StageYear: 2, AvgDensity: 0.0004, AvgHives: 12, Countries: 1},
		{Stage: 2, StageYear: 1, AvgDensity: models.Round((0.001+0.0003)/2, 5), AvgHives: 350, Countries: 2},
		{Stage: 2, StageYear: 2, AvgDensity: 0.002, AvgHives: 1100, Countries: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StageYearSummary() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze(t *testing.T) {
	report := Analyze(history(), graph())
	if len(report.FirstInvasions) != 4 || len(report.SpreadEvents) != 3 || len(report.StageYears) != 4 {
		t.Errorf("unexpected report sizes: %d/%d/%d",
			len(report.FirstInvasions), len(report.SpreadEvents), len(report.StageYears))
	}
}
