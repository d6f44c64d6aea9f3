package spreading

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/countries"
	"github.com/nvandessel/hornetcast/internal/logging"
	"github.com/nvandessel/hornetcast/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// line builds the path graph A - B - C - D.
func line() *adjacency.Graph {
	return adjacency.New(map[string][]string{
		"A": {"B"},
		"B": {"C"},
		"C": {"D"},
	}, adjacency.Options{})
}

func areas() countries.AreaTable {
	return countries.NewAreaTable(map[string]float64{
		"A": 1000, "B": 2000, "C": 400, "D": 800,
	})
}

// rowFor returns the row for country, or nil.
func rowFor(rows []models.SpreadRow, country string) *models.SpreadRow {
	for i := range rows {
		if rows[i].Country == country {
			return &rows[i]
		}
	}
	return nil
}

func TestStep_Stage1StaysBelowThreshold(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"A": {Stage: 1, StageYear: 1, HiveDensity: 0.0001, AreaKm2: 1000}}

	next, rows, events := sim.Step(2026, prev)

	a := next["A"]
	if math.Abs(a.HiveDensity-0.000135) > 1e-15 {
		t.Errorf("density = %v, want 0.000135", a.HiveDensity)
	}
	if a.Stage != models.StageNewlyInvaded || a.StageYear != 2 {
		t.Errorf("stage/year = %v/%d, want 1/2", a.Stage, a.StageYear)
	}
	if len(events) != 0 {
		t.Errorf("expected no invasions, got %v", events)
	}
	if r := rowFor(rows, "A"); r == nil || r.HiveDensity != 0.000135 || r.HiveCount != 0 {
		t.Errorf("unexpected row: %+v", r)
	}
}

func TestStep_Stage1AdvancesAndResetsYear(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"A": {Stage: 1, StageYear: 6, HiveDensity: 0.00018, AreaKm2: 1000}}

	next, _, _ := sim.Step(2026, prev)

	a := next["A"]
	if math.Abs(a.HiveDensity-0.000243) > 1e-15 {
		t.Errorf("density = %v, want 0.000243", a.HiveDensity)
	}
	if a.Stage != models.StageExpanding || a.StageYear != 1 {
		t.Errorf("stage/year = %v/%d, want 2/1", a.Stage, a.StageYear)
	}
}

func TestStep_InvasionFromSaturatedNeighbor(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"C": {Stage: 3, StageYear: 4, HiveDensity: 0.01, AreaKm2: 400}}

	next, rows, events := sim.Step(2030, prev)

	for _, country := range []string{"B", "D"} {
		st, ok := next[country]
		if !ok {
			t.Fatalf("%s should be invaded", country)
		}
		area, _ := areas().Area(country)
		if st.Stage != models.StageNewlyInvaded || st.StageYear != 1 {
			t.Errorf("%s stage/year = %v/%d, want 1/1", country, st.Stage, st.StageYear)
		}
		if st.HiveDensity != 2/area {
			t.Errorf("%s density = %v, want exactly %v", country, st.HiveDensity, 2/area)
		}
		if r := rowFor(rows, country); r == nil || r.HiveCount != 2 {
			t.Errorf("%s row = %+v, want hive_count 2", country, r)
		}
	}
	if _, ok := next["A"]; ok {
		t.Error("A is two hops away and must not be invaded")
	}

	want := []models.InvasionEvent{
		{Year: 2030, Country: "B", Source: "C", SourceStage: 3, SourceDensity: 0.01},
		{Year: 2030, Country: "D", Source: "C", SourceStage: 3, SourceDensity: 0.01},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_NoInvasionFromStage1(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"B": {Stage: 1, StageYear: 1, HiveDensity: 0.00001, AreaKm2: 2000}}

	next, _, events := sim.Step(2030, prev)

	if len(next) != 1 || len(events) != 0 {
		t.Errorf("stage-1 country must not invade: state=%v events=%v", next, events)
	}
}

func TestStep_SynchronousUpdate(t *testing.T) {
	// A reaches stage 2 during 2030; B reads A's 2029 stage (1) and waits.
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"A": {Stage: 1, StageYear: 3, HiveDensity: 0.00018, AreaKm2: 1000}}

	next, _, _ := sim.Step(2030, prev)
	if next["A"].Stage != models.StageExpanding {
		t.Fatalf("A should advance in 2030, got %v", next["A"].Stage)
	}
	if _, ok := next["B"]; ok {
		t.Fatal("B must not be invaded by a same-year transition")
	}

	next2, _, events := sim.Step(2031, next)
	if _, ok := next2["B"]; !ok {
		t.Error("B should be invaded the following year")
	}
	if len(events) != 1 || events[0].Source != "A" {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestStep_MissingAreaSkipsInvasion(t *testing.T) {
	sim := NewSimulator(line(), countries.NewAreaTable(map[string]float64{"C": 400}), Config{})
	prev := State{"C": {Stage: 2, StageYear: 1, HiveDensity: 0.001, AreaKm2: 400}}

	next, _, events := sim.Step(2030, prev)

	if len(next) != 1 || len(events) != 0 {
		t.Errorf("countries without area must be skipped: state=%v events=%v", next, events)
	}
}

func TestStep_DoesNotMutatePrev(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	prev := State{"C": {Stage: 3, StageYear: 1, HiveDensity: 0.01, AreaKm2: 400}}
	before := prev.Clone()

	sim.Step(2030, prev)

	if diff := cmp.Diff(before, prev); diff != "" {
		t.Errorf("prev mutated (-before +after):\n%s", diff)
	}
}

func TestStep_TieBreak(t *testing.T) {
	graph := adjacency.New(map[string][]string{"X": {"Beta", "Alpha", "Gamma"}}, adjacency.Options{})
	area := countries.NewAreaTable(map[string]float64{"X": 100})
	prev := State{
		"Alpha": {Stage: 2, StageYear: 1, HiveDensity: 0.001, AreaKm2: 1},
		"Beta":  {Stage: 3, StageYear: 1, HiveDensity: 0.009, AreaKm2: 1},
		"Gamma": {Stage: 3, StageYear: 1, HiveDensity: 0.009, AreaKm2: 1},
	}

	tests := []struct {
		name     string
		tieBreak TieBreak
		want     string
	}{
		{"highest density then name", TieBreakDensity, "Beta"},
		{"name only", TieBreakName, "Alpha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulator(graph, area, Config{TieBreak: tt.tieBreak})
			_, _, events := sim.Step(2030, prev)
			if len(events) != 1 || events[0].Source != tt.want {
				t.Errorf("events = %v, want source %s", events, tt.want)
			}
		})
	}
}

func TestStep_CoercesNonFinite(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	rec := &fakeRecorder{}
	sim.SetRecorder(rec)
	prev := State{
		"A": {Stage: 3, StageYear: 1, HiveDensity: math.NaN(), AreaKm2: 1000},
		"D": {Stage: 1, StageYear: 1, HiveDensity: 0.0001, AreaKm2: math.Inf(1)},
	}

	next, rows, _ := sim.Step(2030, prev)

	if a, ok := next["A"]; !ok || a.HiveDensity != 0 {
		t.Errorf("A should be retained with density 0, got %+v (present %v)", a, ok)
	}
	if d := next["D"]; d.AreaKm2 != 0 {
		t.Errorf("D area should be coerced to 0, got %v", d.AreaKm2)
	}
	for _, r := range rows {
		if math.IsNaN(r.HiveDensity) || math.IsInf(r.HiveDensity, 0) {
			t.Errorf("non-finite density in row %+v", r)
		}
	}
	if rec.coerced != 2 {
		t.Errorf("coerced = %d, want 2", rec.coerced)
	}
}

func TestSeed(t *testing.T) {
	history := []models.CountryYearRecord{
		{Country: "France", Year: 2023, AreaKm2: 550000, HiveDensity: models.Float64Ptr(0.001), FinalStage: 2},
		{Country: "France", Year: 2024, AreaKm2: 550000, HiveDensity: models.Float64Ptr(0.002), FinalStage: 2},
		{Country: "Czech Republic", Year: 2024, HiveDensity: models.Float64Ptr(0.006)},
		{Country: "Atlantis", Year: 2024},
	}
	sim := NewSimulator(adjacency.Default(adjacency.Options{}), countries.NewAreaTable(map[string]float64{"Czechia": 78871}), Config{})

	state, year, err := sim.Seed(history, 0)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if year != 2024 {
		t.Errorf("seed year = %d, want 2024", year)
	}
	want := State{
		"France":  {Stage: 2, StageYear: 1, HiveDensity: 0.002, AreaKm2: 550000},
		"Czechia": {Stage: 3, StageYear: 1, HiveDensity: 0.006, AreaKm2: 78871},
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Errorf("Seed() mismatch (-want +got):\n%s", diff)
	}

	state, _, err = sim.Seed(history, 2023)
	if err != nil || len(state) != 1 || state["France"].HiveDensity != 0.001 {
		t.Errorf("Seed(2023) = %v, %v", state, err)
	}
}

func TestSeed_Empty(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})

	if _, _, err := sim.Seed(nil, 0); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("Seed(nil) error = %v, want ErrEmptySeed", err)
	}
	history := []models.CountryYearRecord{{Country: "A", Year: 2024}}
	if _, _, err := sim.Seed(history, 0); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("Seed(no stage) error = %v, want ErrEmptySeed", err)
	}
	if _, _, err := sim.Seed(history, 1999); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("Seed(missing year) error = %v, want ErrEmptySeed", err)
	}
}

func TestResume(t *testing.T) {
	rows := []models.SpreadRow{
		{Year: 2030, Country: "A", Stage: 3, StageYear: 4, HiveDensity: 0.01, HiveCount: 10},
		{Year: 2031, Country: "A", Stage: 3, StageYear: 5, HiveDensity: 0.012, HiveCount: 12},
		{Year: 2031, Country: "Atlantis", Stage: 3, StageYear: 2, HiveDensity: 0.5, HiveCount: 5},
	}

	state, year, err := Resume(rows, areas())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if year != 2031 {
		t.Errorf("year = %d, want 2031", year)
	}
	want := State{
		"A":        {Stage: 3, StageYear: 5, HiveDensity: 0.012, AreaKm2: 1000},
		"Atlantis": {Stage: 3, StageYear: 2, HiveDensity: 0.5, AreaKm2: 10},
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Errorf("Resume() mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := Resume(nil, areas()); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("Resume(nil) error = %v, want ErrEmptySeed", err)
	}
}

func TestResumeState_ContinuesExactly(t *testing.T) {
	graph := adjacency.New(map[string][]string{"A": {"B"}}, adjacency.Options{})
	areaTable := countries.NewAreaTable(map[string]float64{"A": 1000, "B": 3000000})
	seed := State{"A": {Stage: 3, StageYear: 1, HiveDensity: 0.01, AreaKm2: 1000}}
	ctx := context.Background()

	straight, err := NewSimulator(graph, areaTable, Config{HorizonYear: 2040}).Run(ctx, seed, 2025)
	if err != nil {
		t.Fatalf("Run(straight) error = %v", err)
	}

	first, err := NewSimulator(graph, areaTable, Config{HorizonYear: 2028}).Run(ctx, seed, 2025)
	if err != nil {
		t.Fatalf("Run(first leg) error = %v", err)
	}
	state, year, err := ResumeState(first.Final, first.EndYear)
	if err != nil {
		t.Fatalf("ResumeState() error = %v", err)
	}
	if year != 2028 {
		t.Errorf("year = %d, want 2028", year)
	}
	second, err := NewSimulator(graph, areaTable, Config{HorizonYear: 2040}).Run(ctx, state, year)
	if err != nil {
		t.Fatalf("Run(second leg) error = %v", err)
	}

	resumed := append(append([]models.SpreadRow{}, first.Rows...), second.Rows...)
	if diff := cmp.Diff(straight.Rows, resumed); diff != "" {
		t.Errorf("resumed rows differ from an uninterrupted run (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(straight.Final, second.Final); diff != "" {
		t.Errorf("final state mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := ResumeState(nil, 2028); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("ResumeState(nil) error = %v, want ErrEmptySeed", err)
	}
}

func europeSeed() State {
	return State{
		"France": {Stage: 3, StageYear: 3, HiveDensity: 0.012, AreaKm2: 551695},
		"Spain":  {Stage: 2, StageYear: 2, HiveDensity: 0.0011, AreaKm2: 505990},
		"Italy":  {Stage: 1, StageYear: 1, HiveDensity: 0.00005, AreaKm2: 301340},
	}
}

func europeAreas() countries.AreaTable {
	return countries.NewAreaTable(map[string]float64{
		"Portugal": 92212, "Belgium": 30528, "Germany": 357588, "Switzerland": 41285,
		"Luxembourg": 2586, "Netherlands": 41850, "Austria": 83879, "Slovenia": 20273,
		"Denmark": 42933, "Poland": 312696, "Czechia": 78871, "Slovakia": 49035,
		"Hungary": 93028, "Croatia": 56594, "Serbia": 88361, "Romania": 238397,
		"Bulgaria": 110879, "Greece": 131957, "Lithuania": 65300, "Latvia": 64589,
		"Estonia": 45228, "Finland": 338455, "Sweden": 450295, "Norway": 385207,
		"Bosnia and Herzegovina": 51197, "Ukraine": 603550,
	})
}

func TestRun_WorkersProduceIdenticalOutput(t *testing.T) {
	graph := adjacency.Default(adjacency.Options{})

	seq := NewSimulator(graph, europeAreas(), Config{HorizonYear: 2050})
	par := NewSimulator(graph, europeAreas(), Config{HorizonYear: 2050, Workers: 4})

	want, err := seq.Run(context.Background(), europeSeed(), 2025)
	if err != nil {
		t.Fatalf("sequential Run() error = %v", err)
	}
	got, err := par.Run(context.Background(), europeSeed(), 2025)
	if err != nil {
		t.Fatalf("parallel Run() error = %v", err)
	}

	if diff := cmp.Diff(want.Rows, got.Rows); diff != "" {
		t.Errorf("rows differ (-seq +par):\n%s", diff)
	}
	if diff := cmp.Diff(want.Events, got.Events); diff != "" {
		t.Errorf("events differ (-seq +par):\n%s", diff)
	}
}

func TestRun_Forecast(t *testing.T) {
	var buf bytes.Buffer
	sim := NewSimulator(adjacency.Default(adjacency.Options{}), europeAreas(), Config{HorizonYear: 2050})
	sim.SetLogger(logging.NewLogger("info", &buf), nil)
	rec := &fakeRecorder{}
	sim.SetRecorder(rec)

	fc, err := sim.Run(context.Background(), europeSeed(), 2025)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fc.StartYear != 2025 || fc.EndYear != 2050 {
		t.Errorf("years = %d..%d, want 2025..2050", fc.StartYear, fc.EndYear)
	}
	if rec.years != 25 {
		t.Errorf("recorded years = %d, want 25", rec.years)
	}
	if rec.invasions != len(fc.Events) || len(fc.Events) == 0 {
		t.Errorf("recorded invasions = %d, events = %d", rec.invasions, len(fc.Events))
	}

	// Rows are sorted by (year, country) and stages never regress.
	last := make(map[string]models.Stage)
	for i, r := range fc.Rows {
		if i > 0 {
			p := fc.Rows[i-1]
			if p.Year > r.Year || (p.Year == r.Year && p.Country >= r.Country) {
				t.Fatalf("rows out of order at %d: %+v then %+v", i, p, r)
			}
		}
		if r.Stage < last[r.Country] {
			t.Errorf("%s regressed in %d", r.Country, r.Year)
		}
		last[r.Country] = r.Stage
	}

	if got := len(fc.ByYear(2026)); got < 3 {
		t.Errorf("ByYear(2026) = %d rows, want at least the 3 seeded countries", got)
	}
	if _, ok := fc.Series()["France"][2050]; !ok {
		t.Error("Series() missing France 2050")
	}
	if y, ok := fc.InvasionYear("Portugal"); !ok || y != 2026 {
		t.Errorf("Portugal invaded in %d (%v), want 2026 from Spain", y, ok)
	}
	if !strings.Contains(buf.String(), "2026: Spain -> Portugal invaded") {
		t.Errorf("missing invasion log line, got:\n%s", buf.String())
	}
}

func TestRun_HorizonBeforeStart(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{HorizonYear: 2020})
	fc, err := sim.Run(context.Background(), State{"A": {Stage: 1, StageYear: 1, HiveDensity: 0.0001, AreaKm2: 1000}}, 2025)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fc.Rows) != 0 || fc.EndYear != 2025 || len(fc.Final) != 1 {
		t.Errorf("unexpected forecast: %+v", fc)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		sim := NewSimulator(line(), areas(), Config{Workers: workers})
		_, err := sim.Run(ctx, State{"A": {Stage: 3, StageYear: 1, HiveDensity: 0.01, AreaKm2: 1000}}, 2025)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestRun_EmptySeed(t *testing.T) {
	sim := NewSimulator(line(), areas(), Config{})
	if _, err := sim.Run(context.Background(), nil, 2025); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("error = %v, want ErrEmptySeed", err)
	}
}

func TestNewSimulator_Defaults(t *testing.T) {
	cfg := NewSimulator(nil, nil, Config{Workers: -2}).Config()
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

type fakeRecorder struct {
	years     int
	invasions int
	coerced   int
}

func (f *fakeRecorder) ObserveYear(int, int, time.Duration) { f.years++ }
func (f *fakeRecorder) ObserveInvasion(int, string)         { f.invasions++ }
func (f *fakeRecorder) ObserveCoerced(string)               { f.coerced++ }
