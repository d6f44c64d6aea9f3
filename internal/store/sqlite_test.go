package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"

	"github.com/nvandessel/hornetcast/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", DefaultDBName))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSpread() SpreadRun {
	return SpreadRun{
		StartYear: 2026,
		EndYear:   2027,
		Params:    map[string]any{"horizon_year": float64(2027), "workers": float64(2)},
		Rows: []models.SpreadRow{
			{Year: 2026, Country: "Portugal", Stage: models.StageNewlyInvaded, StageYear: 1, HiveDensity: 0.0000217, HiveCount: 2},
			{Year: 2026, Country: "Spain", Stage: models.StageSaturated, StageYear: 4, HiveDensity: 0.0061234, HiveCount: 3098},
			{Year: 2027, Country: "Portugal", Stage: models.StageNewlyInvaded, StageYear: 2, HiveDensity: 0.0000293, HiveCount: 3},
			{Year: 2027, Country: "Spain", Stage: models.StageSaturated, StageYear: 5, HiveDensity: 0.0064511, HiveCount: 3264},
		},
		Events: []models.InvasionEvent{
			{Year: 2026, Country: "Portugal", Source: "Spain", SourceStage: models.StageSaturated, SourceDensity: 0.0058},
		},
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", DefaultDBName)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	run, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatalf("SaveSpreadRun() error = %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() after reopen error = %v", err)
	}
	if got.RowCount != 4 {
		t.Errorf("RowCount = %d, want 4", got.RowCount)
	}
}

func TestSaveSpreadRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := sampleSpread()

	run, err := s.SaveSpreadRun(ctx, in)
	if err != nil {
		t.Fatalf("SaveSpreadRun() error = %v", err)
	}
	if run.ID == "" || run.Kind != RunKindSpread {
		t.Fatalf("unexpected run: %+v", run)
	}

	rows, err := s.SpreadRows(ctx, run.ID)
	if err != nil {
		t.Fatalf("SpreadRows() error = %v", err)
	}
	if diff := cmp.Diff(in.Rows, rows); diff != "" {
		t.Errorf("SpreadRows() mismatch (-want +got):\n%s", diff)
	}

	events, err := s.InvasionEvents(ctx, run.ID)
	if err != nil {
		t.Fatalf("InvasionEvents() error = %v", err)
	}
	if diff := cmp.Diff(in.Events, events); diff != "" {
		t.Errorf("InvasionEvents() mismatch (-want +got):\n%s", diff)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if diff := cmp.Diff(in.Params, got.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
	if got.StartYear != 2026 || got.EndYear != 2027 {
		t.Errorf("years = %d..%d, want 2026..2027", got.StartYear, got.EndYear)
	}
}

func TestSaveBeeRun_LinksParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	spread, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatalf("SaveSpreadRun() error = %v", err)
	}

	in := BeeRun{
		ParentID:  spread.ID,
		StartYear: 2026,
		EndYear:   2026,
		Rows: []models.BeeRow{
			{Year: 2026, Country: "France", HornetDensity: 0.006, BeeDensity: 0.017812, BeeCount: 9750, BeeDensityGrowth: 0},
			{Year: 2026, Country: "Spain", HornetDensity: 0.0061, BeeDensity: 0.0048, BeeCount: 2429, BeeDensityGrowth: 0},
		},
	}
	run, err := s.SaveBeeRun(ctx, in)
	if err != nil {
		t.Fatalf("SaveBeeRun() error = %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.ParentID != spread.ID {
		t.Errorf("ParentID = %q, want %q", got.ParentID, spread.ID)
	}
	if got.Params != nil {
		t.Errorf("Params = %v, want nil", got.Params)
	}

	rows, err := s.BeeRows(ctx, run.ID)
	if err != nil {
		t.Fatalf("BeeRows() error = %v", err)
	}
	if diff := cmp.Diff(in.Rows, rows); diff != "" {
		t.Errorf("BeeRows() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveBeeRun_UnknownParent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveBeeRun(context.Background(), BeeRun{ParentID: "missing", StartYear: 2026, EndYear: 2026})
	if err == nil {
		t.Error("expected foreign key error for unknown parent")
	}
}

func TestListRunsAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatal(err)
	}
	bees, err := s.SaveBeeRun(ctx, BeeRun{ParentID: second.ID, StartYear: 2026, EndYear: 2030})
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{bees.ID, second.ID, first.ID}, ids); diff != "" {
		t.Errorf("ListRuns() order mismatch (-want +got):\n%s", diff)
	}

	spreadOnly, err := s.ListRuns(ctx, RunKindSpread)
	if err != nil {
		t.Fatal(err)
	}
	if len(spreadOnly) != 2 {
		t.Errorf("ListRuns(spread) = %d runs, want 2", len(spreadOnly))
	}

	latest, err := s.LatestRun(ctx, RunKindSpread)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("LatestRun() = %s, want %s", latest.ID, second.ID)
	}
	if !latest.CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", latest.CreatedAt, base.Add(2*time.Minute))
	}
}

func TestRunNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.LatestRun(ctx, RunKindBees); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() error = %v, want ErrRunNotFound", err)
	}
	if err := s.DeleteRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("DeleteRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestDeleteRun_CascadesRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}

	rows, err := s.SpreadRows(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("SpreadRows() after delete = %d rows, want 0", len(rows))
	}
	events, err := s.InvasionEvents(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("InvasionEvents() after delete = %d, want 0", len(events))
	}
}

func TestFinalState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleSpread()
	in.Final = map[string]models.CountryState{
		"Spain":    {Stage: models.StageSaturated, StageYear: 5, HiveDensity: 0.006451123456789, AreaKm2: 505990},
		"Portugal": {Stage: models.StageNewlyInvaded, StageYear: 2, HiveDensity: 2.93456789e-05, AreaKm2: 92212.5},
	}
	run, err := s.SaveSpreadRun(ctx, in)
	if err != nil {
		t.Fatalf("SaveSpreadRun() error = %v", err)
	}

	got, err := s.FinalState(ctx, run.ID)
	if err != nil {
		t.Fatalf("FinalState() error = %v", err)
	}
	if diff := cmp.Diff(in.Final, got); diff != "" {
		t.Errorf("FinalState() mismatch (-want +got):\n%s", diff)
	}

	bare, err := s.SaveSpreadRun(ctx, sampleSpread())
	if err != nil {
		t.Fatalf("SaveSpreadRun() error = %v", err)
	}
	if got, err := s.FinalState(ctx, bare.ID); err != nil || len(got) != 0 {
		t.Errorf("FinalState() without state = %v, %v; want empty", got, err)
	}

	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if got, err := s.FinalState(ctx, run.ID); err != nil || len(got) != 0 {
		t.Errorf("FinalState() after delete = %v, %v; want empty", got, err)
	}
}

func TestInitSchema_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)
	ctx := context.Background()

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (1, datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on a v1 database error = %v", err)
	}
	defer s.Close()

	version, err := getSchemaVersion(ctx, s.db)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	in := sampleSpread()
	in.Final = map[string]models.CountryState{"Spain": {Stage: models.StageSaturated, StageYear: 5, HiveDensity: 0.0064, AreaKm2: 505990}}
	run, err := s.SaveSpreadRun(ctx, in)
	if err != nil {
		t.Fatalf("SaveSpreadRun() after migration error = %v", err)
	}
	if got, err := s.FinalState(ctx, run.ID); err != nil || len(got) != 1 {
		t.Errorf("FinalState() after migration = %v, %v", got, err)
	}
}

func TestValidateIntegrity(t *testing.T) {
	s := newTestStore(t)
	if err := ValidateIntegrity(context.Background(), s.db); err != nil {
		t.Errorf("ValidateIntegrity() on fresh store = %v", err)
	}
}

func TestInitSchema_NewerVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBName)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error opening a database with a newer schema")
	}
}

func TestDefaultDBPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath() error = %v", err)
	}
	want := filepath.Join(home, ".hornetcast", DefaultDBName)
	if got != want {
		t.Errorf("DefaultDBPath() = %q, want %q", got, want)
	}
}
