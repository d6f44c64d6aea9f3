package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/hornetcast/internal/models"
)

// SQLiteStore implements RunStore on a single SQLite file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	dbPath string
	now    func() time.Time
}

// runRecord is the database shape of a Run.
type runRecord struct {
	ID        string         `db:"id"`
	Kind      string         `db:"kind"`
	ParentID  sql.NullString `db:"parent_id"`
	StartYear int            `db:"start_year"`
	EndYear   int            `db:"end_year"`
	RowCount  int            `db:"row_count"`
	Params    sql.NullString `db:"params"`
	CreatedAt string         `db:"created_at"`
}

type spreadRecord struct {
	RunID string `db:"run_id"`
	models.SpreadRow
}

type eventRecord struct {
	RunID string `db:"run_id"`
	models.InvasionEvent
}

type stateRecord struct {
	RunID       string       `db:"run_id"`
	Country     string       `db:"country"`
	Stage       models.Stage `db:"stage"`
	StageYear   int          `db:"stage_year"`
	HiveDensity float64      `db:"hive_density"`
	AreaKm2     float64      `db:"area_km2"`
}

type beeRecord struct {
	RunID string `db:"run_id"`
	models.BeeRow
}

// Open opens or creates the run store at path, creating parent directories.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// SaveSpreadRun stores a spread forecast and its invasion events in one
// transaction and returns the new run.
func (s *SQLiteStore) SaveSpreadRun(ctx context.Context, in SpreadRun) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.newRun(RunKindSpread, "", in.StartYear, in.EndYear, len(in.Rows), in.Params)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return Run{}, err
	}

	rowStmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO spread_forecast
		(run_id, year, country, stage, stage_year, hive_density, hive_count)
		VALUES (:run_id, :year, :country, :stage, :stage_year, :hive_density, :hive_count)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare spread insert: %w", err)
	}
	defer rowStmt.Close()

	for _, r := range in.Rows {
		if _, err := rowStmt.ExecContext(ctx, spreadRecord{RunID: run.ID, SpreadRow: r}); err != nil {
			return Run{}, fmt.Errorf("insert spread row %s/%d: %w", r.Country, r.Year, err)
		}
	}

	eventStmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO invasion_events
		(run_id, year, country, source, source_stage, source_density)
		VALUES (:run_id, :year, :country, :source, :source_stage, :source_density)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer eventStmt.Close()

	for _, e := range in.Events {
		if _, err := eventStmt.ExecContext(ctx, eventRecord{RunID: run.ID, InvasionEvent: e}); err != nil {
			return Run{}, fmt.Errorf("insert invasion event %s/%d: %w", e.Country, e.Year, err)
		}
	}

	if err := insertFinalState(ctx, tx, run.ID, in.Final); err != nil {
		return Run{}, err
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit spread run: %w", err)
	}
	return run, nil
}

// SaveBeeRun stores a bee forecast. ParentID, when set, must name a stored run.
func (s *SQLiteStore) SaveBeeRun(ctx context.Context, in BeeRun) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.newRun(RunKindBees, in.ParentID, in.StartYear, in.EndYear, len(in.Rows), in.Params)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return Run{}, err
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO bee_forecast
		(run_id, year, country, hornet_density, bee_density, bee_count, bee_density_growth)
		VALUES (:run_id, :year, :country, :hornet_density, :bee_density, :bee_count, :bee_density_growth)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare bee insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range in.Rows {
		if _, err := stmt.ExecContext(ctx, beeRecord{RunID: run.ID, BeeRow: r}); err != nil {
			return Run{}, fmt.Errorf("insert bee row %s/%d: %w", r.Country, r.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit bee run: %w", err)
	}
	return run, nil
}

func insertFinalState(ctx context.Context, tx *sqlx.Tx, runID string, final map[string]models.CountryState) error {
	if len(final) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO spread_state
		(run_id, country, stage, stage_year, hive_density, area_km2)
		VALUES (:run_id, :country, :stage, :stage_year, :hive_density, :area_km2)`)
	if err != nil {
		return fmt.Errorf("failed to prepare state insert: %w", err)
	}
	defer stmt.Close()

	names := make([]string, 0, len(final))
	for c := range final {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		cs := final[c]
		rec := stateRecord{
			RunID:       runID,
			Country:     c,
			Stage:       cs.Stage,
			StageYear:   cs.StageYear,
			HiveDensity: cs.HiveDensity,
			AreaKm2:     cs.AreaKm2,
		}
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("insert final state %s: %w", c, err)
		}
	}
	return nil
}

func (s *SQLiteStore) newRun(kind RunKind, parent string, start, end, rows int, params map[string]any) Run {
	return Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		ParentID:  parent,
		StartYear: start,
		EndYear:   end,
		RowCount:  rows,
		Params:    params,
		CreatedAt: s.now().UTC(),
	}
}

func insertRun(ctx context.Context, tx *sqlx.Tx, run Run) error {
	var params sql.NullString
	if len(run.Params) > 0 {
		data, err := json.Marshal(run.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal run params: %w", err)
		}
		params = sql.NullString{String: string(data), Valid: true}
	}
	parent := sql.NullString{String: run.ParentID, Valid: run.ParentID != ""}

	_, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, kind, parent_id, start_year, end_year, row_count, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), parent, run.StartYear, run.EndYear, run.RowCount,
		params, run.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns stored runs, newest first. An empty kind lists every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, kind RunKind) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT * FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	var records []runRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]Run, 0, len(records))
	for _, rec := range records {
		run, err := rec.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec runRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	run, err := rec.toRun()
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestRun returns the newest run of kind, or ErrRunNotFound.
func (s *SQLiteStore) LatestRun(ctx context.Context, kind RunKind) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec runRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT * FROM runs WHERE kind = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s runs", ErrRunNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest %s run: %w", kind, err)
	}
	run, err := rec.toRun()
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes a run and its rows.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SpreadRows returns the rows of a spread run sorted by (year, country).
func (s *SQLiteStore) SpreadRows(ctx context.Context, runID string) ([]models.SpreadRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.SpreadRow
	err := s.db.SelectContext(ctx, &rows, `SELECT year, country, stage, stage_year, hive_density, hive_count
		FROM spread_forecast WHERE run_id = ? ORDER BY year, country`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read spread rows for %s: %w", runID, err)
	}
	return rows, nil
}

// FinalState returns the unrounded state a spread run ended in, keyed by
// country. Runs stored without one return an empty map.
func (s *SQLiteStore) FinalState(ctx context.Context, runID string) (map[string]models.CountryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []stateRecord
	err := s.db.SelectContext(ctx, &recs, `SELECT run_id, country, stage, stage_year, hive_density, area_km2
		FROM spread_state WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state for %s: %w", runID, err)
	}
	out := make(map[string]models.CountryState, len(recs))
	for _, r := range recs {
		out[r.Country] = models.CountryState{
			Stage:       r.Stage,
			StageYear:   r.StageYear,
			HiveDensity: r.HiveDensity,
			AreaKm2:     r.AreaKm2,
		}
	}
	return out, nil
}

// InvasionEvents returns the invasion events of a spread run sorted by (year, country).
func (s *SQLiteStore) InvasionEvents(ctx context.Context, runID string) ([]models.InvasionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []models.InvasionEvent
	err := s.db.SelectContext(ctx, &events, `SELECT year, country, source, source_stage, source_density
		FROM invasion_events WHERE run_id = ? ORDER BY year, country`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read invasion events for %s: %w", runID, err)
	}
	return events, nil
}

// BeeRows returns the rows of a bee run sorted by (country, year).
func (s *SQLiteStore) BeeRows(ctx context.Context, runID string) ([]models.BeeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.BeeRow
	err := s.db.SelectContext(ctx, &rows, `SELECT year, country, hornet_density, bee_density, bee_count, bee_density_growth
		FROM bee_forecast WHERE run_id = ? ORDER BY country, year`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read bee rows for %s: %w", runID, err)
	}
	return rows, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (r runRecord) toRun() (Run, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, r.CreatedAt, err)
	}
	run := Run{
		ID:        r.ID,
		Kind:      RunKind(r.Kind),
		ParentID:  r.ParentID.String,
		StartYear: r.StartYear,
		EndYear:   r.EndYear,
		RowCount:  r.RowCount,
		CreatedAt: created,
	}
	if r.Params.Valid && r.Params.String != "" {
		if err := json.Unmarshal([]byte(r.Params.String), &run.Params); err != nil {
			return Run{}, fmt.Errorf("run %s: bad params: %w", r.ID, err)
		}
	}
	return run, nil
}

var _ RunStore = (*SQLiteStore)(nil)
