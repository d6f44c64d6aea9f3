// Package store persists forecast runs in SQLite.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 2

// schemaV1 is the initial schema for the run store.
const schemaV1 = `
-- One row per stored forecast
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,          -- 'spread' or 'bees'
    parent_id TEXT REFERENCES runs(id) ON DELETE SET NULL,
    start_year INTEGER NOT NULL,
    end_year INTEGER NOT NULL,
    row_count INTEGER NOT NULL,
    params TEXT,                 -- JSON
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_kind_created ON runs(kind, created_at);

CREATE TABLE IF NOT EXISTS spread_forecast (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    country TEXT NOT NULL,
    stage INTEGER NOT NULL,
    stage_year INTEGER NOT NULL,
    hive_density REAL NOT NULL,
    hive_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, year, country)
);

CREATE TABLE IF NOT EXISTS invasion_events (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    country TEXT NOT NULL,
    source TEXT NOT NULL,
    source_stage INTEGER NOT NULL,
    source_density REAL NOT NULL,
    PRIMARY KEY (run_id, country)
);

CREATE TABLE IF NOT EXISTS bee_forecast (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    country TEXT NOT NULL,
    hornet_density REAL NOT NULL,
    bee_density REAL NOT NULL,
    bee_count INTEGER NOT NULL,
    bee_density_growth REAL NOT NULL,
    PRIMARY KEY (run_id, country, year)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// schemaV2 keeps the unrounded final state of each spread run, so a stored
// forecast can be continued exactly.
const schemaV2 = `
CREATE TABLE IF NOT EXISTS spread_state (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    country TEXT NOT NULL,
    stage INTEGER NOT NULL,
    stage_year INTEGER NOT NULL,
    hive_density REAL NOT NULL,
    area_km2 REAL NOT NULL,
    PRIMARY KEY (run_id, country)
);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_version`); err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, schema := range []string{schemaV1, schemaV2} {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
// Runs stored before version 2 have no final state and resume from their
// rounded rows.
func migrateSchema(ctx context.Context, db *sqlx.DB, currentVersion int) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if currentVersion < 2 {
		if _, err := tx.ExecContext(ctx, schemaV2); err != nil {
			return fmt.Errorf("migrating to v2: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs SQLite integrity checks on the database.
// It runs PRAGMA integrity_check and PRAGMA foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sqlx.DB) error {
	var results []string
	if err := db.SelectContext(ctx, &results, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	for _, result := range results {
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer rows.Close()

	var fkErrors []string
	for rows.Next() {
		var table, rowid, parent, fkid string
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading foreign_key_check: %w", err)
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}
