package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,

	// One row per file: the full cached history, newest entry first
	`CREATE TABLE IF NOT EXISTS history_cache (
		repo_root       TEXT NOT NULL,
		file            TEXT NOT NULL,
		kind            TEXT NOT NULL,
		latest_revision TEXT NOT NULL,
		entry_count     INTEGER NOT NULL,
		compressed      INTEGER NOT NULL,
		payload         BLOB NOT NULL,
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (repo_root, file)
	)`,

	`CREATE TABLE IF NOT EXISTS tag_cache (
		repo_root  TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		tag_count  INTEGER NOT NULL,
		compressed INTEGER NOT NULL,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS index_runs (
		run_id       TEXT PRIMARY KEY,
		root         TEXT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		finished_at  TEXT,
		repositories INTEGER NOT NULL DEFAULT 0,
		files        INTEGER NOT NULL DEFAULT 0,
		entries      INTEGER NOT NULL DEFAULT 0,
		failures     INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS index_failures (
		run_id    TEXT NOT NULL REFERENCES index_runs(run_id) ON DELETE CASCADE,
		repo_root TEXT NOT NULL,
		file      TEXT NOT NULL,
		code      TEXT NOT NULL,
		message   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_index_failures_run ON index_failures(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_index_runs_started ON index_runs(started_at)`,
}

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)

	// A database without a version table predates the schema; create everything.
	if version == 0 {
		return db.initializeSchema()
	}
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()

	var tableName string
	err := db.QueryRow(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}
