package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		// Create schema_version table first
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createArchiveTable(tx); err != nil {
			return err
		}
		if err := createSymbolsTable(tx); err != nil {
			return err
		}
		if err := createRenameActionsTable(tx); err != nil {
			return err
		}
		if err := createSelectionsTable(tx); err != nil {
			return err
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
		return fmt.Errorf("session database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)

	// A database without a version table predates the session schema
	if version == 0 {
		return db.initializeSchema()
	}
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()

	var tableName string
	err := db.QueryRowContext(ctx, `
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
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
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

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createArchiveTable creates the single-row archive table: where the session's
// archive came from and its full class inventory
func createArchiveTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS archive (
			id INTEGER PRIMARY KEY CHECK(id = 1),
			fingerprint TEXT NOT NULL,
			source TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			inventory_json TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create archive table: %w", err)
	}
	return nil
}

// createSymbolsTable creates the symbols table holding current names.
// Classes use an empty owner and descriptor.
func createSymbolsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS symbols (
			kind TEXT NOT NULL CHECK(kind IN ('class', 'field', 'method')),
			owner TEXT NOT NULL,
			original TEXT NOT NULL,
			desc TEXT NOT NULL,
			current TEXT NOT NULL,

			PRIMARY KEY (kind, owner, original, desc)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create symbols table: %w", err)
	}
	return nil
}

// createRenameActionsTable creates the rename log, ordered by seq
func createRenameActionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS rename_actions (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL CHECK(kind IN ('class', 'field', 'method')),
			owner TEXT NOT NULL,
			original TEXT NOT NULL,
			desc TEXT NOT NULL,
			before_name TEXT NOT NULL,
			after_name TEXT NOT NULL,
			at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create rename_actions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_rename_actions_owner ON rename_actions(owner)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createSelectionsTable creates the selection log, ordered by seq
func createSelectionsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS selections (
			seq INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create selections table: %w", err)
	}
	return nil
}
