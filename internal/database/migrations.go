package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, compiled-in schema history. New schema
// changes append a new version; applied versions are never edited.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "init_core_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS session_fixes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				accuracy_m REAL NOT NULL,
				speed_mps REAL NOT NULL DEFAULT 0,
				heading_deg REAL NOT NULL DEFAULT 0,
				movement_type TEXT NOT NULL DEFAULT 'unknown',
				cell_token TEXT NOT NULL,
				recorded_at INTEGER NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_session_fixes_session ON session_fixes(session_id, recorded_at);
			CREATE INDEX IF NOT EXISTS idx_session_fixes_cell ON session_fixes(cell_token);

			CREATE TABLE IF NOT EXISTS visits (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL,
				center_lat REAL NOT NULL,
				center_lon REAL NOT NULL,
				start_time INTEGER NOT NULL,
				end_time INTEGER NOT NULL,
				total_minutes REAL NOT NULL,
				breakdown_json TEXT NOT NULL DEFAULT '{}',
				best_accuracy_m REAL NOT NULL DEFAULT 0,
				point_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_visits_session ON visits(session_id, start_time);
		`,
	},
	{
		Version: 2,
		Name:    "init_token_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS token_supply (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				total_supply REAL NOT NULL DEFAULT 0,
				tokens_in_circulation REAL NOT NULL DEFAULT 0,
				current_multiplier REAL NOT NULL DEFAULT 1,
				halving_count INTEGER NOT NULL DEFAULT 0,
				last_halving_at INTEGER NOT NULL DEFAULT 0,
				next_halving_at REAL NOT NULL DEFAULT 0,
				is_cap_reached INTEGER NOT NULL DEFAULT 0,
				version INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			INSERT OR IGNORE INTO token_supply (id) VALUES (1);

			CREATE TABLE IF NOT EXISTS session_balances (
				session_id TEXT PRIMARY KEY,
				balance REAL NOT NULL DEFAULT 0,
				total_earned REAL NOT NULL DEFAULT 0,
				total_spent REAL NOT NULL DEFAULT 0,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS token_transactions (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount REAL NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_token_tx_session ON token_transactions(session_id, created_at);

			CREATE TABLE IF NOT EXISTS dedup_entries (
				dedup_key TEXT PRIMARY KEY,
				expires_at INTEGER NOT NULL
			);
		`,
	},
}

// Migrate applies all pending migrations in version order
func Migrate(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		log.Printf("[Database] Applied migration %d: %s", m.Version, m.Name)
	}

	return nil
}

// initMigrationsTable creates the migrations tracking table
func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// appliedMigrations returns the set of applied migration versions
func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, nil
}

// applyMigration runs one migration inside a transaction
func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
