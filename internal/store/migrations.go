package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("current schema version", "version", currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE update_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					channel TEXT NOT NULL,
					from_version TEXT,
					to_version TEXT,
					action TEXT,
					status TEXT DEFAULT 'running',
					error_message TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME
				);

				CREATE TABLE artifacts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					version TEXT NOT NULL UNIQUE,
					path TEXT NOT NULL,
					size INTEGER DEFAULT 0,
					sha1 TEXT,
					sha256 TEXT,
					downloaded_at DATETIME NOT NULL,
					last_verified DATETIME
				);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE backups (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					server TEXT NOT NULL,
					path TEXT NOT NULL UNIQUE,
					modifier TEXT,
					format TEXT NOT NULL,
					size INTEGER DEFAULT 0,
					created_at DATETIME NOT NULL
				);

				CREATE TABLE launches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					server TEXT NOT NULL,
					launch_type TEXT NOT NULL,
					server_type TEXT NOT NULL,
					version TEXT,
					status TEXT NOT NULL,
					error_message TEXT,
					started_at DATETIME NOT NULL
				);

				CREATE INDEX idx_backups_server ON backups(server);
				CREATE INDEX idx_launches_server ON launches(server);
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Info("running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}
