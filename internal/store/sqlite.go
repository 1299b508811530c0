package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed history of updates, artifacts, backups and launches
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: the process is single threaded and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// UpdateRun Operations
// ============================================================================

// CreateUpdateRun inserts a new UpdateRun and sets its ID
func (s *Store) CreateUpdateRun(run *UpdateRun) error {
	const query = `
		INSERT INTO update_runs (
			channel, from_version, to_version, action, status, error_message, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Channel, run.FromVersion, run.ToVersion, run.Action,
		run.Status, run.ErrorMessage, run.StartTime, run.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert update run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateUpdateRun updates an existing UpdateRun by ID
func (s *Store) UpdateUpdateRun(run *UpdateRun) error {
	const query = `
		UPDATE update_runs SET
			channel = ?, from_version = ?, to_version = ?, action = ?,
			status = ?, error_message = ?, start_time = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(
		query,
		run.Channel, run.FromVersion, run.ToVersion, run.Action,
		run.Status, run.ErrorMessage, run.StartTime, run.EndTime, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update run not found: %d", run.ID)
	}

	return nil
}

// ListUpdateRuns retrieves UpdateRuns newest first, optionally filtered by channel
func (s *Store) ListUpdateRuns(channel string, limit int) ([]UpdateRun, error) {
	query := `
		SELECT id, channel, from_version, to_version, action, status, error_message, start_time, end_time
		FROM update_runs
	`
	var args []interface{}

	if channel != "" {
		query += " WHERE channel = ?"
		args = append(args, channel)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query update runs: %w", err)
	}
	defer rows.Close()

	var runs []UpdateRun
	for rows.Next() {
		run := UpdateRun{}
		err := rows.Scan(
			&run.ID, &run.Channel, &run.FromVersion, &run.ToVersion, &run.Action,
			&run.Status, &run.ErrorMessage, &run.StartTime, &run.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating update runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// Artifact Operations
// ============================================================================

// UpsertArtifact inserts or replaces the Artifact for its version
func (s *Store) UpsertArtifact(a *Artifact) error {
	const query = `
		INSERT INTO artifacts (
			version, path, size, sha1, sha256, downloaded_at, last_verified
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			path = excluded.path, size = excluded.size, sha1 = excluded.sha1,
			sha256 = excluded.sha256, downloaded_at = excluded.downloaded_at,
			last_verified = excluded.last_verified
	`

	if _, err := s.db.Exec(
		query,
		a.Version, a.Path, a.Size, a.SHA1, a.SHA256, a.DownloadedAt, a.LastVerified,
	); err != nil {
		return fmt.Errorf("failed to upsert artifact: %w", err)
	}

	if err := s.db.QueryRow("SELECT id FROM artifacts WHERE version = ?", a.Version).Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to read artifact id: %w", err)
	}
	return nil
}

// GetArtifact retrieves the Artifact recorded for a version
func (s *Store) GetArtifact(version string) (*Artifact, error) {
	const query = `
		SELECT id, version, path, size, sha1, sha256, downloaded_at, last_verified
		FROM artifacts WHERE version = ?
	`

	a := &Artifact{}
	err := s.db.QueryRow(query, version).Scan(
		&a.ID, &a.Version, &a.Path, &a.Size, &a.SHA1, &a.SHA256, &a.DownloadedAt, &a.LastVerified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s: %w", version, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}

	return a, nil
}

// ListArtifacts retrieves all Artifacts ordered by version
func (s *Store) ListArtifacts() ([]Artifact, error) {
	const query = `
		SELECT id, version, path, size, sha1, sha256, downloaded_at, last_verified
		FROM artifacts ORDER BY version
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a := Artifact{}
		if err := rows.Scan(
			&a.ID, &a.Version, &a.Path, &a.Size, &a.SHA1, &a.SHA256, &a.DownloadedAt, &a.LastVerified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// MarkArtifactVerified stamps last_verified for a version
func (s *Store) MarkArtifactVerified(version string, at time.Time) error {
	result, err := s.db.Exec("UPDATE artifacts SET last_verified = ? WHERE version = ?", at, version)
	if err != nil {
		return fmt.Errorf("failed to mark artifact verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("artifact not found: %s", version)
	}

	return nil
}

// DeleteArtifact removes the record for a version
func (s *Store) DeleteArtifact(version string) error {
	result, err := s.db.Exec("DELETE FROM artifacts WHERE version = ?", version)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("artifact not found: %s", version)
	}

	return nil
}

// SumArtifactSize returns the total bytes of recorded artifacts
func (s *Store) SumArtifactSize() (int64, error) {
	var total int64
	if err := s.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM artifacts").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum artifact size: %w", err)
	}
	return total, nil
}

// ============================================================================
// Backup Operations
// ============================================================================

// RecordBackup inserts a BackupRecord and sets its ID
func (s *Store) RecordBackup(b *BackupRecord) error {
	const query = `
		INSERT INTO backups (server, path, modifier, format, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, b.Server, b.Path, b.Modifier, b.Format, b.Size, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert backup: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	b.ID = id
	return nil
}

// ListBackups retrieves BackupRecords newest first, optionally filtered by server
func (s *Store) ListBackups(server string, limit int) ([]BackupRecord, error) {
	query := `
		SELECT id, server, path, modifier, format, size, created_at
		FROM backups
	`
	var args []interface{}

	if server != "" {
		query += " WHERE server = ?"
		args = append(args, server)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	var backups []BackupRecord
	for rows.Next() {
		b := BackupRecord{}
		if err := rows.Scan(&b.ID, &b.Server, &b.Path, &b.Modifier, &b.Format, &b.Size, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		backups = append(backups, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}

	return backups, nil
}

// ============================================================================
// Launch Operations
// ============================================================================

// RecordLaunch inserts a Launch and sets its ID
func (s *Store) RecordLaunch(l *Launch) error {
	const query = `
		INSERT INTO launches (server, launch_type, server_type, version, status, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		l.Server, l.LaunchType, l.ServerType, l.Version, l.Status, l.ErrorMessage, l.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert launch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	l.ID = id
	return nil
}

// ListLaunches retrieves Launches newest first, optionally filtered by server
func (s *Store) ListLaunches(server string, limit int) ([]Launch, error) {
	query := `
		SELECT id, server, launch_type, server_type, version, status, error_message, started_at
		FROM launches
	`
	var args []interface{}

	if server != "" {
		query += " WHERE server = ?"
		args = append(args, server)
	}

	query += " ORDER BY started_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query launches: %w", err)
	}
	defer rows.Close()

	var launches []Launch
	for rows.Next() {
		l := Launch{}
		if err := rows.Scan(
			&l.ID, &l.Server, &l.LaunchType, &l.ServerType, &l.Version,
			&l.Status, &l.ErrorMessage, &l.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan launch: %w", err)
		}
		launches = append(launches, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating launches: %w", err)
	}

	return launches, nil
}
