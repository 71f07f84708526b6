package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateInstance creates a new instance record
func (s *SQLiteStore) CreateInstance(ctx context.Context, instance *Instance) error {
	query := `
		INSERT INTO instances (id, host, os_family, os_version, package_source, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		instance.ID,
		instance.Host,
		instance.OSFamily,
		instance.OSVersion,
		instance.PackageSource,
		instance.Settings,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// GetInstance retrieves an instance by ID
func (s *SQLiteStore) GetInstance(ctx context.Context, id string) (*Instance, error) {
	query := `
		SELECT id, host, os_family, os_version, package_source, settings, created_at, updated_at
		FROM instances
		WHERE id = ?
	`

	instance := &Instance{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&instance.ID,
		&instance.Host,
		&instance.OSFamily,
		&instance.OSVersion,
		&instance.PackageSource,
		&instance.Settings,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// UpdateInstanceSettings replaces the stored global settings tree
func (s *SQLiteStore) UpdateInstanceSettings(ctx context.Context, id string, settings string) error {
	query := `UPDATE instances SET settings = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, settings, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update instance settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("instance not found: %s", id)
	}

	return nil
}

// ListInstances lists instances with pagination
func (s *SQLiteStore) ListInstances(ctx context.Context, limit, offset int) ([]*Instance, error) {
	query := `
		SELECT id, host, os_family, os_version, package_source, settings, created_at, updated_at
		FROM instances
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := []*Instance{}
	for rows.Next() {
		instance := &Instance{}
		err := rows.Scan(
			&instance.ID,
			&instance.Host,
			&instance.OSFamily,
			&instance.OSVersion,
			&instance.PackageSource,
			&instance.Settings,
			&instance.CreatedAt,
			&instance.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

// DeleteInstance deletes an instance and its dependent rows
func (s *SQLiteStore) DeleteInstance(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("instance not found: %s", id)
	}

	return nil
}

// UpsertCluster inserts or replaces a resolved cluster snapshot
func (s *SQLiteStore) UpsertCluster(ctx context.Context, cluster *Cluster) error {
	query := `
		INSERT INTO clusters (id, instance_id, name, variant, overrides, resolved, hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, name) DO UPDATE SET
			variant = excluded.variant,
			overrides = excluded.overrides,
			resolved = excluded.resolved,
			hash = excluded.hash,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		cluster.ID,
		cluster.InstanceID,
		cluster.Name,
		cluster.Variant,
		cluster.Overrides,
		cluster.Resolved,
		cluster.Hash,
		cluster.CreatedAt,
		cluster.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cluster: %w", err)
	}

	return nil
}

// GetCluster retrieves a cluster snapshot by instance and name
func (s *SQLiteStore) GetCluster(ctx context.Context, instanceID, name string) (*Cluster, error) {
	query := `
		SELECT id, instance_id, name, variant, overrides, resolved, hash, created_at, updated_at
		FROM clusters
		WHERE instance_id = ? AND name = ?
	`

	cluster := &Cluster{}
	err := s.db.QueryRowContext(ctx, query, instanceID, name).Scan(
		&cluster.ID,
		&cluster.InstanceID,
		&cluster.Name,
		&cluster.Variant,
		&cluster.Overrides,
		&cluster.Resolved,
		&cluster.Hash,
		&cluster.CreatedAt,
		&cluster.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cluster not found: %s/%s", instanceID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}

	return cluster, nil
}

// ListClustersByInstance lists the cluster snapshots of one instance
func (s *SQLiteStore) ListClustersByInstance(ctx context.Context, instanceID string) ([]*Cluster, error) {
	query := `
		SELECT id, instance_id, name, variant, overrides, resolved, hash, created_at, updated_at
		FROM clusters
		WHERE instance_id = ?
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	clusters := []*Cluster{}
	for rows.Next() {
		cluster := &Cluster{}
		err := rows.Scan(
			&cluster.ID,
			&cluster.InstanceID,
			&cluster.Name,
			&cluster.Variant,
			&cluster.Overrides,
			&cluster.Resolved,
			&cluster.Hash,
			&cluster.CreatedAt,
			&cluster.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, cluster)
	}

	return clusters, rows.Err()
}

// DeleteCluster deletes a cluster snapshot
func (s *SQLiteStore) DeleteCluster(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cluster not found: %s", id)
	}

	return nil
}

// UpsertFileState inserts or replaces the recorded state of one file
func (s *SQLiteStore) UpsertFileState(ctx context.Context, state *FileState) error {
	query := `
		INSERT INTO file_states (id, instance_id, cluster, kind, path, checksum, last_run_id, written_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, path) DO UPDATE SET
			cluster = excluded.cluster,
			kind = excluded.kind,
			checksum = excluded.checksum,
			last_run_id = excluded.last_run_id,
			written_at = excluded.written_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		state.ID,
		state.InstanceID,
		state.Cluster,
		state.Kind,
		state.Path,
		state.Checksum,
		state.LastRunID,
		state.WrittenAt,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert file state: %w", err)
	}

	return nil
}

// GetFileState retrieves the recorded state of one file
func (s *SQLiteStore) GetFileState(ctx context.Context, instanceID, path string) (*FileState, error) {
	query := `
		SELECT id, instance_id, cluster, kind, path, checksum, last_run_id, written_at, created_at, updated_at
		FROM file_states
		WHERE instance_id = ? AND path = ?
	`

	state := &FileState{}
	err := s.db.QueryRowContext(ctx, query, instanceID, path).Scan(
		&state.ID,
		&state.InstanceID,
		&state.Cluster,
		&state.Kind,
		&state.Path,
		&state.Checksum,
		&state.LastRunID,
		&state.WrittenAt,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file state not found: %s %s", instanceID, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file state: %w", err)
	}

	return state, nil
}

// ListFileStates lists the recorded file states of one instance
func (s *SQLiteStore) ListFileStates(ctx context.Context, instanceID string) ([]*FileState, error) {
	query := `
		SELECT id, instance_id, cluster, kind, path, checksum, last_run_id, written_at, created_at, updated_at
		FROM file_states
		WHERE instance_id = ?
		ORDER BY path
	`

	rows, err := s.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file states: %w", err)
	}
	defer rows.Close()

	states := []*FileState{}
	for rows.Next() {
		state := &FileState{}
		err := rows.Scan(
			&state.ID,
			&state.InstanceID,
			&state.Cluster,
			&state.Kind,
			&state.Path,
			&state.Checksum,
			&state.LastRunID,
			&state.WrittenAt,
			&state.CreatedAt,
			&state.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file state: %w", err)
		}
		states = append(states, state)
	}

	return states, rows.Err()
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, instance_id, status, started_at, completed_at, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.InstanceID,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, instance_id, status, started_at, completed_at, error, created_at, updated_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.InstanceID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// UpdateRunStatus updates the status of a run
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed {
		now := time.Now().UTC()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs with pagination
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, instance_id, status, started_at, completed_at, error, created_at, updated_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID,
			&run.InstanceID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
			&run.CreatedAt,
			&run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// AppendEvent appends an event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event id: %w", err)
	}
	event.ID = id

	return nil
}

// GetEvents retrieves events with optional filters
func (s *SQLiteStore) GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, runID, runID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
