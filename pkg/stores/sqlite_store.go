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

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
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
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
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

// BeginTx starts a new transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// CommitTx commits a transaction.
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error { return tx.Commit() }

// RollbackTx rolls back a transaction.
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error { return tx.Rollback() }

// CreateRun creates a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, plan_path, status, started_at, completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.PlanPath, run.Status, run.StartedAt, run.CompletedAt,
		run.Error, run.Metadata, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, plan_path, status, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs WHERE id = ?
	`
	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.PlanPath, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.Error, &run.Metadata, &run.CreatedAt, &run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus updates the status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`

	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed || status == RunStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
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

// ListRuns lists runs with pagination.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, plan_path, status, started_at, completed_at, error, metadata, created_at, updated_at
		FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID, &run.PlanPath, &run.Status, &run.StartedAt, &run.CompletedAt,
			&run.Error, &run.Metadata, &run.CreatedAt, &run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun deletes a run by ID.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
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

// CreateDeploymentTarget creates a new deployment target record.
func (s *SQLiteStore) CreateDeploymentTarget(ctx context.Context, target *DeploymentTargetRecord) error {
	query := `
		INSERT INTO deployment_targets (
			id, run_id, host, remote_path, fingerprint, transport, status,
			version, started_at, deployed_at, error, retries, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		target.ID, target.RunID, target.Host, target.RemotePath, target.Fingerprint,
		target.Transport, target.Status, target.Version, target.StartedAt, target.DeployedAt,
		target.Error, target.Retries, target.CreatedAt, target.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment target: %w", err)
	}
	return nil
}

// GetDeploymentTarget retrieves a deployment target by ID.
func (s *SQLiteStore) GetDeploymentTarget(ctx context.Context, id string) (*DeploymentTargetRecord, error) {
	query := `
		SELECT id, run_id, host, remote_path, fingerprint, transport, status,
			   version, started_at, deployed_at, error, retries, created_at, updated_at
		FROM deployment_targets WHERE id = ?
	`
	t := &DeploymentTargetRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.RunID, &t.Host, &t.RemotePath, &t.Fingerprint, &t.Transport, &t.Status,
		&t.Version, &t.StartedAt, &t.DeployedAt, &t.Error, &t.Retries, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deployment target not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment target: %w", err)
	}
	return t, nil
}

// UpdateDeploymentTargetStatus updates the status of a deployment target.
func (s *SQLiteStore) UpdateDeploymentTargetStatus(ctx context.Context, id string, status TargetStatus, errMsg *string) error {
	query := `
		UPDATE deployment_targets
		SET status = ?, error = ?,
			started_at = CASE WHEN started_at IS NULL AND ? = 'deploying' THEN CURRENT_TIMESTAMP ELSE started_at END,
			deployed_at = CASE WHEN ? IN ('deployed', 'verified') THEN CURRENT_TIMESTAMP ELSE deployed_at END
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, status, errMsg, status, status, id)
	if err != nil {
		return fmt.Errorf("failed to update deployment target status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deployment target not found: %s", id)
	}
	return nil
}

// ListDeploymentTargetsByRun lists all deployment targets for a run.
func (s *SQLiteStore) ListDeploymentTargetsByRun(ctx context.Context, runID string) ([]*DeploymentTargetRecord, error) {
	query := `
		SELECT id, run_id, host, remote_path, fingerprint, transport, status,
			   version, started_at, deployed_at, error, retries, created_at, updated_at
		FROM deployment_targets WHERE run_id = ? ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployment targets: %w", err)
	}
	defer rows.Close()

	targets := []*DeploymentTargetRecord{}
	for rows.Next() {
		t := &DeploymentTargetRecord{}
		if err := rows.Scan(
			&t.ID, &t.RunID, &t.Host, &t.RemotePath, &t.Fingerprint, &t.Transport, &t.Status,
			&t.Version, &t.StartedAt, &t.DeployedAt, &t.Error, &t.Retries, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deployment target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment targets: %w", err)
	}
	return targets, nil
}

// DeleteDeploymentTarget deletes a deployment target by ID.
func (s *SQLiteStore) DeleteDeploymentTarget(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deployment_targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment target: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deployment target not found: %s", id)
	}
	return nil
}

// IncrementDeploymentTargetRetries increments the retry counter for a deployment target.
func (s *SQLiteStore) IncrementDeploymentTargetRetries(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE deployment_targets SET retries = retries + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deployment target not found: %s", id)
	}
	return nil
}

// AppendEvent appends a new event to the log.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (run_id, target_id, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		event.RunID, event.TargetID, event.Level, event.Message, event.Details, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}
	event.ID = id
	return nil
}

// GetEvents retrieves events with optional filters and pagination.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID *string, targetID *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, run_id, target_id, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR run_id = ?)
		  AND (? IS NULL OR target_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, runID, runID, targetID, targetID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID, &event.RunID, &event.TargetID, &event.Level, &event.Message, &event.Details, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// UpsertArtifact inserts or updates an artifact's metadata row.
func (s *SQLiteStore) UpsertArtifact(ctx context.Context, artifact *ArtifactRecord) error {
	query := `
		INSERT INTO artifacts (
			fingerprint, target_triple, checksum, blob_path, size_bytes,
			provenance, build_duration_ns, source_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			checksum = excluded.checksum,
			blob_path = excluded.blob_path,
			size_bytes = excluded.size_bytes,
			provenance = excluded.provenance
	`
	_, err := s.db.ExecContext(ctx, query,
		artifact.Fingerprint, artifact.TargetTriple, artifact.Checksum, artifact.BlobPath,
		artifact.SizeBytes, artifact.Provenance, artifact.BuildDuration.Nanoseconds(),
		artifact.SourceRef, artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves an artifact's metadata row by fingerprint —
// this is the BuildDriver cache lookup's backing query.
func (s *SQLiteStore) GetArtifact(ctx context.Context, fingerprint string) (*ArtifactRecord, error) {
	query := `
		SELECT fingerprint, target_triple, checksum, blob_path, size_bytes,
			   provenance, build_duration_ns, source_ref, created_at
		FROM artifacts WHERE fingerprint = ?
	`
	var durationNs int64
	a := &ArtifactRecord{}
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&a.Fingerprint, &a.TargetTriple, &a.Checksum, &a.BlobPath, &a.SizeBytes,
		&a.Provenance, &durationNs, &a.SourceRef, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact not found: %s", fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	a.BuildDuration = time.Duration(durationNs)
	return a, nil
}

// ListArtifacts lists artifacts with pagination.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, limit, offset int) ([]*ArtifactRecord, error) {
	query := `
		SELECT fingerprint, target_triple, checksum, blob_path, size_bytes,
			   provenance, build_duration_ns, source_ref, created_at
		FROM artifacts ORDER BY created_at DESC LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*ArtifactRecord{}
	for rows.Next() {
		var durationNs int64
		a := &ArtifactRecord{}
		if err := rows.Scan(
			&a.Fingerprint, &a.TargetTriple, &a.Checksum, &a.BlobPath, &a.SizeBytes,
			&a.Provenance, &durationNs, &a.SourceRef, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.BuildDuration = time.Duration(durationNs)
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}
	return artifacts, nil
}

// DeleteArtifact deletes an artifact's metadata row by fingerprint.
// The caller is responsible for removing the blob at BlobPath —
// eviction is explicit-cleanup-only, never silent.
func (s *SQLiteStore) DeleteArtifact(ctx context.Context, fingerprint string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("artifact not found: %s", fingerprint)
	}
	return nil
}

// UpsertFact inserts or updates a fact.
func (s *SQLiteStore) UpsertFact(ctx context.Context, fact *Fact) error {
	query := `
		INSERT INTO facts (
			id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id, namespace, key) DO UPDATE SET
			value = excluded.value,
			ttl = excluded.ttl,
			expires_at = excluded.expires_at
	`
	var expiresAtStr *string
	if fact.ExpiresAt != nil {
		formatted := fact.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
		expiresAtStr = &formatted
	}
	_, err := s.db.ExecContext(ctx, query,
		fact.ID, fact.TargetID, fact.Namespace, fact.Key, fact.Value, fact.TTL, expiresAtStr,
		fact.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		fact.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}
	return nil
}

// GetFact retrieves a fact by target, namespace, and key.
func (s *SQLiteStore) GetFact(ctx context.Context, targetID, namespace, key string) (*Fact, error) {
	query := `
		SELECT id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		FROM facts
		WHERE target_id = ? AND namespace = ? AND key = ?
		  AND (expires_at IS NULL OR datetime(expires_at) > datetime('now'))
	`
	fact := &Fact{}
	err := s.db.QueryRowContext(ctx, query, targetID, namespace, key).Scan(
		&fact.ID, &fact.TargetID, &fact.Namespace, &fact.Key, &fact.Value, &fact.TTL,
		&fact.ExpiresAt, &fact.CreatedAt, &fact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fact not found or expired: %s/%s/%s", targetID, namespace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}
	return fact, nil
}

// ListFacts lists facts with optional filters and pagination.
func (s *SQLiteStore) ListFacts(ctx context.Context, targetID *string, namespace *string, limit, offset int) ([]*Fact, error) {
	query := `
		SELECT id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		FROM facts
		WHERE (? IS NULL OR target_id = ?)
		  AND (? IS NULL OR namespace = ?)
		  AND (expires_at IS NULL OR datetime(expires_at) > datetime('now'))
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, targetID, targetID, namespace, namespace, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	facts := []*Fact{}
	for rows.Next() {
		fact := &Fact{}
		if err := rows.Scan(
			&fact.ID, &fact.TargetID, &fact.Namespace, &fact.Key, &fact.Value, &fact.TTL,
			&fact.ExpiresAt, &fact.CreatedAt, &fact.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}
	return facts, nil
}

// DeleteExpiredFacts deletes all expired facts.
func (s *SQLiteStore) DeleteExpiredFacts(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE expires_at IS NOT NULL AND datetime(expires_at) <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired facts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// DeleteFact deletes a fact by ID.
func (s *SQLiteStore) DeleteFact(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("fact not found: %s", id)
	}
	return nil
}

// CreateAuditEntry creates a new audit log / deployment-journal entry.
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, entry.Action, entry.Actor, entry.TargetID, entry.Details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Action, &entry.Actor, &entry.TargetID, &entry.Details, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
