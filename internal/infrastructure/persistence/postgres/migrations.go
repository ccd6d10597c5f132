package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations and records them in
// schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations in version order, each in its own
// transaction. Returns the number applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	pending := make([]Migration, 0, len(m.migrations))
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for i, mig := range pending {
		if mig.UpSQL == "" {
			return i, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return i, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return len(pending), nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if appliedAt, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = appliedAt
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_results", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_actors", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_cohort_rerank_queue", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE RESULTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Subject scores are stored as an ordered JSONB array of
-- {name, score, grade, remark}. Scores are double precision so they
-- round-trip without loss.
CREATE TABLE IF NOT EXISTS results (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    student_name VARCHAR(200) NOT NULL,
    admission_number VARCHAR(64) NOT NULL DEFAULT '',
    class VARCHAR(50) NOT NULL,
    term VARCHAR(10) NOT NULL,
    session VARCHAR(9) NOT NULL,
    result_type VARCHAR(20) NOT NULL,
    subjects JSONB NOT NULL DEFAULT '[]'::jsonb,
    total_score DOUBLE PRECISION NOT NULL,
    average_score DOUBLE PRECISION NOT NULL,
    overall_grade VARCHAR(10) NOT NULL,
    remark VARCHAR(50) NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    teacher_comment TEXT NOT NULL DEFAULT '',
    principal_comment TEXT NOT NULL DEFAULT '',
    published BOOLEAN NOT NULL DEFAULT FALSE,
    published_at TIMESTAMP WITH TIME ZONE,
    created_by VARCHAR(64) NOT NULL,
    idempotency_key VARCHAR(128),
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_term CHECK (term IN ('First', 'Second', 'Third')),
    CONSTRAINT valid_result_type CHECK (result_type IN ('Midterm', 'Examination')),
    CONSTRAINT valid_session CHECK (session ~ '^[0-9]{4}/[0-9]{4}$'),
    CONSTRAINT valid_average CHECK (average_score >= 0 AND average_score <= 100),
    CONSTRAINT valid_position CHECK (position >= 0),
    CONSTRAINT published_has_timestamp CHECK (NOT published OR published_at IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_results_idempotency_key
    ON results(idempotency_key) WHERE idempotency_key IS NOT NULL;

-- Ranking reads and the re-rank sweep scan one cohort ordered by average.
CREATE INDEX IF NOT EXISTS idx_results_cohort_average
    ON results(class, term, session, average_score DESC);

CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_published ON results(class, published);
`

const migration001Down = `
DROP TABLE IF EXISTS results;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ACTORS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Actors authenticate with "<id>.<secret>" API keys; only a bcrypt hash of
-- the secret is stored. student_ids links parents to their children.
CREATE TABLE IF NOT EXISTS actors (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    role VARCHAR(20) NOT NULL,
    secret_hash BYTEA NOT NULL,
    student_ids TEXT[] NOT NULL DEFAULT '{}',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('admin', 'teacher', 'parent'))
);

CREATE INDEX IF NOT EXISTS idx_actors_role ON actors(role);
`

const migration002Down = `
DROP TABLE IF EXISTS actors;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE COHORT RERANK QUEUE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- One row per cohort whose stored positions may be stale. Written in the
-- same transaction as the result row. marked_at keeps the first mark;
-- mark_seq grows with every mark so a sweep only removes the row when no
-- write marked it after the sweep read it.
CREATE TABLE IF NOT EXISTS cohort_rerank_queue (
    class VARCHAR(50) NOT NULL,
    term VARCHAR(10) NOT NULL,
    session VARCHAR(9) NOT NULL,
    marked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    mark_seq BIGINT NOT NULL DEFAULT 1,
    PRIMARY KEY (class, term, session)
);

CREATE INDEX IF NOT EXISTS idx_cohort_rerank_queue_marked_at ON cohort_rerank_queue(marked_at);
`

const migration003Down = `
DROP TABLE IF EXISTS cohort_rerank_queue;
`
