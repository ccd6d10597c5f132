package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/school-results/internal/domain/shared"
	"github.com/alem-hub/school-results/internal/infrastructure/identity"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTOR REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActorRepository implements identity.Store for PostgreSQL.
type ActorRepository struct {
	conn *Connection
}

var _ identity.Store = (*ActorRepository)(nil)

// NewActorRepository creates a new ActorRepository.
func NewActorRepository(conn *Connection) *ActorRepository {
	return &ActorRepository{conn: conn}
}

// GetActor returns an actor record by ID.
func (r *ActorRepository) GetActor(ctx context.Context, id string) (*identity.ActorRecord, error) {
	query := `
		SELECT id, name, role, secret_hash, student_ids, active, created_at, updated_at
		FROM actors
		WHERE id = $1
	`

	var rec identity.ActorRecord
	var role string
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&rec.Actor.ID,
		&rec.Actor.Name,
		&role,
		&rec.SecretHash,
		&rec.Actor.StudentIDs,
		&rec.Active,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	rec.Actor.Role = shared.Role(role)
	return &rec, nil
}

// SaveActor inserts an actor or replaces the stored one.
func (r *ActorRepository) SaveActor(ctx context.Context, rec *identity.ActorRecord) error {
	query := `
		INSERT INTO actors (id, name, role, secret_hash, student_ids, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			secret_hash = EXCLUDED.secret_hash,
			student_ids = EXCLUDED.student_ids,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	studentIDs := rec.Actor.StudentIDs
	if studentIDs == nil {
		studentIDs = []string{}
	}

	_, err := r.conn.Exec(ctx, query,
		rec.Actor.ID,
		rec.Actor.Name,
		string(rec.Actor.Role),
		rec.SecretHash,
		studentIDs,
		rec.Active,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.ErrInvalidActorRole
		}
		return fmt.Errorf("failed to save actor: %w", err)
	}
	return nil
}

// CountActors returns the number of stored actors.
func (r *ActorRepository) CountActors(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM actors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count actors: %w", err)
	}
	return n, nil
}
