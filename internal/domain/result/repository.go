package result

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the persistence contract for results. Implementations live
// in the infrastructure layer.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// RANKING READS
	// ──────────────────────────────────────────────────────────────────────────

	// ListResultAverages returns the averages of every result in the cohort
	// except excludeID (empty excludes nothing). Draft and published results
	// are both included.
	ListResultAverages(ctx context.Context, cohort Cohort, excludeID string) ([]float64, error)

	// ──────────────────────────────────────────────────────────────────────────
	// WRITES
	// ──────────────────────────────────────────────────────────────────────────

	// Create inserts a new result and marks its cohort for re-ranking in the
	// same transaction. Returns ErrDuplicateIdempotent (wrapped) when the
	// idempotency key already exists.
	Create(ctx context.Context, r *Result) error

	// Update stores the mutable fields of an existing result and marks its
	// cohort for re-ranking. r.Version must match the stored version; on
	// success it is incremented.
	Update(ctx context.Context, r *Result) error

	// Delete removes a result. Other positions in the cohort are untouched.
	Delete(ctx context.Context, id string) error

	// ──────────────────────────────────────────────────────────────────────────
	// READS
	// ──────────────────────────────────────────────────────────────────────────

	// GetByID returns a result or an error matching shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Result, error)

	// GetByIdempotencyKey returns the result created with the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Result, error)

	// ListByStudent returns a student's results, newest first.
	ListByStudent(ctx context.Context, studentID string, opts ListOptions) ([]*Result, error)

	// ListByClass returns the results of a class filtered by opts.
	ListByClass(ctx context.Context, class string, opts ListOptions) ([]*Result, error)

	// ListByCohort returns every result of a cohort ordered by position.
	ListByCohort(ctx context.Context, cohort Cohort) ([]*Result, error)
}

// RankSweeper rewrites stored positions of a whole cohort.
type RankSweeper interface {
	// RerankCohort recomputes every position in the cohort from the
	// committed averages and clears the cohort's pending mark.
	// Returns how many stored positions changed.
	RerankCohort(ctx context.Context, cohort Cohort) (int, error)

	// PendingCohorts lists cohorts marked by a write whose sweep has not
	// completed yet, oldest mark first.
	PendingCohorts(ctx context.Context, limit int) ([]PendingCohort, error)
}

// CohortMarker queues a cohort for the next re-rank sweep.
type CohortMarker interface {
	MarkCohort(ctx context.Context, cohort Cohort) error
}

// PendingCohort is a cohort waiting for a re-rank sweep.
type PendingCohort struct {
	Cohort   Cohort
	MarkedAt time.Time
}

// CohortIndex is a fast, best-effort index of cohort averages used for
// live position lookups. The relational store stays authoritative.
type CohortIndex interface {
	// Upsert adds or moves a result in its cohort index.
	Upsert(ctx context.Context, cohort Cohort, resultID string, average float64) error

	// Remove drops a result from its cohort index.
	Remove(ctx context.Context, cohort Cohort, resultID string) error

	// Position returns 1 + the number of indexed averages strictly greater
	// than average.
	Position(ctx context.Context, cohort Cohort, average float64) (Position, error)

	// Rebuild replaces the cohort index with the given standings.
	Rebuild(ctx context.Context, cohort Cohort, standings []Standing) error
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions filters and pages list queries.
type ListOptions struct {
	Term          Term
	Session       Session
	PublishedOnly bool
	Limit         int
	Offset        int
}

// DefaultListLimit caps list queries without an explicit limit.
const DefaultListLimit = 100

// WithTerm returns a copy filtered by term.
func (o ListOptions) WithTerm(t Term) ListOptions {
	o.Term = t
	return o
}

// WithSession returns a copy filtered by session.
func (o ListOptions) WithSession(s Session) ListOptions {
	o.Session = s
	return o
}

// OnlyPublished returns a copy limited to published results.
func (o ListOptions) OnlyPublished() ListOptions {
	o.PublishedOnly = true
	return o
}

// WithPage returns a copy with limit/offset for a 1-based page.
func (o ListOptions) WithPage(page, pageSize int) ListOptions {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultListLimit
	}
	o.Limit = pageSize
	o.Offset = (page - 1) * pageSize
	return o
}

// EffectiveLimit returns Limit or DefaultListLimit when unset.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
