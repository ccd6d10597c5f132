package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
	"github.com/alem-hub/school-results/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements result.Repository and result.RankSweeper.
type ResultRepository struct {
	conn *Connection
}

var (
	_ result.Repository  = (*ResultRepository)(nil)
	_ result.RankSweeper = (*ResultRepository)(nil)
)

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(conn *Connection) *ResultRepository {
	return &ResultRepository{conn: conn}
}

const resultColumns = `
	id, student_id, student_name, admission_number, class, term, session,
	result_type, subjects, total_score, average_score, overall_grade, remark,
	position, teacher_comment, principal_comment, published, published_at,
	created_by, COALESCE(idempotency_key, ''), version, created_at, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// Ranking reads
// ─────────────────────────────────────────────────────────────────────────────

// ListResultAverages returns the averages of a cohort except excludeID.
func (r *ResultRepository) ListResultAverages(ctx context.Context, cohort result.Cohort, excludeID string) ([]float64, error) {
	query := `
		SELECT average_score
		FROM results
		WHERE class = $1 AND term = $2 AND session = $3
		  AND ($4 = '' OR id::text <> $4)
	`

	rows, err := r.conn.Query(ctx, query, cohort.Class, string(cohort.Term), string(cohort.Session), excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohort averages: %w", err)
	}
	defer rows.Close()

	averages := make([]float64, 0)
	for rows.Next() {
		var avg float64
		if err := rows.Scan(&avg); err != nil {
			return nil, fmt.Errorf("failed to scan average: %w", err)
		}
		averages = append(averages, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return averages, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts the result and marks its cohort in one transaction.
func (r *ResultRepository) Create(ctx context.Context, res *result.Result) error {
	query := `
		INSERT INTO results (
			id, student_id, student_name, admission_number, class, term, session,
			result_type, subjects, total_score, average_score, overall_grade, remark,
			position, teacher_comment, principal_comment, published, published_at,
			created_by, idempotency_key, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, NULLIF($20, ''), $21, $22, $23
		)
	`

	subjectsJSON, err := json.Marshal(res.Subjects)
	if err != nil {
		return fmt.Errorf("failed to marshal subjects: %w", err)
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			res.ID,
			res.StudentID,
			res.StudentName,
			res.AdmissionNumber,
			res.Cohort.Class,
			string(res.Cohort.Term),
			string(res.Cohort.Session),
			string(res.Type),
			subjectsJSON,
			res.TotalScore,
			res.AverageScore,
			res.OverallGrade,
			res.Remark,
			int(res.Position),
			res.TeacherComment,
			res.PrincipalComment,
			res.Published,
			res.PublishedAt,
			res.CreatedBy,
			res.IdempotencyKey,
			res.Version,
			res.CreatedAt,
			res.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) && res.IdempotencyKey != "" {
				return shared.ErrDuplicateIdempotent
			}
			return fmt.Errorf("failed to create result: %w", err)
		}

		return markCohort(ctx, tx, res.Cohort)
	})
}

// Update stores the mutable fields if the stored version still matches.
// Cohort, student and author never change after creation.
func (r *ResultRepository) Update(ctx context.Context, res *result.Result) error {
	query := `
		UPDATE results SET
			subjects = $1,
			total_score = $2,
			average_score = $3,
			overall_grade = $4,
			remark = $5,
			position = $6,
			teacher_comment = $7,
			principal_comment = $8,
			published = $9,
			published_at = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $12 AND version = $13
	`

	subjectsJSON, err := json.Marshal(res.Subjects)
	if err != nil {
		return fmt.Errorf("failed to marshal subjects: %w", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query,
			subjectsJSON,
			res.TotalScore,
			res.AverageScore,
			res.OverallGrade,
			res.Remark,
			int(res.Position),
			res.TeacherComment,
			res.PrincipalComment,
			res.Published,
			res.PublishedAt,
			res.UpdatedAt,
			res.ID,
			res.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update result: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM results WHERE id = $1)`, res.ID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check result existence: %w", err)
			}
			if !exists {
				return shared.ErrResultNotFound
			}
			return shared.ErrResultModified
		}

		return markCohort(ctx, tx, res.Cohort)
	})
	if err != nil {
		return err
	}

	res.Version++
	return nil
}

// Delete removes a result. Positions of the rest of the cohort are left
// as they are.
func (r *ResultRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM results WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrResultNotFound
	}
	return nil
}

// MarkCohort queues the cohort for a re-rank sweep outside any write, so
// derived stores that fell behind are rebuilt by the worker.
func (r *ResultRepository) MarkCohort(ctx context.Context, cohort result.Cohort) error {
	return markCohort(ctx, r.conn, cohort)
}

// markCohort queues the cohort for a re-rank sweep.
func markCohort(ctx context.Context, q Querier, cohort result.Cohort) error {
	query := `
		INSERT INTO cohort_rerank_queue (class, term, session)
		VALUES ($1, $2, $3)
		ON CONFLICT (class, term, session)
		DO UPDATE SET mark_seq = cohort_rerank_queue.mark_seq + 1
	`
	if _, err := q.Exec(ctx, query, cohort.Class, string(cohort.Term), string(cohort.Session)); err != nil {
		return fmt.Errorf("failed to mark cohort %s: %w", cohort.Key(), err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a result by ID.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*result.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE id::text = $1`
	return scanResult(r.conn.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey returns the result created with the key.
func (r *ResultRepository) GetByIdempotencyKey(ctx context.Context, key string) (*result.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE idempotency_key = $1`
	return scanResult(r.conn.QueryRow(ctx, query, key))
}

// ListByStudent returns a student's results, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string, opts result.ListOptions) ([]*result.Result, error) {
	where, args := buildFilters([]string{"student_id = $1"}, []any{studentID}, opts)
	query := `SELECT ` + resultColumns + ` FROM results WHERE ` + where +
		fmt.Sprintf(" ORDER BY session DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.EffectiveLimit(), opts.Offset)

	return r.queryResults(ctx, query, args...)
}

// ListByClass returns the results of a class, ranked results first.
func (r *ResultRepository) ListByClass(ctx context.Context, class string, opts result.ListOptions) ([]*result.Result, error) {
	where, args := buildFilters([]string{"class = $1"}, []any{class}, opts)
	query := `SELECT ` + resultColumns + ` FROM results WHERE ` + where +
		fmt.Sprintf(" ORDER BY session DESC, term, (position = 0), position, student_name LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.EffectiveLimit(), opts.Offset)

	return r.queryResults(ctx, query, args...)
}

// ListByCohort returns every result of a cohort ordered by position.
func (r *ResultRepository) ListByCohort(ctx context.Context, cohort result.Cohort) ([]*result.Result, error) {
	query := `SELECT ` + resultColumns + `
		FROM results
		WHERE class = $1 AND term = $2 AND session = $3
		ORDER BY (position = 0), position, student_name
	`
	return r.queryResults(ctx, query, cohort.Class, string(cohort.Term), string(cohort.Session))
}

// ─────────────────────────────────────────────────────────────────────────────
// Re-rank sweep
// ─────────────────────────────────────────────────────────────────────────────

// RerankCohort rewrites every stored position of the cohort with standard
// competition ranks of the committed averages.
//
// Sweeps of one cohort are serialized by a transaction-scoped advisory
// lock, so the last sweep to start after a set of concurrent commits sees
// all of them. The queue row is removed only if its mark_seq is the one
// read before the UPDATE; a write marking the cohort later keeps it queued.
func (r *ResultRepository) RerankCohort(ctx context.Context, cohort result.Cohort) (int, error) {
	key := cohort.Key()

	changed := 0
	err := retry.DatabaseRetrier(IsRetryableTxError).Do(ctx, func(ctx context.Context) error {
		changed = 0
		return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				return fmt.Errorf("failed to lock cohort %s: %w", key, err)
			}

			var seq *int64
			err := tx.QueryRow(ctx, `
				SELECT mark_seq FROM cohort_rerank_queue
				WHERE class = $1 AND term = $2 AND session = $3
			`, cohort.Class, string(cohort.Term), string(cohort.Session)).Scan(&seq)
			if err != nil && !IsNoRows(err) {
				return fmt.Errorf("failed to read rerank mark: %w", err)
			}

			tag, err := tx.Exec(ctx, `
				WITH ranked AS (
					SELECT id, RANK() OVER (ORDER BY average_score DESC) AS pos
					FROM results
					WHERE class = $1 AND term = $2 AND session = $3
				)
				UPDATE results r
				SET position = ranked.pos
				FROM ranked
				WHERE r.id = ranked.id AND r.position <> ranked.pos
			`, cohort.Class, string(cohort.Term), string(cohort.Session))
			if err != nil {
				return fmt.Errorf("failed to rerank cohort %s: %w", key, err)
			}
			changed = int(tag.RowsAffected())

			if seq != nil {
				_, err = tx.Exec(ctx, `
					DELETE FROM cohort_rerank_queue
					WHERE class = $1 AND term = $2 AND session = $3 AND mark_seq = $4
				`, cohort.Class, string(cohort.Term), string(cohort.Session), *seq)
				if err != nil {
					return fmt.Errorf("failed to clear rerank mark: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// PendingCohorts lists queued cohorts, oldest mark first.
func (r *ResultRepository) PendingCohorts(ctx context.Context, limit int) ([]result.PendingCohort, error) {
	if limit <= 0 {
		limit = result.DefaultListLimit
	}

	rows, err := r.conn.Query(ctx, `
		SELECT class, term, session, marked_at
		FROM cohort_rerank_queue
		ORDER BY marked_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending cohorts: %w", err)
	}
	defer rows.Close()

	var pending []result.PendingCohort
	for rows.Next() {
		var p result.PendingCohort
		var term, session string
		if err := rows.Scan(&p.Cohort.Class, &term, &session, &p.MarkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending cohort: %w", err)
		}
		p.Cohort.Term = result.Term(term)
		p.Cohort.Session = result.Session(session)
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return pending, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// buildFilters appends the optional ListOptions conditions to base.
func buildFilters(conditions []string, args []any, opts result.ListOptions) (string, []any) {
	if opts.Term != "" {
		args = append(args, string(opts.Term))
		conditions = append(conditions, fmt.Sprintf("term = $%d", len(args)))
	}
	if opts.Session != "" {
		args = append(args, string(opts.Session))
		conditions = append(conditions, fmt.Sprintf("session = $%d", len(args)))
	}
	if opts.PublishedOnly {
		conditions = append(conditions, "published")
	}
	return strings.Join(conditions, " AND "), args
}

func (r *ResultRepository) queryResults(ctx context.Context, query string, args ...any) ([]*result.Result, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]*result.Result, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, nil
}

// scanResult scans one result from a row produced by resultColumns.
func scanResult(row pgx.Row) (*result.Result, error) {
	var res result.Result
	var term, session, resultType string
	var subjectsJSON []byte
	var position int

	err := row.Scan(
		&res.ID,
		&res.StudentID,
		&res.StudentName,
		&res.AdmissionNumber,
		&res.Cohort.Class,
		&term,
		&session,
		&resultType,
		&subjectsJSON,
		&res.TotalScore,
		&res.AverageScore,
		&res.OverallGrade,
		&res.Remark,
		&position,
		&res.TeacherComment,
		&res.PrincipalComment,
		&res.Published,
		&res.PublishedAt,
		&res.CreatedBy,
		&res.IdempotencyKey,
		&res.Version,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	if err := json.Unmarshal(subjectsJSON, &res.Subjects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subjects of %s: %w", res.ID, err)
	}

	res.Cohort.Term = result.Term(term)
	res.Cohort.Session = result.Session(session)
	res.Type = result.Type(resultType)
	res.Position = result.Position(position)

	return &res, nil
}
