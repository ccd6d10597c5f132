package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/school-results/internal/domain/result"
)

func TestBuildFilters(t *testing.T) {
	where, args := buildFilters([]string{"class = $1"}, []any{"JSS 1"}, result.ListOptions{})
	assert.Equal(t, "class = $1", where)
	assert.Equal(t, []any{"JSS 1"}, args)

	opts := result.ListOptions{}.WithTerm(result.TermSecond).WithSession("2024/2025").OnlyPublished()
	where, args = buildFilters([]string{"student_id = $1"}, []any{"s1"}, opts)
	assert.Equal(t, "student_id = $1 AND term = $2 AND session = $3 AND published", where)
	assert.Equal(t, []any{"s1", "Second", "2024/2025"}, args)
}

func TestGetMigrations_Ordered(t *testing.T) {
	migrations := GetMigrations()

	seen := make(map[int]bool)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.False(t, seen[m.Version])
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
		seen[m.Version] = true
	}
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	serialization := &pgconn.PgError{Code: "40001"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsCheckViolation(unique))
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514"}))
	assert.True(t, IsRetryableTxError(serialization))
	assert.True(t, IsRetryableTxError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryableTxError(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))

	assert.True(t, IsRejectedConnection(fmt.Errorf("ping: %w", &pgconn.PgError{Code: "28P01"})))
	assert.True(t, IsRejectedConnection(&pgconn.PgError{Code: "3D000"}))
	assert.False(t, IsRejectedConnection(serialization))
	assert.False(t, IsRejectedConnection(errors.New("connection refused")))
}
