package query

import (
	"context"
	"errors"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// stubRepo is a read-only result.Repository over a fixed set of results.
type stubRepo struct {
	results []*result.Result
	err     error

	lastOpts result.ListOptions
	lists    int
}

var _ result.Repository = (*stubRepo)(nil)

var errDown = errors.New("database unavailable")

func (s *stubRepo) ListResultAverages(_ context.Context, cohort result.Cohort, excludeID string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []float64
	for _, r := range s.results {
		if r.Cohort == cohort && r.ID != excludeID {
			out = append(out, r.AverageScore)
		}
	}
	return out, nil
}

func (s *stubRepo) Create(context.Context, *result.Result) error { return errors.New("read only") }
func (s *stubRepo) Update(context.Context, *result.Result) error { return errors.New("read only") }
func (s *stubRepo) Delete(context.Context, string) error         { return errors.New("read only") }

func (s *stubRepo) GetByID(_ context.Context, id string) (*result.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.results {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, shared.ErrResultNotFound
}

func (s *stubRepo) GetByIdempotencyKey(context.Context, string) (*result.Result, error) {
	return nil, shared.ErrResultNotFound
}

func (s *stubRepo) ListByStudent(_ context.Context, studentID string, opts result.ListOptions) ([]*result.Result, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	var out []*result.Result
	for _, r := range s.results {
		if r.StudentID == studentID && (!opts.PublishedOnly || r.Published) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *stubRepo) ListByClass(_ context.Context, class string, opts result.ListOptions) ([]*result.Result, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	var out []*result.Result
	for _, r := range s.results {
		if r.Cohort.Class == class {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *stubRepo) ListByCohort(_ context.Context, cohort result.Cohort) ([]*result.Result, error) {
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	var out []*result.Result
	for _, r := range s.results {
		if r.Cohort == cohort {
			out = append(out, r.Clone())
		}
	}
	result.SortByPosition(out)
	return out, nil
}

// memoryStatsCache is a map-backed StatisticsCache.
type memoryStatsCache struct {
	stats map[string]*result.ClassStatistics
	sets  int
	err   error
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{stats: make(map[string]*result.ClassStatistics)}
}

func (c *memoryStatsCache) GetStatistics(_ context.Context, cohort result.Cohort) (*result.ClassStatistics, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	s, ok := c.stats[cohort.Key()]
	return s, ok, nil
}

func (c *memoryStatsCache) SetStatistics(_ context.Context, cohort result.Cohort, stats *result.ClassStatistics) error {
	c.sets++
	c.stats[cohort.Key()] = stats
	return nil
}

func (c *memoryStatsCache) InvalidateStatistics(_ context.Context, cohort result.Cohort) error {
	delete(c.stats, cohort.Key())
	return nil
}

// fixedIndex answers Position with a fixed value or error.
type fixedIndex struct {
	pos result.Position
	err error
}

func (f fixedIndex) Upsert(context.Context, result.Cohort, string, float64) error { return nil }
func (f fixedIndex) Remove(context.Context, result.Cohort, string) error          { return nil }
func (f fixedIndex) Rebuild(context.Context, result.Cohort, []result.Standing) error {
	return nil
}
func (f fixedIndex) Position(context.Context, result.Cohort, float64) (result.Position, error) {
	return f.pos, f.err
}

var (
	staff  = shared.Actor{ID: "teacher-1", Role: shared.RoleTeacher}
	parent = shared.Actor{ID: "parent-1", Role: shared.RoleParent, StudentIDs: []string{"s1"}}
)

func as(actor shared.Actor) context.Context {
	return shared.ContextWithActor(context.Background(), actor)
}

var cohort = result.Cohort{Class: "Primary 3", Term: result.TermFirst, Session: "2024/2025"}

func stored(id, studentID string, avg float64, pos result.Position, published bool) *result.Result {
	grade := "B"
	if avg < 40 {
		grade = "F"
	}
	return &result.Result{
		ID:           id,
		StudentID:    studentID,
		StudentName:  "Student " + studentID,
		Cohort:       cohort,
		Type:         result.TypeExamination,
		Subjects:     []result.SubjectScore{{Name: "Mathematics", Score: avg}},
		TotalScore:   avg,
		AverageScore: avg,
		OverallGrade: grade,
		Position:     pos,
		Published:    published,
		Version:      1,
	}
}
