package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// memoryRepo is an in-memory result.Repository and result.RankSweeper.
type memoryRepo struct {
	mu      sync.Mutex
	results map[string]*result.Result
	pending map[string]result.Cohort

	listErr   error
	getErr    error
	createErr error
	updateErr error
	deleteErr error
	sweepErr  error

	beforeList   func()
	beforeUpdate func()
	sweeps       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		results: make(map[string]*result.Result),
		pending: make(map[string]result.Cohort),
	}
}

var errBoom = errors.New("connection reset")

func (m *memoryRepo) ListResultAverages(_ context.Context, cohort result.Cohort, excludeID string) ([]float64, error) {
	if m.beforeList != nil {
		m.beforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []float64
	for _, r := range m.results {
		if r.Cohort == cohort && r.ID != excludeID {
			out = append(out, r.AverageScore)
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, r *result.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if r.IdempotencyKey != "" {
		for _, existing := range m.results {
			if existing.IdempotencyKey == r.IdempotencyKey {
				return shared.ErrDuplicateIdempotent
			}
		}
	}
	m.results[r.ID] = r.Clone()
	m.pending[r.Cohort.Key()] = r.Cohort
	return nil
}

func (m *memoryRepo) Update(_ context.Context, r *result.Result) error {
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.results[r.ID]
	if !ok {
		return shared.ErrResultNotFound
	}
	if stored.Version != r.Version {
		return shared.ErrResultModified
	}
	r.Version++
	m.results[r.ID] = r.Clone()
	m.pending[r.Cohort.Key()] = r.Cohort
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.results[id]; !ok {
		return shared.ErrResultNotFound
	}
	delete(m.results, id)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.results[id]
	if !ok {
		return nil, shared.ErrResultNotFound
	}
	return r.Clone(), nil
}

func (m *memoryRepo) GetByIdempotencyKey(_ context.Context, key string) (*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.IdempotencyKey == key {
			return r.Clone(), nil
		}
	}
	return nil, shared.ErrResultNotFound
}

func (m *memoryRepo) ListByStudent(_ context.Context, studentID string, _ result.ListOptions) ([]*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*result.Result
	for _, r := range m.results {
		if r.StudentID == studentID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByClass(_ context.Context, class string, _ result.ListOptions) ([]*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*result.Result
	for _, r := range m.results {
		if r.Cohort.Class == class {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memoryRepo) ListByCohort(_ context.Context, cohort result.Cohort) ([]*result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*result.Result
	for _, r := range m.results {
		if r.Cohort == cohort {
			out = append(out, r.Clone())
		}
	}
	result.SortByPosition(out)
	return out, nil
}

func (m *memoryRepo) RerankCohort(_ context.Context, cohort result.Cohort) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
	if m.sweepErr != nil {
		return 0, m.sweepErr
	}

	var members []*result.Result
	for _, r := range m.results {
		if r.Cohort == cohort {
			members = append(members, r)
		}
	}

	changed := 0
	for _, s := range result.RankStandings(result.StandingsOf(members)) {
		r := m.results[s.ResultID]
		if r.Position != s.Position {
			r.Position = s.Position
			changed++
		}
	}
	delete(m.pending, cohort.Key())
	return changed, nil
}

func (m *memoryRepo) PendingCohorts(_ context.Context, limit int) ([]result.PendingCohort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []result.PendingCohort
	for _, c := range m.pending {
		out = append(out, result.PendingCohort{Cohort: c, MarkedAt: time.Unix(0, 0)})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryRepo) positionOf(id string) result.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[id].Position
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventType()
	}
	return out
}

var (
	admin   = shared.Actor{ID: "admin-1", Role: shared.RoleAdmin}
	teacher = shared.Actor{ID: "teacher-1", Role: shared.RoleTeacher}
	other   = shared.Actor{ID: "teacher-2", Role: shared.RoleTeacher}
	parent  = shared.Actor{ID: "parent-1", Role: shared.RoleParent, StudentIDs: []string{"s1"}}
)

func as(actor shared.Actor) context.Context {
	return shared.ContextWithActor(context.Background(), actor)
}

var testCohort = result.Cohort{Class: "Primary 3", Term: result.TermFirst, Session: "2024/2025"}

func createCmd(studentID string, scores ...float64) CreateResultCommand {
	subjects := make([]result.SubjectScore, len(scores))
	names := []string{"Mathematics", "English Language", "Basic Science", "Social Studies"}
	for i, s := range scores {
		subjects[i] = result.SubjectScore{Name: names[i%len(names)], Score: s}
	}
	return CreateResultCommand{
		StudentID:   studentID,
		StudentName: "Student " + studentID,
		Class:       testCohort.Class,
		Term:        testCohort.Term,
		Session:     testCohort.Session,
		Type:        result.TypeExamination,
		Subjects:    subjects,
	}
}

func newDeps(repo *memoryRepo, bus *recordingBus) LifecycleDeps {
	deps := LifecycleDeps{
		Results: repo,
		Sweeper: repo,
		Config:  DefaultLifecycleConfig(),
		Now:     func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) },
	}
	if bus != nil {
		deps.Publisher = bus
	}
	return deps
}
