package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

var (
	jss1 = result.Cohort{Class: "JSS 1", Term: result.TermFirst, Session: "2024/2025"}
	jss2 = result.Cohort{Class: "JSS 2", Term: result.TermFirst, Session: "2024/2025"}
)

type fakeSweeper struct {
	mu      sync.Mutex
	pending []result.PendingCohort
	failOn  map[string]error
	changed map[string]int
	swept   []string
	listErr error
}

func (f *fakeSweeper) RerankCohort(_ context.Context, c result.Cohort) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[c.Key()]; err != nil {
		return 0, err
	}
	f.swept = append(f.swept, c.Key())
	return f.changed[c.Key()], nil
}

func (f *fakeSweeper) PendingCohorts(_ context.Context, limit int) ([]result.PendingCohort, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

type fakeResults struct {
	result.Repository
	byCohort map[string][]*result.Result
}

func (f *fakeResults) ListByCohort(_ context.Context, c result.Cohort) ([]*result.Result, error) {
	return f.byCohort[c.Key()], nil
}

type fakeIndex struct {
	result.CohortIndex
	rebuilt map[string][]result.Standing
}

func (f *fakeIndex) Rebuild(_ context.Context, c result.Cohort, s []result.Standing) error {
	f.rebuilt[c.Key()] = s
	return nil
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func pending(cohorts ...result.Cohort) []result.PendingCohort {
	out := make([]result.PendingCohort, len(cohorts))
	for i, c := range cohorts {
		out[i] = result.PendingCohort{Cohort: c, MarkedAt: time.Unix(int64(i), 0)}
	}
	return out
}

func newJob(sweeper *fakeSweeper, locker Locker, index result.CohortIndex, results result.Repository) (*RerankCohortsJob, *recordingPublisher) {
	pub := &recordingPublisher{}
	rerank := command.NewRerankCohortHandler(sweeper, nil, pub)
	return NewRerankCohortsJob(sweeper, results, rerank, index, locker, nil, DefaultRerankCohortsConfig()), pub
}

func TestRun_SweepsPendingAndRebuildsIndex(t *testing.T) {
	sweeper := &fakeSweeper{
		pending: pending(jss1, jss2),
		changed: map[string]int{jss1.Key(): 3},
	}
	results := &fakeResults{byCohort: map[string][]*result.Result{
		jss1.Key(): {{ID: "r1", AverageScore: 80, Position: 1}, {ID: "r2", AverageScore: 70, Position: 2}},
	}}
	index := &fakeIndex{rebuilt: make(map[string][]result.Standing)}
	locker := &fakeLocker{}

	job, pub := newJob(sweeper, locker, index, results)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{jss1.Key(), jss2.Key()}, sweeper.swept)
	assert.Len(t, index.rebuilt[jss1.Key()], 2)
	assert.Equal(t, 1, locker.released)

	require.Len(t, pub.events, 1, "only cohorts with moved positions emit an event")
	assert.Equal(t, shared.EventCohortReranked, pub.events[0].EventType())

	stats := job.LastRun()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Swept)
	assert.Equal(t, 3, stats.PositionsMoved)
	assert.Equal(t, 2, stats.IndexRebuilt)
	assert.Equal(t, int64(2), job.TotalSwept())
}

func TestRun_OneCohortFailing(t *testing.T) {
	sweeper := &fakeSweeper{
		pending: pending(jss1, jss2),
		failOn:  map[string]error{jss1.Key(): errors.New("deadlock detected")},
	}
	job, _ := newJob(sweeper, nil, nil, nil)

	err := job.Run(context.Background())
	require.ErrorIs(t, err, ErrSweepIncomplete)
	assert.Equal(t, []string{jss2.Key()}, sweeper.swept, "later cohorts still get swept")
	assert.Equal(t, int64(1), job.FailedRuns())
	assert.Contains(t, job.LastRun().FirstError, "deadlock")
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	sweeper := &fakeSweeper{pending: pending(jss1)}
	job, _ := newJob(sweeper, &fakeLocker{held: true}, nil, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, sweeper.swept)
	assert.True(t, job.LastRun().SkippedNoLock)
}

func TestRun_LockErrorStillSweeps(t *testing.T) {
	sweeper := &fakeSweeper{pending: pending(jss1)}
	job, _ := newJob(sweeper, &fakeLocker{err: errors.New("redis down")}, nil, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{jss1.Key()}, sweeper.swept)
}

func TestRun_ListFailure(t *testing.T) {
	sweeper := &fakeSweeper{listErr: errors.New("connection refused")}
	job, _ := newJob(sweeper, nil, nil, nil)

	assert.Error(t, job.Run(context.Background()))
	assert.Equal(t, int64(1), job.FailedRuns())
}

func TestRun_BatchSize(t *testing.T) {
	sweeper := &fakeSweeper{pending: pending(jss1, jss2)}
	pub := &recordingPublisher{}
	job := NewRerankCohortsJob(sweeper, nil, command.NewRerankCohortHandler(sweeper, nil, pub), nil, nil, nil,
		RerankCohortsConfig{BatchSize: 1})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{jss1.Key()}, sweeper.swept)
}
