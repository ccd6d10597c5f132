package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int64
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestEvery(t *testing.T) {
	s := Every(10 * time.Millisecond)
	assert.Equal(t, MinInterval, s.Interval)
	assert.Equal(t, "@every 1m0s", Every(time.Minute).String())

	t0 := time.Unix(0, 0)
	assert.Equal(t, t0.Add(time.Minute), Every(time.Minute).Next(t0))
}

func TestRegister(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
}

func TestRunDue_NoOverlap(t *testing.T) {
	s := New(Config{TickInterval: time.Hour})
	job := &countingJob{name: "sweep", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Second)))

	require.NoError(t, s.Start(context.Background()))

	later := time.Now().Add(time.Minute)
	s.runDue(later)
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.runDue(later.Add(time.Minute))
	assert.Equal(t, int64(1), job.runs.Load(), "a running job is not started again")

	_, err := s.RunNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	require.Eventually(t, func() bool { return !s.ListJobs()[0].Running }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestRunDue_DisabledJobSkipped(t *testing.T) {
	s := New(Config{TickInterval: time.Hour})
	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, Every(time.Second)))
	require.NoError(t, s.SetEnabled("sweep", false))

	require.NoError(t, s.Start(context.Background()))
	s.runDue(time.Now().Add(time.Hour))
	require.NoError(t, s.Stop())

	assert.Equal(t, int64(0), job.runs.Load())
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "sweep", err: errors.New("cohort failed")}
	require.NoError(t, s.Register(job, Every(time.Minute)))

	var completed []JobResult
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r) })

	res, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)
	assert.Equal(t, "cohort failed", res.Error)

	job.err = nil
	res, err = s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, res.Success)

	info := s.ListJobs()[0]
	assert.Equal(t, int64(2), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	assert.Len(t, completed, 2)
	assert.Len(t, s.History(0), 2)
	assert.Len(t, s.History(1), 1)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobTimeout(t *testing.T) {
	s := New(Config{JobTimeout: 20 * time.Millisecond})
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Minute)))

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorContains(t, err, "deadline exceeded")
}

func TestPanicIsRecorded(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(panicJob{}, Every(time.Minute)))

	_, err := s.RunNow(context.Background(), "panics")
	assert.ErrorContains(t, err, "panicked")
}

type panicJob struct{}

func (panicJob) Name() string              { return "panics" }
func (panicJob) Description() string       { return "" }
func (panicJob) Run(context.Context) error { panic("boom") }
