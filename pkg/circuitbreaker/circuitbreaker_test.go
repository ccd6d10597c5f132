package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRedis = errors.New("i/o timeout")

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail(context.Context) error    { return errRedis }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	var transitions []State
	cb := New("cohort-index",
		WithFailureThreshold(2),
		WithSuccessThreshold(1),
		WithTimeout(time.Minute),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)
	cb.config.Now = clk.now

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errRedis)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errRedis)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))

	clk.advance(time.Minute)
	require.NoError(t, cb.Execute(context.Background(), succeed))
	assert.Equal(t, StateClosed, cb.State(), "one success closes with threshold 1")
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	cb := New("stats", WithFailureThreshold(1), WithSuccessThreshold(2), WithTimeout(time.Second))
	cb.config.Now = clk.now

	_ = cb.Execute(context.Background(), fail)
	clk.advance(time.Second)

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 2, cb.counts.TotalFailures)

	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	cb := RedisBreaker("cohort-index", 1, time.Minute, nil)

	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecuteValue(t *testing.T) {
	cb := New("x")

	v, err := ExecuteValue(context.Background(), cb, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
