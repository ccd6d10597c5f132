package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/pkg/circuitbreaker"
)

var cohort = result.Cohort{Class: "JSS 1", Term: result.TermFirst, Session: "2024/2025"}

// deadCache points at a port nothing listens on.
func deadCache() *Cache {
	return NewCacheFromClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "results:cohort:JSS_1:First:2024/2025", CohortIndexKey(cohort))
	assert.Equal(t, "results:stats:JSS_1:First:2024/2025", StatsKey(cohort))
	assert.Equal(t, "results:lock:rerank", LockKey("rerank"))

	other := result.Cohort{Class: "JSS:1", Term: result.TermFirst, Session: "2024/2025"}
	assert.Equal(t, CohortIndexKey(cohort), CohortIndexKey(other), "separators inside the class are escaped")
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache"
	cfg.DB = 2

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)

	cfg.URL = "redis://:pw@redis.internal:6380/3"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	cfg.URL = "http://nope"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestScoreString(t *testing.T) {
	assert.Equal(t, "61.67", scoreString(61.67))
	assert.Equal(t, "100", scoreString(100))
}

func TestCohortIndex_BreakerOpensOnDeadRedis(t *testing.T) {
	cache := deadCache()
	defer cache.Close()

	breaker := circuitbreaker.RedisBreaker("cohort-index", 1, time.Minute, nil)
	index := NewCohortIndex(cache, breaker)
	ctx := context.Background()

	err := index.Upsert(ctx, cohort, "r1", 70)
	require.Error(t, err)
	assert.False(t, circuitbreaker.IsRejected(err))
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, err = index.Position(ctx, cohort, 70)
	assert.True(t, circuitbreaker.IsRejected(err))

	assert.ErrorIs(t, index.Remove(ctx, cohort, ""), ErrResultIDEmpty)
}

func TestStatsCache_FailsFastWhenOpen(t *testing.T) {
	cache := deadCache()
	defer cache.Close()

	breaker := circuitbreaker.RedisBreaker("stats-cache", 1, time.Minute, nil)
	stats := NewStatsCache(cache, breaker, 0)
	ctx := context.Background()

	_, ok, err := stats.GetStatistics(ctx, cohort)
	require.Error(t, err)
	assert.False(t, ok)

	err = stats.InvalidateStatistics(ctx, cohort)
	assert.True(t, circuitbreaker.IsRejected(err))

	assert.NoError(t, stats.SetStatistics(ctx, cohort, nil))
}
