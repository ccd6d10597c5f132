package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/school-results/internal/application/query"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/pkg/circuitbreaker"
)

// DefaultStatsTTL bounds how long cached statistics may lag a missed
// invalidation.
const DefaultStatsTTL = 5 * time.Minute

// StatsCache caches class statistics as JSON.
type StatsCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

var _ query.StatisticsCache = (*StatsCache)(nil)

// NewStatsCache creates a StatsCache. ttl <= 0 uses DefaultStatsTTL.
func NewStatsCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	if breaker == nil {
		breaker = circuitbreaker.RedisBreaker("stats-cache", 5, 30*time.Second, nil)
	}
	return &StatsCache{cache: cache, breaker: breaker, ttl: ttl}
}

// GetStatistics returns cached statistics; ok is false on a miss.
func (s *StatsCache) GetStatistics(ctx context.Context, cohort result.Cohort) (*result.ClassStatistics, bool, error) {
	var stats result.ClassStatistics
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		err := s.cache.GetJSON(ctx, StatsKey(cohort), &stats)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if stats.Cohort.Class == "" {
		return nil, false, nil
	}
	return &stats, true, nil
}

// SetStatistics stores statistics for the cohort.
func (s *StatsCache) SetStatistics(ctx context.Context, cohort result.Cohort, stats *result.ClassStatistics) error {
	if stats == nil {
		return nil
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.SetJSON(ctx, StatsKey(cohort), stats, s.ttl)
	})
}

// InvalidateStatistics drops the cached statistics of the cohort.
func (s *StatsCache) InvalidateStatistics(ctx context.Context, cohort result.Cohort) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, StatsKey(cohort))
	})
}
