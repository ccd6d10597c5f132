package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// COHORT INDEX
// ══════════════════════════════════════════════════════════════════════════════

// DefaultIndexTTL is how long an untouched cohort index lives.
const DefaultIndexTTL = 7 * 24 * time.Hour

// ErrResultIDEmpty is returned when a member ID is empty.
var ErrResultIDEmpty = errors.New("cohort index: result ID cannot be empty")

// CohortIndex keeps one sorted set per cohort: member = result ID,
// score = average. All calls pass through a circuit breaker so a dead
// Redis costs one fast rejection instead of a timeout per request.
type CohortIndex struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

var _ result.CohortIndex = (*CohortIndex)(nil)

// NewCohortIndex creates a CohortIndex. A nil breaker gets the default
// Redis breaker.
func NewCohortIndex(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *CohortIndex {
	if breaker == nil {
		breaker = circuitbreaker.RedisBreaker("cohort-index", 5, 30*time.Second, nil)
	}
	return &CohortIndex{cache: cache, breaker: breaker, ttl: DefaultIndexTTL}
}

// Upsert adds or moves a result. O(log N).
func (i *CohortIndex) Upsert(ctx context.Context, cohort result.Cohort, resultID string, average float64) error {
	if resultID == "" {
		return ErrResultIDEmpty
	}

	key := CohortIndexKey(cohort)
	return i.breaker.Execute(ctx, func(ctx context.Context) error {
		pipe := i.cache.Client().Pipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: average, Member: resultID})
		pipe.Expire(ctx, key, i.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Remove drops a result from its cohort.
func (i *CohortIndex) Remove(ctx context.Context, cohort result.Cohort, resultID string) error {
	if resultID == "" {
		return ErrResultIDEmpty
	}

	return i.breaker.Execute(ctx, func(ctx context.Context) error {
		return i.cache.Client().ZRem(ctx, CohortIndexKey(cohort), resultID).Err()
	})
}

// Position returns 1 + the number of members with a strictly greater
// average. An empty or missing index reports result.Unranked so callers
// fall back to the store.
func (i *CohortIndex) Position(ctx context.Context, cohort result.Cohort, average float64) (result.Position, error) {
	key := CohortIndexKey(cohort)

	return circuitbreaker.ExecuteValue(ctx, i.breaker, func(ctx context.Context) (result.Position, error) {
		pipe := i.cache.Client().Pipeline()
		card := pipe.ZCard(ctx, key)
		above := pipe.ZCount(ctx, key, "("+scoreString(average), "+inf")
		if _, err := pipe.Exec(ctx); err != nil {
			return result.Unranked, err
		}

		if card.Val() == 0 {
			return result.Unranked, nil
		}
		return result.Position(above.Val() + 1), nil
	})
}

// Rebuild atomically replaces the cohort's members with standings.
func (i *CohortIndex) Rebuild(ctx context.Context, cohort result.Cohort, standings []result.Standing) error {
	key := CohortIndexKey(cohort)

	return i.breaker.Execute(ctx, func(ctx context.Context) error {
		pipe := i.cache.Client().TxPipeline()
		pipe.Del(ctx, key)

		if len(standings) > 0 {
			members := make([]redis.Z, 0, len(standings))
			for _, s := range standings {
				if s.ResultID == "" {
					continue
				}
				members = append(members, redis.Z{Score: s.AverageScore, Member: s.ResultID})
			}
			if len(members) > 0 {
				pipe.ZAdd(ctx, key, members...)
				pipe.Expire(ctx, key, i.ttl)
			}
		}

		_, err := pipe.Exec(ctx)
		return err
	})
}

// Breaker exposes the breaker for health reporting.
func (i *CohortIndex) Breaker() *circuitbreaker.CircuitBreaker {
	return i.breaker
}
