// Package jobs contains the scheduled jobs of the result engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/domain/result"
)

// ══════════════════════════════════════════════════════════════════════════════
// RERANK COHORTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Locker hands out cluster-wide locks.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// RerankCohortsJob drains the cohort re-rank queue. Every cohort marked by
// a write whose own sweep failed or was disabled is swept here, so stored
// positions converge once writes stop.
type RerankCohortsJob struct {
	sweeper  result.RankSweeper
	rerank   *command.RerankCohortHandler
	results  result.Repository
	index    result.CohortIndex
	locker   Locker
	logger   *slog.Logger
	config   RerankCohortsConfig
	lastRun  atomic.Pointer[RerankStats]
	total    atomic.Int64
	failures atomic.Int64
}

// RerankCohortsConfig contains configuration for the sweep job.
type RerankCohortsConfig struct {
	// BatchSize is how many pending cohorts one run takes.
	BatchSize int

	// LockTTL bounds how long a crashed run blocks other workers.
	LockTTL time.Duration

	// RebuildIndex refreshes the Redis cohort index after each sweep.
	RebuildIndex bool
}

// DefaultRerankCohortsConfig returns sensible defaults.
func DefaultRerankCohortsConfig() RerankCohortsConfig {
	return RerankCohortsConfig{
		BatchSize:    50,
		LockTTL:      2 * time.Minute,
		RebuildIndex: true,
	}
}

// RerankStats summarizes one run.
type RerankStats struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Pending        int           `json:"pending"`
	Swept          int           `json:"swept"`
	Failed         int           `json:"failed"`
	PositionsMoved int           `json:"positions_moved"`
	IndexRebuilt   int           `json:"index_rebuilt"`
	SkippedNoLock  bool          `json:"skipped_no_lock,omitempty"`
	FirstError     string        `json:"first_error,omitempty"`
}

// ErrSweepIncomplete is returned when at least one cohort failed to sweep.
var ErrSweepIncomplete = errors.New("some cohorts were not re-ranked")

// NewRerankCohortsJob creates the job. index and locker may be nil.
func NewRerankCohortsJob(
	sweeper result.RankSweeper,
	results result.Repository,
	rerank *command.RerankCohortHandler,
	index result.CohortIndex,
	locker Locker,
	logger *slog.Logger,
	config RerankCohortsConfig,
) *RerankCohortsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRerankCohortsConfig().BatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultRerankCohortsConfig().LockTTL
	}

	return &RerankCohortsJob{
		sweeper: sweeper,
		rerank:  rerank,
		results: results,
		index:   index,
		locker:  locker,
		logger:  logger.With("job", "rerank_cohorts"),
		config:  config,
	}
}

// Name returns the job name.
func (j *RerankCohortsJob) Name() string {
	return "rerank_cohorts"
}

// Description returns a human-readable description.
func (j *RerankCohortsJob) Description() string {
	return "Re-ranks cohorts whose stored positions may be stale"
}

// Run executes one sweep pass.
func (j *RerankCohortsJob) Run(ctx context.Context) error {
	stats := &RerankStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastRun.Store(stats)
	}()

	if j.locker != nil {
		release, ok, err := j.locker.Acquire(ctx, j.Name(), j.config.LockTTL)
		if err != nil {
			// Without Redis every worker sweeps; the advisory lock in
			// PostgreSQL still serializes sweeps per cohort.
			j.logger.Warn("lock unavailable, sweeping without it", "error", err)
		} else if !ok {
			stats.SkippedNoLock = true
			j.logger.Debug("another worker holds the sweep lock")
			return nil
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					j.logger.Warn("failed to release sweep lock", "error", err)
				}
			}()
		}
	}

	pending, err := j.sweeper.PendingCohorts(ctx, j.config.BatchSize)
	if err != nil {
		j.failures.Add(1)
		return fmt.Errorf("failed to list pending cohorts: %w", err)
	}
	stats.Pending = len(pending)

	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}

		changed, err := j.rerank.Handle(ctx, command.RerankCohortCommand{Cohort: p.Cohort})
		if err != nil {
			stats.Failed++
			if stats.FirstError == "" {
				stats.FirstError = err.Error()
			}
			j.logger.Error("cohort sweep failed",
				"cohort", p.Cohort.Key(),
				"pending_since", p.MarkedAt,
				"error", err,
			)
			continue
		}

		stats.Swept++
		stats.PositionsMoved += changed
		if changed > 0 {
			j.logger.Info("cohort re-ranked", "cohort", p.Cohort.Key(), "changed", changed)
		}

		if j.rebuildIndex(ctx, p.Cohort) {
			stats.IndexRebuilt++
		}
	}

	j.total.Add(int64(stats.Swept))

	if stats.Failed > 0 {
		j.failures.Add(1)
		return fmt.Errorf("%w: %d of %d failed, first: %s", ErrSweepIncomplete, stats.Failed, stats.Pending, stats.FirstError)
	}
	return nil
}

// rebuildIndex replaces the Redis index of a cohort with the stored
// standings. Failures only cost live-position accuracy and are logged.
func (j *RerankCohortsJob) rebuildIndex(ctx context.Context, cohort result.Cohort) bool {
	if !j.config.RebuildIndex || j.index == nil || j.results == nil {
		return false
	}

	stored, err := j.results.ListByCohort(ctx, cohort)
	if err != nil {
		j.logger.Warn("failed to load cohort for index rebuild", "cohort", cohort.Key(), "error", err)
		return false
	}

	if err := j.index.Rebuild(ctx, cohort, result.StandingsOf(stored)); err != nil {
		j.logger.Warn("cohort index rebuild failed", "cohort", cohort.Key(), "error", err)
		return false
	}
	return true
}

// LastRun returns the stats of the latest run, or nil.
func (j *RerankCohortsJob) LastRun() *RerankStats {
	return j.lastRun.Load()
}

// TotalSwept returns how many cohorts all runs swept.
func (j *RerankCohortsJob) TotalSwept() int64 {
	return j.total.Load()
}

// FailedRuns returns how many runs ended with an error.
func (j *RerankCohortsJob) FailedRuns() int64 {
	return j.failures.Load()
}
