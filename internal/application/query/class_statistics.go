package query

import (
	"context"
	"log/slog"

	"github.com/alem-hub/school-results/internal/domain/grading"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS STATISTICS QUERY
// Class average, pass rate, grade distribution, top performers and
// per-subject figures for one cohort.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassStatisticsQuery selects a cohort.
type GetClassStatisticsQuery struct {
	Class   string
	Term    result.Term
	Session result.Session
	Top     int
}

// StatisticsCache stores computed statistics per cohort. Implementations
// must treat a miss as (nil, false, nil).
type StatisticsCache interface {
	GetStatistics(ctx context.Context, cohort result.Cohort) (*result.ClassStatistics, bool, error)
	SetStatistics(ctx context.Context, cohort result.Cohort, stats *result.ClassStatistics) error
	InvalidateStatistics(ctx context.Context, cohort result.Cohort) error
}

// GetClassStatisticsHandler handles GetClassStatisticsQuery.
type GetClassStatisticsHandler struct {
	results result.Repository
	table   *grading.Table
	cache   StatisticsCache
	actors  shared.ActorProvider
	logger  *slog.Logger
}

// NewGetClassStatisticsHandler creates a new handler. cache may be nil.
func NewGetClassStatisticsHandler(
	results result.Repository,
	table *grading.Table,
	cache StatisticsCache,
	actors shared.ActorProvider,
	logger *slog.Logger,
) *GetClassStatisticsHandler {
	if table == nil {
		table = grading.DefaultTable()
	}
	if actors == nil {
		actors = shared.ContextActorProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetClassStatisticsHandler{
		results: results,
		table:   table,
		cache:   cache,
		actors:  actors,
		logger:  logger,
	}
}

// Handle returns statistics for staff. Cached values are used only for the
// default top size; cache failures fall through to the store.
func (h *GetClassStatisticsHandler) Handle(ctx context.Context, q GetClassStatisticsQuery) (*result.ClassStatistics, error) {
	actor, err := h.actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, shared.ErrNotAuthorized
	}

	cohort, err := result.NewCohort(q.Class, q.Term, q.Session)
	if err != nil {
		return nil, err
	}

	cacheable := h.cache != nil && (q.Top == 0 || q.Top == result.DefaultTopPerformers)
	if cacheable {
		stats, ok, err := h.cache.GetStatistics(ctx, cohort)
		if err != nil {
			h.logger.Warn("statistics cache read failed", "cohort", cohort.Key(), "error", err)
		} else if ok {
			return stats, nil
		}
	}

	results, err := h.results.ListByCohort(ctx, cohort)
	if err != nil {
		return nil, shared.NewQueryError("result", "Statistics", err)
	}

	stats := result.ComputeStatistics(cohort, results, h.table, q.Top)

	if cacheable {
		if err := h.cache.SetStatistics(ctx, cohort, &stats); err != nil {
			h.logger.Warn("statistics cache write failed", "cohort", cohort.Key(), "error", err)
		}
	}
	return &stats, nil
}
