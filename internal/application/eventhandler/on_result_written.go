// Package eventhandler contains reactions to domain events. Handlers keep
// derived stores in step with the relational store: the cohort index and
// the statistics cache. They never fail the write that raised the event.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/school-results/internal/application/query"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RESULT WRITTEN HANDLER
// Keeps the cohort index and the statistics cache in step with writes.
// ═══════════════════════════════════════════════════════════════════════════

// ResultWrittenConfig configures OnResultWrittenHandler.
type ResultWrittenConfig struct {
	// Timeout bounds each reaction.
	Timeout time.Duration

	// IndexEnabled toggles cohort index maintenance.
	IndexEnabled bool
}

// DefaultResultWrittenConfig returns defaults.
func DefaultResultWrittenConfig() ResultWrittenConfig {
	return ResultWrittenConfig{
		Timeout:      5 * time.Second,
		IndexEnabled: true,
	}
}

// OnResultWrittenHandler reacts to result and cohort events.
type OnResultWrittenHandler struct {
	index  result.CohortIndex
	marker result.CohortMarker
	stats  query.StatisticsCache
	logger *slog.Logger
	config ResultWrittenConfig
}

// NewOnResultWrittenHandler creates the handler. index, marker and stats
// may be nil. marker queues a cohort whose index write failed, so the
// worker's sweep rebuilds it.
func NewOnResultWrittenHandler(
	index result.CohortIndex,
	marker result.CohortMarker,
	stats query.StatisticsCache,
	logger *slog.Logger,
	config ResultWrittenConfig,
) *OnResultWrittenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultResultWrittenConfig().Timeout
	}
	return &OnResultWrittenHandler{
		index:  index,
		marker: marker,
		stats:  stats,
		logger: logger.With("handler", "on_result_written"),
		config: config,
	}
}

// EventTypes lists the events the handler subscribes to.
func (h *OnResultWrittenHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventResultCreated,
		shared.EventResultUpdated,
		shared.EventResultPublished,
		shared.EventResultDeleted,
		shared.EventCohortReranked,
	}
}

// Subscribe registers the handler for every type in EventTypes.
func (h *OnResultWrittenHandler) Subscribe(sub shared.EventSubscriber) error {
	for _, t := range h.EventTypes() {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler. Failures are logged and
// swallowed: the relational store stays authoritative.
func (h *OnResultWrittenHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	switch e := event.(type) {
	case shared.ResultWrittenEvent:
		h.onResultWritten(ctx, e)
	case *shared.ResultWrittenEvent:
		h.onResultWritten(ctx, *e)
	case shared.CohortRerankedEvent:
		h.invalidate(ctx, cohortOf(e.Class, e.Term, e.Session))
	case *shared.CohortRerankedEvent:
		h.invalidate(ctx, cohortOf(e.Class, e.Term, e.Session))
	default:
		h.logger.Debug("ignoring event", "event_type", event.EventType())
	}
	return nil
}

func (h *OnResultWrittenHandler) onResultWritten(ctx context.Context, e shared.ResultWrittenEvent) {
	cohort := cohortOf(e.Class, e.Term, e.Session)
	resultID := e.AggregateID()

	if h.index != nil && h.config.IndexEnabled {
		var err error
		if e.EventType() == shared.EventResultDeleted {
			err = h.index.Remove(ctx, cohort, resultID)
		} else {
			err = h.index.Upsert(ctx, cohort, resultID, e.AverageScore)
		}
		if err != nil {
			h.logger.Warn("cohort index update failed",
				"result_id", resultID,
				"cohort", cohort.Key(),
				"error", err,
			)
			h.requeue(ctx, cohort)
		}
	}

	h.invalidate(ctx, cohort)
}

// requeue marks the cohort so its index is rebuilt from the relational
// store. Until then live positions may be off.
func (h *OnResultWrittenHandler) requeue(ctx context.Context, cohort result.Cohort) {
	if h.marker == nil {
		return
	}
	if err := h.marker.MarkCohort(ctx, cohort); err != nil {
		h.logger.Error("failed to queue cohort for index rebuild",
			"cohort", cohort.Key(),
			"error", err,
		)
	}
}

func (h *OnResultWrittenHandler) invalidate(ctx context.Context, cohort result.Cohort) {
	if h.stats == nil {
		return
	}
	if err := h.stats.InvalidateStatistics(ctx, cohort); err != nil {
		h.logger.Warn("statistics cache invalidation failed",
			"cohort", cohort.Key(),
			"error", err,
		)
	}
}

func cohortOf(class, term, session string) result.Cohort {
	return result.Cohort{Class: class, Term: result.Term(term), Session: result.Session(session)}
}
