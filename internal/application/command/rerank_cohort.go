package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// RerankCohortCommand asks for a full re-rank of one cohort.
type RerankCohortCommand struct {
	Cohort result.Cohort
}

// RerankCohortHandler handles RerankCohortCommand. Used by the worker to
// drain pending cohorts and by admins to force a sweep.
type RerankCohortHandler struct {
	sweeper   result.RankSweeper
	actors    shared.ActorProvider
	publisher shared.EventPublisher
}

// NewRerankCohortHandler creates a new RerankCohortHandler. A nil actors
// provider skips the admin check (worker use).
func NewRerankCohortHandler(sweeper result.RankSweeper, actors shared.ActorProvider, publisher shared.EventPublisher) *RerankCohortHandler {
	return &RerankCohortHandler{
		sweeper:   sweeper,
		actors:    actors,
		publisher: publisher,
	}
}

// Handle runs the sweep and returns how many positions changed.
func (h *RerankCohortHandler) Handle(ctx context.Context, cmd RerankCohortCommand) (int, error) {
	if h.actors != nil {
		actor, err := h.actors.CurrentActor(ctx)
		if err != nil {
			return 0, err
		}
		if !actor.IsAdmin() {
			return 0, shared.ErrNotAuthorized
		}
	}

	if err := cmd.Cohort.Validate(); err != nil {
		return 0, err
	}

	changed, err := h.sweeper.RerankCohort(ctx, cmd.Cohort)
	if err != nil {
		return 0, shared.NewWriteError("result", "Rerank", fmt.Errorf("cohort %s: %w", cmd.Cohort.Key(), err))
	}

	if changed > 0 && h.publisher != nil {
		c := cmd.Cohort
		_ = h.publisher.Publish(shared.NewCohortRerankedEvent(c.Key(), c.Class, c.Term.String(), c.Session.String(), changed))
	}
	return changed, nil
}
