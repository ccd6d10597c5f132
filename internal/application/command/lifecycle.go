// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
//
// Together the result commands form the result lifecycle: a result is
// created as a draft, edited while it is a draft, published once, and may
// be deleted by an admin in either state.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED LIFECYCLE DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// LifecycleConfig toggles the rank consistency measures.
type LifecycleConfig struct {
	// RerankOnWrite runs a cohort re-rank sweep after every committed
	// create, update and publish.
	RerankOnWrite bool

	// RecomputeOnPublish recomputes the position against a fresh snapshot
	// right before a result is published.
	RecomputeOnPublish bool
}

// DefaultLifecycleConfig enables both measures.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		RerankOnWrite:      true,
		RecomputeOnPublish: true,
	}
}

// LifecycleDeps bundles what every result command needs.
type LifecycleDeps struct {
	Results    result.Repository
	Sweeper    result.RankSweeper
	Aggregator *result.Aggregator
	Actors     shared.ActorProvider
	Publisher  shared.EventPublisher
	Logger     *slog.Logger
	Config     LifecycleConfig

	// Now returns the current time. Defaults to time.Now().UTC().
	Now func() time.Time
}

func (d LifecycleDeps) withDefaults() LifecycleDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Actors == nil {
		d.Actors = shared.ContextActorProvider{}
	}
	if d.Aggregator == nil {
		d.Aggregator = result.NewAggregator(nil)
	}
	return d
}

// rankSnapshot reads the cohort averages and ranks the candidate against
// them. excludeID keeps a stored result from being counted against itself.
func (d LifecycleDeps) rankSnapshot(ctx context.Context, op string, cohort result.Cohort, average float64, excludeID string) (result.Position, error) {
	averages, err := d.Results.ListResultAverages(ctx, cohort, excludeID)
	if err != nil {
		return result.Unranked, shared.NewQueryError("result", op, err)
	}
	return result.ComputePosition(average, averages), nil
}

// settle runs the post-commit re-rank sweep for a cohort and returns the
// reloaded record. A failed sweep does not fail the write: the cohort
// stays marked as pending and the worker sweeps it later.
func (d LifecycleDeps) settle(ctx context.Context, r *result.Result) *result.Result {
	if !d.Config.RerankOnWrite || d.Sweeper == nil {
		return r
	}

	changed, err := d.Sweeper.RerankCohort(ctx, r.Cohort)
	if err != nil {
		d.Logger.Warn("cohort re-rank deferred to worker",
			"cohort", r.Cohort.Key(),
			"result_id", r.ID,
			"error", err,
		)
		return r
	}

	if changed > 0 {
		d.publish(shared.NewCohortRerankedEvent(r.Cohort.Key(), r.Cohort.Class, r.Cohort.Term.String(), r.Cohort.Session.String(), changed))
	}

	fresh, err := d.Results.GetByID(ctx, r.ID)
	if err != nil {
		d.Logger.Warn("failed to reload result after re-rank", "result_id", r.ID, "error", err)
		return r
	}
	return fresh
}

func (d LifecycleDeps) publish(event shared.Event) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(event); err != nil {
		d.Logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

func writtenEvent(eventType shared.EventType, r *result.Result) shared.ResultWrittenEvent {
	return shared.NewResultWrittenEvent(
		eventType,
		r.ID,
		r.StudentID,
		r.Cohort.Class,
		r.Cohort.Term.String(),
		r.Cohort.Session.String(),
		r.AverageScore,
		int(r.Position),
		r.Published,
	)
}

// loadForWrite fetches a result and checks the actor may mutate it.
func (d LifecycleDeps) loadForWrite(ctx context.Context, op, id string) (*result.Result, shared.Actor, error) {
	actor, err := d.Actors.CurrentActor(ctx)
	if err != nil {
		return nil, shared.Actor{}, err
	}
	if id == "" {
		return nil, actor, shared.NewValidationError("result", op, "result_id", "result id is required")
	}

	r, err := d.Results.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, actor, shared.ErrResultNotFound
		}
		return nil, actor, shared.NewQueryError("result", op, err)
	}

	if !actor.CanMutate(r.CreatedBy) {
		return nil, actor, shared.ErrNotAuthorized
	}
	return r, actor, nil
}

// persistUpdate maps repository failures onto the error taxonomy.
func (d LifecycleDeps) persistUpdate(ctx context.Context, op string, r *result.Result) error {
	if err := d.Results.Update(ctx, r); err != nil {
		switch {
		case shared.IsConflict(err):
			return shared.ErrResultModified
		case shared.IsNotFound(err):
			return shared.ErrResultNotFound
		default:
			return shared.NewWriteError("result", op, err)
		}
	}
	return nil
}
