package query

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RESULT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetResultQuery fetches one result.
type GetResultQuery struct {
	ResultID string
}

// GetResultHandler handles GetResultQuery.
type GetResultHandler struct {
	results result.Repository
	actors  shared.ActorProvider
}

// NewGetResultHandler creates a new GetResultHandler.
func NewGetResultHandler(results result.Repository, actors shared.ActorProvider) *GetResultHandler {
	if actors == nil {
		actors = shared.ContextActorProvider{}
	}
	return &GetResultHandler{results: results, actors: actors}
}

// Handle returns the result if the actor may see it. Parents only see
// published results of their own children; anything else is reported as
// not found so drafts do not leak.
func (h *GetResultHandler) Handle(ctx context.Context, q GetResultQuery) (*ResultDTO, error) {
	actor, err := h.actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}
	if q.ResultID == "" {
		return nil, shared.NewValidationError("result", "Get", "result_id", "result id is required")
	}

	r, err := h.results.GetByID(ctx, q.ResultID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrResultNotFound
		}
		return nil, shared.NewQueryError("result", "Get", err)
	}

	if !canView(actor, r) {
		return nil, shared.ErrResultNotFound
	}

	dto := ToResultDTO(r)
	return &dto, nil
}

// canView applies the read rules shared by all result queries.
func canView(actor shared.Actor, r *result.Result) bool {
	if actor.IsStaff() {
		return true
	}
	return actor.IsParent() && r.Published && actor.IsLinkedTo(r.StudentID)
}
