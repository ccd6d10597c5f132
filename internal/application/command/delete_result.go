package command

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

// DeleteResultCommand removes a result in any state.
type DeleteResultCommand struct {
	ResultID string
}

// DeleteResultHandler handles DeleteResultCommand.
type DeleteResultHandler struct {
	deps LifecycleDeps
}

// NewDeleteResultHandler creates a new DeleteResultHandler.
func NewDeleteResultHandler(deps LifecycleDeps) *DeleteResultHandler {
	return &DeleteResultHandler{deps: deps.withDefaults()}
}

// Handle deletes the result. Only admins may delete. The positions of the
// remaining cohort members are left as they were.
func (h *DeleteResultHandler) Handle(ctx context.Context, cmd DeleteResultCommand) error {
	actor, err := h.deps.Actors.CurrentActor(ctx)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return shared.ErrNotAuthorized
	}
	if cmd.ResultID == "" {
		return shared.NewValidationError("result", "Delete", "result_id", "result id is required")
	}

	r, err := h.deps.Results.GetByID(ctx, cmd.ResultID)
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrResultNotFound
		}
		return shared.NewQueryError("result", "Delete", err)
	}

	if err := h.deps.Results.Delete(ctx, r.ID); err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrResultNotFound
		}
		return shared.NewWriteError("result", "Delete", err)
	}

	h.deps.publish(writtenEvent(shared.EventResultDeleted, r))
	return nil
}
