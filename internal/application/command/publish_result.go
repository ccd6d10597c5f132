package command

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// PublishResultCommand publishes a draft result.
type PublishResultCommand struct {
	ResultID string
}

// PublishResultHandler handles PublishResultCommand.
type PublishResultHandler struct {
	deps LifecycleDeps
}

// NewPublishResultHandler creates a new PublishResultHandler.
func NewPublishResultHandler(deps LifecycleDeps) *PublishResultHandler {
	return &PublishResultHandler{deps: deps.withDefaults()}
}

// Handle publishes the result. Publishing twice is rejected with a state
// error every time rather than treated as a no-op.
func (h *PublishResultHandler) Handle(ctx context.Context, cmd PublishResultCommand) (*result.Result, error) {
	r, _, err := h.deps.loadForWrite(ctx, "Publish", cmd.ResultID)
	if err != nil {
		return nil, err
	}
	if r.Published {
		return nil, shared.ErrAlreadyPublished
	}

	if h.deps.Config.RecomputeOnPublish {
		position, err := h.deps.rankSnapshot(ctx, "Publish", r.Cohort, r.AverageScore, r.ID)
		if err != nil {
			return nil, err
		}
		r.AssignPosition(position)
	}

	if err := r.Publish(h.deps.Now()); err != nil {
		return nil, err
	}

	if err := h.deps.persistUpdate(ctx, "Publish", r); err != nil {
		return nil, err
	}

	r = h.deps.settle(ctx, r)
	h.deps.publish(writtenEvent(shared.EventResultPublished, r))

	return r, nil
}
