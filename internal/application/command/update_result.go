package command

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE RESULT COMMAND
// Edits scores of a draft or comments of any result.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateResultCommand is a patch: nil fields are left unchanged.
type UpdateResultCommand struct {
	ResultID string

	// Subjects replaces the whole subject list. Rejected on published results.
	Subjects []result.SubjectScore

	TeacherComment   *string
	PrincipalComment *string

	// ExpectedVersion, when non-zero, must equal the stored version.
	ExpectedVersion int
}

// TouchesScores reports whether the patch edits subject scores.
func (c UpdateResultCommand) TouchesScores() bool {
	return c.Subjects != nil
}

// IsEmpty reports whether the patch changes nothing.
func (c UpdateResultCommand) IsEmpty() bool {
	return c.Subjects == nil && c.TeacherComment == nil && c.PrincipalComment == nil
}

// UpdateResultHandler handles UpdateResultCommand.
type UpdateResultHandler struct {
	deps LifecycleDeps
}

// NewUpdateResultHandler creates a new UpdateResultHandler.
func NewUpdateResultHandler(deps LifecycleDeps) *UpdateResultHandler {
	return &UpdateResultHandler{deps: deps.withDefaults()}
}

// Handle applies the patch. Score edits re-aggregate the result and rank it
// again against the rest of its cohort. Every edit writes back the position
// read at load time, which a sweep may have moved since, so the cohort is
// swept after any commit.
func (h *UpdateResultHandler) Handle(ctx context.Context, cmd UpdateResultCommand) (*result.Result, error) {
	if cmd.IsEmpty() {
		return nil, shared.NewValidationError("result", "Update", "patch", "nothing to update")
	}

	r, _, err := h.deps.loadForWrite(ctx, "Update", cmd.ResultID)
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion != 0 && cmd.ExpectedVersion != r.Version {
		return nil, shared.ErrResultModified
	}

	now := h.deps.Now()

	if cmd.TouchesScores() {
		if r.Published {
			return nil, shared.ErrResultPublished
		}

		agg, err := h.deps.Aggregator.Aggregate(cmd.Subjects)
		if err != nil {
			return nil, err
		}
		if err := r.ApplyScores(agg, now); err != nil {
			return nil, err
		}

		position, err := h.deps.rankSnapshot(ctx, "Update", r.Cohort, r.AverageScore, r.ID)
		if err != nil {
			return nil, err
		}
		r.AssignPosition(position)
	}

	if cmd.TeacherComment != nil || cmd.PrincipalComment != nil {
		r.SetComments(cmd.TeacherComment, cmd.PrincipalComment, now)
	}

	if err := h.deps.persistUpdate(ctx, "Update", r); err != nil {
		return nil, err
	}

	r = h.deps.settle(ctx, r)
	h.deps.publish(writtenEvent(shared.EventResultUpdated, r))

	return r, nil
}
