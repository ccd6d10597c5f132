package command

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE RESULT COMMAND
// Computes the aggregate and the initial position of a new draft result.
// ══════════════════════════════════════════════════════════════════════════════

// CreateResultCommand contains the data needed to create a result.
type CreateResultCommand struct {
	StudentID       string
	StudentName     string
	AdmissionNumber string
	Class           string
	Term            result.Term
	Session         result.Session
	Type            result.Type
	Subjects        []result.SubjectScore

	TeacherComment   string
	PrincipalComment string

	// IdempotencyKey makes retries safe: a second create with the same key
	// returns the first result instead of a duplicate draft.
	IdempotencyKey string
}

// Validate checks the command shape. Score ranges are checked again by
// the aggregator.
func (c CreateResultCommand) Validate() error {
	if _, err := result.NewCohort(c.Class, c.Term, c.Session); err != nil {
		return err
	}
	return result.ValidateSubjects(c.Subjects)
}

// CreateResultResult is the outcome of a create.
type CreateResultResult struct {
	Result *result.Result

	// Replayed is true when the idempotency key matched an existing result.
	Replayed bool
}

// CreateResultHandler handles CreateResultCommand.
type CreateResultHandler struct {
	deps LifecycleDeps
}

// NewCreateResultHandler creates a new CreateResultHandler.
func NewCreateResultHandler(deps LifecycleDeps) *CreateResultHandler {
	return &CreateResultHandler{deps: deps.withDefaults()}
}

// Handle validates, aggregates, ranks and persists a new draft. Nothing is
// written unless every step before the write succeeded.
func (h *CreateResultHandler) Handle(ctx context.Context, cmd CreateResultCommand) (*CreateResultResult, error) {
	actor, err := h.deps.Actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, shared.ErrNotAuthorized
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	cohort, _ := result.NewCohort(cmd.Class, cmd.Term, cmd.Session)

	if cmd.IdempotencyKey != "" {
		existing, err := h.deps.Results.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
		switch {
		case err == nil:
			return replay(existing, actor, cmd, cohort)
		case !shared.IsNotFound(err):
			return nil, shared.NewQueryError("result", "Create", err)
		}
	}

	agg, err := h.deps.Aggregator.Aggregate(cmd.Subjects)
	if err != nil {
		return nil, err
	}

	r, err := result.NewResult(result.NewResultParams{
		StudentID:        cmd.StudentID,
		StudentName:      cmd.StudentName,
		AdmissionNumber:  cmd.AdmissionNumber,
		Cohort:           cohort,
		Type:             cmd.Type,
		TeacherComment:   cmd.TeacherComment,
		PrincipalComment: cmd.PrincipalComment,
		CreatedBy:        actor.ID,
		IdempotencyKey:   cmd.IdempotencyKey,
	}, agg, h.deps.Now())
	if err != nil {
		return nil, err
	}

	position, err := h.deps.rankSnapshot(ctx, "Create", cohort, r.AverageScore, "")
	if err != nil {
		return nil, err
	}
	r.AssignPosition(position)

	if err := h.deps.Results.Create(ctx, r); err != nil {
		if cmd.IdempotencyKey != "" && shared.IsAlreadyExists(err) {
			// A concurrent retry with the same key won the insert.
			existing, getErr := h.deps.Results.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if getErr == nil {
				return replay(existing, actor, cmd, cohort)
			}
		}
		return nil, shared.NewWriteError("result", "Create", err)
	}

	r = h.deps.settle(ctx, r)
	h.deps.publish(writtenEvent(shared.EventResultCreated, r))

	return &CreateResultResult{Result: r}, nil
}

// replay returns the result stored under the command's idempotency key. A
// key only replays for the actor that created the result and for the same
// student, cohort, type and subject scores.
func replay(existing *result.Result, actor shared.Actor, cmd CreateResultCommand, cohort result.Cohort) (*CreateResultResult, error) {
	same := existing.CreatedBy == actor.ID &&
		existing.StudentID == cmd.StudentID &&
		existing.Cohort == cohort &&
		existing.Type == cmd.Type &&
		sameScores(existing.Subjects, cmd.Subjects)
	if !same {
		return nil, shared.ErrIdempotencyKeyReused
	}
	return &CreateResultResult{Result: existing, Replayed: true}, nil
}

func sameScores(stored, submitted []result.SubjectScore) bool {
	if len(stored) != len(submitted) {
		return false
	}
	for i := range stored {
		if stored[i].Name != submitted[i].Name || stored[i].Score != submitted[i].Score {
			return false
		}
	}
	return true
}
