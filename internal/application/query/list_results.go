package query

import (
	"context"

	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENT RESULTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentResultsQuery lists the results of one student.
type ListStudentResultsQuery struct {
	StudentID string
	Term      result.Term
	Session   result.Session
	Page      int
	PageSize  int
}

// ListStudentResultsHandler handles ListStudentResultsQuery.
type ListStudentResultsHandler struct {
	results result.Repository
	actors  shared.ActorProvider
}

// NewListStudentResultsHandler creates a new ListStudentResultsHandler.
func NewListStudentResultsHandler(results result.Repository, actors shared.ActorProvider) *ListStudentResultsHandler {
	if actors == nil {
		actors = shared.ContextActorProvider{}
	}
	return &ListStudentResultsHandler{results: results, actors: actors}
}

// Handle lists the student's results. Parents must be linked to the
// student and only get published results.
func (h *ListStudentResultsHandler) Handle(ctx context.Context, q ListStudentResultsQuery) ([]ResultDTO, error) {
	actor, err := h.actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}
	if q.StudentID == "" {
		return nil, shared.NewValidationError("result", "ListByStudent", "student_id", "student id is required")
	}

	opts := result.ListOptions{}.WithTerm(q.Term).WithSession(q.Session).WithPage(q.Page, q.PageSize)
	if !actor.IsStaff() {
		if !actor.IsLinkedTo(q.StudentID) {
			return nil, shared.ErrNotAuthorized
		}
		opts = opts.OnlyPublished()
	}

	results, err := h.results.ListByStudent(ctx, q.StudentID, opts)
	if err != nil {
		return nil, shared.NewQueryError("result", "ListByStudent", err)
	}
	return ToResultDTOs(results), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST CLASS RESULTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListClassResultsQuery lists the results of a class, optionally narrowed
// to one term and session.
type ListClassResultsQuery struct {
	Class         string
	Term          result.Term
	Session       result.Session
	PublishedOnly bool
	Page          int
	PageSize      int
}

// Validate checks optional filters only when they are set.
func (q ListClassResultsQuery) Validate() error {
	if q.Class == "" {
		return shared.NewValidationError("result", "ListByClass", "class", "class is required")
	}
	if q.Term != "" && !q.Term.IsValid() {
		return shared.NewValidationError("result", "ListByClass", "term", "term must be First, Second or Third")
	}
	if q.Session != "" && !q.Session.IsValid() {
		return shared.NewValidationError("result", "ListByClass", "session", "session must look like 2024/2025")
	}
	return nil
}

// ListClassResultsHandler handles ListClassResultsQuery.
type ListClassResultsHandler struct {
	results result.Repository
	actors  shared.ActorProvider
}

// NewListClassResultsHandler creates a new ListClassResultsHandler.
func NewListClassResultsHandler(results result.Repository, actors shared.ActorProvider) *ListClassResultsHandler {
	if actors == nil {
		actors = shared.ContextActorProvider{}
	}
	return &ListClassResultsHandler{results: results, actors: actors}
}

// Handle lists class results for staff.
func (h *ListClassResultsHandler) Handle(ctx context.Context, q ListClassResultsQuery) ([]ResultDTO, error) {
	actor, err := h.actors.CurrentActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, shared.ErrNotAuthorized
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	opts := result.ListOptions{}.WithTerm(q.Term).WithSession(q.Session).WithPage(q.Page, q.PageSize)
	if q.PublishedOnly {
		opts = opts.OnlyPublished()
	}

	results, err := h.results.ListByClass(ctx, q.Class, opts)
	if err != nil {
		return nil, shared.NewQueryError("result", "ListByClass", err)
	}
	return ToResultDTOs(results), nil
}
