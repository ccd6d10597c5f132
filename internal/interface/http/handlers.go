package http

import (
	"net/http"

	"github.com/alem-hub/school-results/internal/application/command"
	"github.com/alem-hub/school-results/internal/application/query"
	"github.com/alem-hub/school-results/internal/domain/result"
	"github.com/alem-hub/school-results/internal/domain/shared"
	"github.com/alem-hub/school-results/pkg/logger"
)

// defaultPageSize applies when page_size is absent.
const defaultPageSize = 50

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "School Results API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":    "/health",
			"reference": "/api/v1/reference",
			"results":   "/api/v1/results",
			"students":  "/api/v1/students/{id}/results",
			"classes":   "/api/v1/classes/{class}/results",
		},
	}

	writeJSON(w, r, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReference handles GET /api/v1/reference
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, query.ReferenceData(s.deps.GradeTable))
}

// handleSubjectTemplate handles GET /api/v1/templates/{class}
func (s *Server) handleSubjectTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, query.SubjectTemplate(r.PathValue("class")))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT COMMAND HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateResult handles POST /api/v1/results
//
// The Idempotency-Key header, when set, takes precedence over the body
// field. A replayed key answers 200 with the stored result.
func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateResult == nil {
		notConfigured(w, r, "create result")
		return
	}

	var req createResultRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	created, err := s.deps.CreateResult.Handle(r.Context(), req.toCommand())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if created.Replayed {
		status = http.StatusOK
	} else {
		logger.FromContext(r.Context()).Info("result created",
			logger.ResultID(created.Result.ID),
			logger.StudentID(created.Result.StudentID),
			logger.CohortKey(created.Result.Cohort.Key()),
			logger.Position(int(created.Result.Position)),
		)
	}

	w.Header().Set("Location", "/api/v1/results/"+created.Result.ID)
	writeJSON(w, r, status, query.ToResultDTO(created.Result))
}

// handleUpdateResult handles PATCH /api/v1/results/{id}
func (s *Server) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateResult == nil {
		notConfigured(w, r, "update result")
		return
	}

	var req updateResultRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.deps.UpdateResult.Handle(r.Context(), req.toCommand(r.PathValue("id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, query.ToResultDTO(updated))
}

// handlePublishResult handles POST /api/v1/results/{id}/publish
func (s *Server) handlePublishResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.PublishResult == nil {
		notConfigured(w, r, "publish result")
		return
	}

	published, err := s.deps.PublishResult.Handle(r.Context(), command.PublishResultCommand{
		ResultID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("result published",
		logger.ResultID(published.ID),
		logger.Position(int(published.Position)),
	)
	writeJSON(w, r, http.StatusOK, query.ToResultDTO(published))
}

// handleDeleteResult handles DELETE /api/v1/results/{id}
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeleteResult == nil {
		notConfigured(w, r, "delete result")
		return
	}

	id := r.PathValue("id")
	if err := s.deps.DeleteResult.Handle(r.Context(), command.DeleteResultCommand{ResultID: id}); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// handleRerankCohort handles POST /api/v1/classes/{class}/rerank
func (s *Server) handleRerankCohort(w http.ResponseWriter, r *http.Request) {
	if s.deps.RerankCohort == nil {
		notConfigured(w, r, "rerank")
		return
	}

	var req rerankRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	cohort, err := result.NewCohort(r.PathValue("class"), result.Term(req.Term), result.Session(req.Session))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	changed, err := s.deps.RerankCohort.Handle(r.Context(), command.RerankCohortCommand{Cohort: cohort})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"cohort":            cohort,
		"positions_changed": changed,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetResult handles GET /api/v1/results/{id}
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetResult == nil {
		notConfigured(w, r, "get result")
		return
	}

	dto, err := s.deps.GetResult.Handle(r.Context(), query.GetResultQuery{ResultID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto)
}

// handleLivePosition handles GET /api/v1/results/{id}/position
func (s *Server) handleLivePosition(w http.ResponseWriter, r *http.Request) {
	if s.deps.LivePosition == nil {
		notConfigured(w, r, "live position")
		return
	}

	dto, err := s.deps.LivePosition.Handle(r.Context(), query.GetLivePositionQuery{ResultID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto)
}

// handleStudentResults handles GET /api/v1/students/{id}/results
func (s *Server) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudentResults == nil {
		notConfigured(w, r, "student results")
		return
	}

	page, pageSize := pageParams(r)
	q := r.URL.Query()

	results, err := s.deps.ListStudentResults.Handle(r.Context(), query.ListStudentResultsQuery{
		StudentID: r.PathValue("id"),
		Term:      result.Term(q.Get("term")),
		Session:   result.Session(q.Get("session")),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, results, listMeta(page, pageSize, len(results)))
}

// handleClassResults handles GET /api/v1/classes/{class}/results
func (s *Server) handleClassResults(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListClassResults == nil {
		notConfigured(w, r, "class results")
		return
	}

	page, pageSize := pageParams(r)
	q := r.URL.Query()

	results, err := s.deps.ListClassResults.Handle(r.Context(), query.ListClassResultsQuery{
		Class:         r.PathValue("class"),
		Term:          result.Term(q.Get("term")),
		Session:       result.Session(q.Get("session")),
		PublishedOnly: getQueryParamBool(r, "published"),
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, results, listMeta(page, pageSize, len(results)))
}

// handleClassStatistics handles GET /api/v1/classes/{class}/statistics
func (s *Server) handleClassStatistics(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClassStatistics == nil {
		notConfigured(w, r, "class statistics")
		return
	}

	q := r.URL.Query()
	stats, err := s.deps.ClassStatistics.Handle(r.Context(), query.GetClassStatisticsQuery{
		Class:   r.PathValue("class"),
		Term:    result.Term(q.Get("term")),
		Session: result.Session(q.Get("session")),
		Top:     getQueryParamInt(r, "top", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleIssueKey handles POST /api/v1/actors. Admin only.
func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		s.writeError(w, r, shared.ErrMissingActor)
		return
	}
	if !actor.IsAdmin() {
		s.writeError(w, r, shared.ErrNotAuthorized)
		return
	}

	var req issueKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	role, err := shared.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	issued, key, err := s.deps.Auth.IssueKey(r.Context(), req.Name, role, req.StudentIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("api key issued",
		logger.String("issued_actor_id", issued.ID),
		logger.String("role", issued.Role.String()),
	)

	writeJSON(w, r, http.StatusCreated, issueKeyResponse{
		ID:         issued.ID,
		Name:       issued.Name,
		Role:       issued.Role.String(),
		StudentIDs: issued.StudentIDs,
		APIKey:     key,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// notConfigured answers 501 for routes whose handler was not wired.
func notConfigured(w http.ResponseWriter, r *http.Request, what string) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", what+" is not configured", "")
}

// pageParams reads page (1-based) and page_size, clamped to the store's
// list limit.
func pageParams(r *http.Request) (int, int) {
	page := getQueryParamInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := getQueryParamInt(r, "page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > result.DefaultListLimit {
		pageSize = result.DefaultListLimit
	}
	return page, pageSize
}

func listMeta(page, pageSize, count int) *ResponseMeta {
	return &ResponseMeta{
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		HasMore:  count == pageSize,
	}
}
