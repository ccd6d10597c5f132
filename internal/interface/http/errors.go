package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/alem-hub/school-results/internal/domain/shared"
	"github.com/alem-hub/school-results/pkg/circuitbreaker"
	"github.com/alem-hub/school-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps an error to its HTTP status and error code. Not found is
// checked before store failures since a query error may wrap a miss.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthenticated(err):
		return http.StatusUnauthorized, "unauthenticated"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "version_conflict"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsStateError(err):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsQueryError(err), shared.IsWriteError(err), circuitbreaker.IsRejected(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes the JSON error envelope. Client errors carry the domain
// message and offending field; server errors are logged and get a generic
// message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("code", code),
			logger.Err(err),
		)
		message := "An unexpected error occurred"
		if status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
			message = "The result store is unavailable, please retry"
		}
		writeJSONError(w, r, status, code, message, "")
		return
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSONError(w, r, status, code, message, shared.FieldOf(err))
}
