// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds used with errors.Is().
//
// The four result-engine failure classes map onto them as follows:
// ValidationError -> ErrValidation, StateError -> ErrInvalidState,
// QueryError -> ErrQueryFailed, WriteError -> ErrWriteFailed.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation = errors.New("validation error")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Authorization errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Persistence errors
	ErrQueryFailed = errors.New("persistence read failed")
	ErrWriteFailed = errors.New("persistence write failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "result", "grading"
	Op      string // Operation that failed, e.g., "Create", "Publish"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Field   string // Offending input field for validation errors (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, msg)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a field-level validation error.
func NewValidationError(domain, op, field, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrValidation,
		Message: message,
		Field:   field,
	}
}

// NewStateError creates an illegal state transition error.
func NewStateError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrInvalidState, message)
}

// NewQueryError wraps a persistence read failure.
func NewQueryError(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrQueryFailed, "persistence read failed", err)
}

// NewWriteError wraps a persistence write failure.
func NewWriteError(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrWriteFailed, "persistence write failed", err)
}

// Result domain errors
var (
	ErrResultNotFound       = NewDomainError("result", "Find", ErrNotFound, "result not found")
	ErrResultPublished      = NewDomainError("result", "Update", ErrInvalidState, "subject scores of a published result cannot be edited")
	ErrAlreadyPublished     = NewDomainError("result", "Publish", ErrInvalidState, "result is already published")
	ErrDuplicateIdempotent  = NewDomainError("result", "Create", ErrAlreadyExists, "result with this idempotency key already exists")
	ErrIdempotencyKeyReused = NewDomainError("result", "Create", ErrAlreadyExists, "idempotency key was already used for a different result")
	ErrResultModified       = NewDomainError("result", "Update", ErrConcurrentModification, "result was modified concurrently, reload and retry")
)

// Grading domain errors
var (
	ErrInvalidBandTable = NewDomainError("grading", "Validate", ErrValidation, "invalid grade band table")
)

// Identity errors
var (
	ErrActorNotFound    = NewDomainError("identity", "Find", ErrNotFound, "actor not found")
	ErrInvalidAPIKey    = NewDomainError("identity", "Authenticate", ErrUnauthenticated, "invalid API key")
	ErrNotAuthorized    = NewDomainError("identity", "Authorize", ErrForbidden, "actor is not allowed to perform this action")
	ErrMissingActor     = NewDomainError("identity", "CurrentActor", ErrUnauthenticated, "no actor in context")
	ErrInvalidActorRole = NewDomainError("identity", "Validate", ErrValidation, "invalid actor role")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStateError checks if the error is an illegal state transition.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsConflict checks if the write lost an optimistic concurrency check.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsQueryError checks if the error is a persistence read failure.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsWriteError checks if the error is a persistence write failure.
func IsWriteError(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}

// IsForbidden checks if the actor lacks the capability for an action.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthenticated checks if no valid actor could be resolved.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
