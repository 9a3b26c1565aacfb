// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package), plus the translation
// from service-layer sentinel errors to status/code pairs. These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., already_assigned, invalid_transition) are
//     reserved for business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wishloop/go-market-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation        = "validation_failed"
	ErrCodeAlreadyAssigned   = "already_assigned"
	ErrCodeNotAssigned       = "not_assigned"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeNoCandidate       = "no_candidate"
	ErrCodeRoomClosed        = "room_closed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)

// failErr translates a service-layer error into the standard error envelope.
//
// Sentinel errors from the services package map to stable status/code pairs;
// anything unrecognized is treated as an internal error (and logged by fail).
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not allowed")
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrAlreadyAssigned):
		fail(c, http.StatusConflict, ErrCodeAlreadyAssigned, "already claimed by another partner")
	case errors.Is(err, services.ErrNotAssigned):
		fail(c, http.StatusConflict, ErrCodeNotAssigned, "not assigned to this partner")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "status does not allow this operation")
	case errors.Is(err, services.ErrTerminal):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "already in a terminal status")
	case errors.Is(err, services.ErrNoCandidate):
		fail(c, http.StatusConflict, ErrCodeNoCandidate, "no available partner matches")
	case errors.Is(err, services.ErrClosedRoom):
		fail(c, http.StatusConflict, ErrCodeRoomClosed, "room no longer accepts messages")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
