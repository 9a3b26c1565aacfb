// Package services defines the business logic for wishes, deals, shop
// orders, matching, chat rooms, and earnings. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrNotFound indicates that the requested entity does not exist or is
	// not accessible to the current user.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is not a participant of the
	// entity they are trying to act on.
	ErrForbidden = errors.New("not allowed")

	// ErrAlreadyAssigned is returned when a claim loses the race: another
	// partner holds the assignment, or the entity left the claimable state.
	ErrAlreadyAssigned = errors.New("already assigned")

	// ErrNotAssigned is returned when a partner acts on an entity they are
	// not assigned to.
	ErrNotAssigned = errors.New("not assigned to caller")

	// ErrInvalidTransition is returned when a lifecycle transition is not
	// legal from the entity's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminal is returned when the entity is in a terminal status and
	// admits no further transitions.
	ErrTerminal = errors.New("lifecycle already finished")

	// ErrNoCandidate is returned by the allocator when no available partner
	// serves the requested category.
	ErrNoCandidate = errors.New("no candidate partner")

	// ErrValidation is returned for malformed input the schema cannot
	// express (empty title, non-positive amounts, unknown categories).
	ErrValidation = errors.New("invalid input")

	// ErrClosedRoom is returned when posting to a chat room that is closed
	// or completed.
	ErrClosedRoom = errors.New("room is closed")
)
