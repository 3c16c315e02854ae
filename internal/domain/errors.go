package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip, booking or waitlist entry does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. non-positive diver count, cancelling a booking that is
// already in a terminal state).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when an operation would violate a uniqueness rule:
// a second active booking for the same trip and diver, or a duplicate
// waitlist join.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the acting user lacks rights over the
// booking or trip being touched.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")
