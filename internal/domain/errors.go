package domain

import "errors"

var (
	// ErrForbidden covers "not friends", "blocked", "not a member" and role checks.
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	// ErrPersistence means the store could not complete the write or read.
	ErrPersistence = errors.New("persistence failure")
)

// Reason codes carried by the error push event and REST error bodies.
const (
	ReasonForbidden      = "forbidden"
	ReasonNotFound       = "not_found"
	ReasonInvalidRequest = "invalid_request"
	ReasonConflict       = "conflict"
	ReasonPersistence    = "persistence_failure"
	ReasonInternal       = "internal"
)

func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidRequest):
		return ReasonInvalidRequest
	case errors.Is(err, ErrConflict):
		return ReasonConflict
	case errors.Is(err, ErrPersistence):
		return ReasonPersistence
	default:
		return ReasonInternal
	}
}
