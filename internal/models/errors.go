package models

import "errors"

var (
	// ErrAlreadyActive is returned when a user with an open shift tries to start another.
	ErrAlreadyActive = errors.New("shift already active")
	// ErrNoActiveShift is returned when ending without an open shift.
	ErrNoActiveShift = errors.New("no active shift found")
	// ErrUnauthorized marks an actor lacking the role for a gated action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a referenced row vanished.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps every persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict is returned by user creation when the external id already exists.
	ErrConflict = errors.New("conflict")
)
