package models

import "errors"

// Domain error kinds. Handlers map these onto HTTP statuses; services and
// repositories wrap them with context via fmt.Errorf("...: %w", err).
var (
	// ErrNotFound covers missing rows and rows hidden by tenant scoping.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a scope is not allowed to act on a row
	// it can otherwise see (e.g. service-only operations).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation marks synchronously rejected bad input. Never partially
	// applied.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateReading is returned when a (parcel, period) reading
	// already exists and the duplicate policy is reject.
	ErrDuplicateReading = errors.New("duplicate reading for period")

	// ErrInvalidGeometry marks a polygon the geometry processor cannot
	// derive facts from. Callers fail soft: the stored area/centroid stay
	// untouched.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidTransition is returned for alert state-machine moves the
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid alert transition")
)
