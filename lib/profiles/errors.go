package profiles

import "errors"

var (
	// ErrNotFound is returned when no profile file has the requested name
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidProfile is returned when a profile file cannot be parsed
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrParentCycle is returned when profiles name each other as parents
	ErrParentCycle = errors.New("profile parent cycle")
)
