package formation

import "errors"

var (
	// ErrDuplicateInstance is returned when a formation already has the instance
	ErrDuplicateInstance = errors.New("instance already in formation")

	// ErrStartFailed is returned when an instance could not be started
	ErrStartFailed = errors.New("failed to start instance")

	// ErrStopFailed is returned when an instance could not be stopped or removed
	ErrStopFailed = errors.New("failed to stop instance")
)
