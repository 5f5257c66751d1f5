package catalog

import "errors"

var (
	// ErrNotFound is returned when a container name is not in the catalog
	ErrNotFound = errors.New("container not found")

	// ErrInvalidContainer is returned when a container definition cannot be used
	ErrInvalidContainer = errors.New("invalid container definition")

	// ErrDuplicateProvider is returned when two containers provide the same volume
	ErrDuplicateProvider = errors.New("volume has more than one provider")
)
