package volumes

import "errors"

var (
	// ErrProviderStart is returned when something tries to run a volume provider as a service
	ErrProviderStart = errors.New("volume-providing containers cannot be started")

	// ErrPopulateFailed is returned when the provider image exits non-zero while filling its volume
	ErrPopulateFailed = errors.New("volume population failed")
)
