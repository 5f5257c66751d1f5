package docker

import "errors"

var (
	// ErrNotFound is returned when an image, volume or container does not exist
	ErrNotFound = errors.New("not found")

	// ErrImagePullFailure is returned when an image cannot be pulled from its registry
	ErrImagePullFailure = errors.New("image pull failed")

	// ErrBuildFailed is returned when an image build does not complete
	ErrBuildFailed = errors.New("image build failed")

	// ErrDockerUnavailable is returned when the daemon cannot be reached
	ErrDockerUnavailable = errors.New("docker is not available")

	// ErrUnknownHost is returned when a host name is not configured
	ErrUnknownHost = errors.New("unknown host")
)
