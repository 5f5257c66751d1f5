package docker

import (
	"context"
	"io"
)

const (
	// LabelContainer records which catalog container a runtime container runs
	LabelContainer = "com.bay.container"

	// LabelManagedBy marks every runtime container bay creates
	LabelManagedBy = "com.bay.managed-by"

	managedByValue = "bay"
)

// Client is the subset of the container runtime that bay drives. All calls
// block until the daemon answers.
type Client interface {
	// PullImage pulls name:tag. Any failure wraps ErrImagePullFailure.
	PullImage(ctx context.Context, name, tag string) error

	// InspectImage returns the content identity of an image.
	InspectImage(ctx context.Context, name string) (*ImageDetails, error)

	// InspectVolume returns ErrNotFound if the volume does not exist.
	InspectVolume(ctx context.Context, name string) (*VolumeDetails, error)
	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	// RemoveVolume returns ErrNotFound if the volume does not exist.
	RemoveVolume(ctx context.Context, name string) error

	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	// WaitContainer blocks until the container stops and returns its exit code.
	WaitContainer(ctx context.Context, id string) (int64, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	ListContainers(ctx context.Context, all bool) ([]ContainerSummary, error)

	// BuildImage builds spec and streams daemon output to out. Any failure
	// wraps ErrBuildFailed.
	BuildImage(ctx context.Context, spec BuildSpec, out io.Writer) error

	Close() error
}

// ImageDetails describes a local image.
type ImageDetails struct {
	ID string // content identity (sha256:...)
}

// VolumeDetails describes a named volume.
type VolumeDetails struct {
	Name   string
	Labels map[string]string
}

// Bind mounts a named volume into a container.
type Bind struct {
	Volume   string
	Target   string
	ReadOnly bool
}

// ContainerSpec configures a container to create.
type ContainerSpec struct {
	Name   string
	Image  string
	Cmd    []string
	Env    []string
	Labels map[string]string
	Binds  []Bind
}

// ContainerSummary describes a runtime container.
type ContainerSummary struct {
	ID      string
	Name    string
	Image   string
	State   string // running, exited, created, ...
	Labels  map[string]string
	Volumes []string // named volumes mounted
}

// Running reports whether the container is running.
func (c ContainerSummary) Running() bool {
	return c.State == "running"
}

// BuildSpec configures an image build from a directory context.
type BuildSpec struct {
	ContextDir string
	Dockerfile string
	Tags       []string
	NoCache    bool
	BuildArgs  map[string]string
}
