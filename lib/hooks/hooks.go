// Package hooks dispatches lifecycle events to the callables plugins register.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/tasks"
)

// Type identifies a lifecycle event.
type Type string

const (
	// PreStart fires before a container instance starts; an error vetoes the start
	PreStart Type = "pre-start"
	// PostBuild fires after an image build completes
	PostBuild Type = "post-build"
	// PreGroupBuild fires once before a batch of builds
	PreGroupBuild Type = "pre-group-build"
	// PostGroupBuild fires once after a batch of builds succeeds
	PostGroupBuild Type = "post-group-build"
)

// ErrRegistryClosed is returned when registering after startup finished
var ErrRegistryClosed = errors.New("hook registry is closed")

// Instance is the part of a container instance a hook needs.
type Instance struct {
	Name      string
	Container *catalog.Container
}

// Event is the context passed to a hook. Which fields are set depends on the
// hook type: PreStart sets Instance, PostBuild sets Container, the group
// hooks set Containers. Host and Task are always set.
type Event struct {
	Host       *docker.Host
	Instance   *Instance
	Container  *catalog.Container
	Containers []*catalog.Container
	Task       *tasks.Task
}

// Hook handles one event.
type Hook func(ctx context.Context, e *Event) error

// Registry maps hook types to their callables in registration order.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[Type][]Hook
	closed bool
}

// NewRegistry creates an empty, open registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Type][]Hook)}
}

// Register appends h to the hooks for t.
func (r *Registry) Register(t Type, h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: cannot register %s hook", ErrRegistryClosed, t)
	}
	r.hooks[t] = append(r.hooks[t], h)
	return nil
}

// Close stops further registration.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Count returns the number of hooks registered for t.
func (r *Registry) Count(t Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[t])
}

// Run calls every hook registered for t in order. The first error stops
// dispatch and is returned unchanged.
func (r *Registry) Run(ctx context.Context, t Type, e *Event) error {
	r.mu.RLock()
	hs := r.hooks[t]
	r.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
