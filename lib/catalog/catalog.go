// Package catalog holds the declared set of containers and the two relations
// between them: build ancestry and runtime dependency.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/onkernel/bay/lib/graph"
)

// Catalog is the set of known containers. Container entries never change
// after construction; only per-container options do.
type Catalog struct {
	containers map[string]*Container
	names      []string
	providers  map[string]*Container

	mu      sync.RWMutex
	options map[string]Options
}

// New builds a catalog from containers and checks its relations. Parent and
// dependency names must refer to containers in the set, no volume may have
// two providers, and neither relation may contain a cycle.
func New(containers []*Container) (*Catalog, error) {
	c := &Catalog{
		containers: make(map[string]*Container, len(containers)),
		providers:  make(map[string]*Container),
		options:    make(map[string]Options),
	}

	for _, con := range containers {
		if con.Name == "" {
			return nil, fmt.Errorf("%w: container without a name", ErrInvalidContainer)
		}
		if _, ok := c.containers[con.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate container %s", ErrInvalidContainer, con.Name)
		}
		c.containers[con.Name] = con
		c.names = append(c.names, con.Name)
	}
	sort.Strings(c.names)

	for _, name := range c.names {
		con := c.containers[name]
		if con.From != "" {
			if _, ok := c.containers[con.From]; !ok {
				return nil, fmt.Errorf("%w: %s is built from unknown container %s", ErrInvalidContainer, name, con.From)
			}
		}
		for _, dep := range con.DependsOn {
			if _, ok := c.containers[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on unknown container %s", ErrInvalidContainer, name, dep)
			}
		}
		if con.ProvidedVolume != "" {
			if other, ok := c.providers[con.ProvidedVolume]; ok {
				return nil, fmt.Errorf("%w: %s provided by %s and %s", ErrDuplicateProvider, con.ProvidedVolume, other.Name, name)
			}
			c.providers[con.ProvidedVolume] = con
		}
	}

	all := c.All()
	if _, err := graph.TopologicalOrder(all, c.buildParents); err != nil {
		return nil, fmt.Errorf("build parents: %w", err)
	}
	if _, err := graph.TopologicalOrder(all, c.Dependencies); err != nil {
		return nil, fmt.Errorf("runtime dependencies: %w", err)
	}

	return c, nil
}

// All returns every container ordered by name.
func (c *Catalog) All() []*Container {
	out := make([]*Container, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.containers[name])
	}
	return out
}

// Get returns the container called name.
func (c *Catalog) Get(name string) (*Container, error) {
	con, ok := c.containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return con, nil
}

// BuildParent returns the container whose image con is built FROM, or nil.
func (c *Catalog) BuildParent(con *Container) *Container {
	if con == nil || con.From == "" {
		return nil
	}
	return c.containers[con.From]
}

// Ancestry returns the build ancestor chain of con, oldest first, excluding con.
func (c *Catalog) Ancestry(con *Container) []*Container {
	var chain []*Container
	for p := c.BuildParent(con); p != nil; p = c.BuildParent(p) {
		chain = append([]*Container{p}, chain...)
	}
	return chain
}

// Dependencies returns the containers con needs running alongside it.
func (c *Catalog) Dependencies(con *Container) []*Container {
	out := make([]*Container, 0, len(con.DependsOn))
	for _, name := range con.DependsOn {
		out = append(out, c.containers[name])
	}
	return out
}

func (c *Catalog) buildParents(con *Container) []*Container {
	return []*Container{c.BuildParent(con)}
}

// ProvidersFor returns the providers of the named volumes con mounts, in
// mount point order.
func (c *Catalog) ProvidersFor(con *Container) []*Container {
	mounts := make([]string, 0, len(con.NamedVolumes))
	for m := range con.NamedVolumes {
		mounts = append(mounts, m)
	}
	sort.Strings(mounts)

	var out []*Container
	for _, m := range mounts {
		if p := c.providers[con.NamedVolumes[m]]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Options returns the profile options for con.
func (c *Catalog) Options(con *Container) Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options[con.Name]
}

// SetOptions replaces the options for the container called name.
func (c *Catalog) SetOptions(name string, opts Options) error {
	if _, ok := c.containers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options[name] = opts
	return nil
}
