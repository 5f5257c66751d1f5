package formation

import (
	"context"
	"fmt"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/logger"
)

// Introspector reads the current formation from a host.
type Introspector interface {
	Introspect(ctx context.Context, host *docker.Host) (*Formation, error)
}

type introspector struct {
	catalog *catalog.Catalog
}

// NewIntrospector creates an introspector that maps runtime containers back
// onto cat through their container label.
func NewIntrospector(cat *catalog.Catalog) Introspector {
	return &introspector{catalog: cat}
}

func (i *introspector) Introspect(ctx context.Context, host *docker.Host) (*Formation, error) {
	log := logger.FromContext(ctx)

	running, err := host.Client.ListContainers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", host.Name, err)
	}

	f := New()
	for _, summary := range running {
		name, ok := summary.Labels[docker.LabelContainer]
		if !ok || !summary.Running() {
			continue
		}
		con, err := i.catalog.Get(name)
		if err != nil {
			log.DebugContext(ctx, "skipping container not in catalog", "instance", summary.Name, "container", name)
			continue
		}
		if err := f.Add(&Instance{Name: summary.Name, ID: summary.ID, Container: con}); err != nil {
			return nil, err
		}
	}
	return f, nil
}
