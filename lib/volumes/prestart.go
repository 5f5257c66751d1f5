package volumes

import (
	"context"
	"errors"
	"fmt"

	"github.com/onkernel/bay/lib/builds"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
)

// PreStart refuses to start volume providers and builds the providers of any
// provided volume the instance mounts that does not exist yet.
func (p *Provisioner) PreStart(ctx context.Context, e *hooks.Event) error {
	con := e.Instance.Container
	if con.ProvidesVolume() {
		return fmt.Errorf("%w: %s", ErrProviderStart, con.Name)
	}

	for _, provider := range p.catalog.ProvidersFor(con) {
		_, err := e.Host.Client.InspectVolume(ctx, provider.ProvidedVolume)
		if err == nil {
			continue
		}
		if !errors.Is(err, docker.ErrNotFound) {
			return fmt.Errorf("inspect volume %s: %w", provider.ProvidedVolume, err)
		}

		logger.FromContext(ctx).InfoContext(ctx, "building missing volume",
			"volume", provider.ProvidedVolume, "provider", provider.Name, "instance", e.Instance.Name)
		opts := builds.DefaultOptions()
		if err := p.builder.BuildContainer(ctx, e.Host, provider, e.Task, opts); err != nil {
			return err
		}
	}
	return nil
}
