// Package volumes keeps provider-filled named volumes in step with the image
// that fills them.
package volumes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nrednav/cuid2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/onkernel/bay/lib/builds"
	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/formation"
	"github.com/onkernel/bay/lib/gc"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/otel"
	"github.com/onkernel/bay/lib/tasks"
)

const (
	// MountPoint is where a provider image finds the volume it fills
	MountPoint = "/volume/"

	// LabelBuildID records the image ID a volume was filled from
	LabelBuildID = "build_id"

	// LabelVolume marks the short-lived container that fills a volume
	LabelVolume = "com.bay.volume"
)

// ContainerBuilder builds one container image and fires its post-build hooks.
type ContainerBuilder interface {
	BuildContainer(ctx context.Context, host *docker.Host, con *catalog.Container, task *tasks.Task, opts builds.Options) error
}

// Provisioner reacts to builds of volume providers and to instance starts
// that need a provided volume.
type Provisioner struct {
	catalog      *catalog.Catalog
	introspector formation.Introspector
	runner       *formation.Runner
	collector    *gc.Collector
	builder      ContainerBuilder
	metrics      *otel.VolumeMetrics
	tracer       trace.Tracer
}

// NewProvisioner creates a provisioner. meter and tracer may be nil.
func NewProvisioner(cat *catalog.Catalog, introspector formation.Introspector, runner *formation.Runner, collector *gc.Collector, builder ContainerBuilder, meter metric.Meter, tracer trace.Tracer) (*Provisioner, error) {
	p := &Provisioner{
		catalog:      cat,
		introspector: introspector,
		runner:       runner,
		collector:    collector,
		builder:      builder,
		tracer:       tracer,
	}

	if meter != nil {
		metrics, err := otel.NewVolumeMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		p.metrics = metrics
	}

	return p, nil
}

// PostBuild refills the volume of a freshly built provider when the image
// differs from the one the volume was last filled from. Builds of other
// containers are ignored.
func (p *Provisioner) PostBuild(ctx context.Context, e *hooks.Event) (err error) {
	con := e.Container
	if con == nil || !con.ProvidesVolume() {
		return nil
	}
	client := e.Host.Client
	volume := con.ProvidedVolume

	ctx, span := otel.StartSpan(ctx, p.tracer, "ProvisionVolume",
		attribute.String("volume", volume),
		attribute.String("container", con.Name))
	defer func() { otel.EndSpan(span, err) }()
	log := logger.FromContext(ctx)

	image, err := client.InspectImage(ctx, con.Image())
	if err != nil {
		return fmt.Errorf("inspect provider image %s: %w", con.Image(), err)
	}

	stale, err := p.stale(ctx, client, volume, image.ID)
	if err != nil {
		return err
	}
	if !stale {
		log.DebugContext(ctx, "volume up to date", "volume", volume, "image", image.ID)
		return nil
	}

	log.InfoContext(ctx, "provisioning volume", "volume", volume, "container", con.Name, "image", image.ID)
	start := time.Now()

	if err := p.stopUsers(ctx, e.Host, volume, e.Task); err != nil {
		return err
	}

	if _, err := p.collector.Containers(ctx, e.Host, e.Task); err != nil {
		return err
	}

	task := e.Task.NewChild(fmt.Sprintf("(Re)creating volume %s", volume))
	if err := p.recreate(ctx, client, volume, image.ID, task); err != nil {
		task.Finish("Failed", tasks.Bad)
		return err
	}

	task.Update("Extracting")
	if err := p.populate(ctx, client, con, task); err != nil {
		task.Finish("Failed", tasks.Bad)
		// Drop the volume so the next build fills it again
		if rmErr := client.RemoveVolume(ctx, volume); rmErr != nil && !errors.Is(rmErr, docker.ErrNotFound) {
			log.WarnContext(ctx, "failed to remove half-filled volume", "volume", volume, "error", rmErr)
		}
		return err
	}

	task.Finish("Done", tasks.Good)
	p.recordProvision(ctx, volume, time.Since(start))
	return nil
}

func (p *Provisioner) recordProvision(ctx context.Context, volume string, d time.Duration) {
	if p.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("volume", volume))
	p.metrics.ProvisionsTotal.Add(ctx, 1, attrs)
	p.metrics.ProvisionDuration.Record(ctx, d.Seconds(), attrs)
}

// stale reports whether volume is missing or was filled from another image.
func (p *Provisioner) stale(ctx context.Context, client docker.Client, volume, imageID string) (bool, error) {
	details, err := client.InspectVolume(ctx, volume)
	if errors.Is(err, docker.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect volume %s: %w", volume, err)
	}
	return details.Labels[LabelBuildID] != imageID, nil
}

// stopUsers stops and removes every running instance that mounts volume.
func (p *Provisioner) stopUsers(ctx context.Context, host *docker.Host, volume string, parent *tasks.Task) error {
	current, err := p.introspector.Introspect(ctx, host)
	if err != nil {
		return err
	}
	users := current.InstancesUsingVolume(volume)
	if len(users) == 0 {
		return nil
	}

	task := parent.NewChild("Stopping containers")
	current.RemoveInstances(users)
	if err := p.runner.Run(ctx, host, current, task); err != nil {
		task.Finish("Failed", tasks.Bad)
		return fmt.Errorf("stop users of volume %s: %w", volume, err)
	}
	task.Finish("Done", tasks.Good)
	return nil
}

func (p *Provisioner) recreate(ctx context.Context, client docker.Client, volume, imageID string, task *tasks.Task) error {
	err := client.RemoveVolume(ctx, volume)
	switch {
	case err == nil:
		task.Update(fmt.Sprintf("Removed %s. Recreating", volume))
	case errors.Is(err, docker.ErrNotFound):
		task.Update(fmt.Sprintf("Volume %s not found. Creating", volume))
	default:
		return fmt.Errorf("remove volume %s: %w", volume, err)
	}

	if err := client.CreateVolume(ctx, volume, map[string]string{LabelBuildID: imageID}); err != nil {
		return err
	}
	return nil
}

// populate runs the provider image once with the volume mounted and waits for
// it to exit.
func (p *Provisioner) populate(ctx context.Context, client docker.Client, con *catalog.Container, task *tasks.Task) error {
	id, err := client.CreateContainer(ctx, docker.ContainerSpec{
		Name:   fmt.Sprintf("bay-volume-%s-%s", con.Name, cuid2.Generate()),
		Image:  con.Image(),
		Labels: map[string]string{LabelVolume: con.ProvidedVolume},
		Binds:  []docker.Bind{{Volume: con.ProvidedVolume, Target: MountPoint}},
	})
	if err != nil {
		return fmt.Errorf("create provider container %s: %w", con.Name, err)
	}
	defer func() {
		if err := client.RemoveContainer(context.WithoutCancel(ctx), id); err != nil {
			logger.FromContext(ctx).WarnContext(ctx, "failed to remove provider container", "id", id, "error", err)
		}
	}()

	if err := client.StartContainer(ctx, id); err != nil {
		return fmt.Errorf("start provider container %s: %w", con.Name, err)
	}
	code, err := client.WaitContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("wait provider container %s: %w", con.Name, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited with status %d", ErrPopulateFailed, con.Name, code)
	}
	return nil
}
