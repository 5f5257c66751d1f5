package formation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/graph"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/otel"
	"github.com/onkernel/bay/lib/tasks"
)

// Runner moves a host to a target formation.
type Runner struct {
	introspector Introspector
	hooks        *hooks.Registry
	metrics      *otel.FormationMetrics
}

// NewRunner creates a runner. meter may be nil.
func NewRunner(introspector Introspector, reg *hooks.Registry, meter metric.Meter) (*Runner, error) {
	r := &Runner{introspector: introspector, hooks: reg}

	if meter != nil {
		metrics, err := otel.NewFormationMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		r.metrics = metrics
	}

	return r, nil
}

// Run stops and removes every running instance not in target, then starts
// the missing ones so that runtime dependencies start first. PreStart hooks
// run before each start and may veto it.
func (r *Runner) Run(ctx context.Context, host *docker.Host, target *Formation, task *tasks.Task) error {
	log := logger.FromContext(ctx)

	current, err := r.introspector.Introspect(ctx, host)
	if err != nil {
		return err
	}

	for _, inst := range current.Instances() {
		if target.Get(inst.Name) != nil {
			continue
		}
		task.Update("Stopping " + inst.Name)
		if err := Stop(ctx, host, inst); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.InstanceStops.Add(ctx, 1, metric.WithAttributes(attribute.String("container", inst.Container.Name)))
		}
		log.InfoContext(ctx, "stopped instance", "instance", inst.Name, "host", host.Name)
	}

	missing := lo.Filter(target.Instances(), func(inst *Instance, _ int) bool {
		return current.Get(inst.Name) == nil
	})
	order, err := startOrder(target, missing)
	if err != nil {
		return err
	}

	for _, inst := range order {
		if err := r.start(ctx, host, inst, task); err != nil {
			return err
		}
		log.InfoContext(ctx, "started instance", "instance", inst.Name, "host", host.Name)
	}
	return nil
}

// startOrder sorts missing so that every instance comes after the target
// instances of its runtime dependencies.
func startOrder(target *Formation, missing []*Instance) ([]*Instance, error) {
	sorted, err := graph.TopologicalOrder(missing, func(inst *Instance) []*Instance {
		var deps []*Instance
		for _, name := range inst.Container.DependsOn {
			deps = append(deps, lo.Filter(target.Instances(), func(d *Instance, _ int) bool {
				return d.Container.Name == name
			})...)
		}
		return deps
	})
	if err != nil {
		return nil, fmt.Errorf("order instances: %w", err)
	}
	return lo.Filter(sorted, func(inst *Instance, _ int) bool {
		return lo.Contains(missing, inst)
	}), nil
}

func (r *Runner) start(ctx context.Context, host *docker.Host, inst *Instance, task *tasks.Task) (err error) {
	child := task.NewChild("Starting " + inst.Name)
	if r.metrics != nil {
		defer func() {
			status := "success"
			if err != nil {
				status = "failed"
			}
			r.metrics.InstanceStarts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		}()
	}

	err = r.hooks.Run(ctx, hooks.PreStart, &hooks.Event{
		Host:     host,
		Instance: &hooks.Instance{Name: inst.Name, Container: inst.Container},
		Task:     child,
	})
	if err != nil {
		child.Finish("Refused", tasks.Bad)
		return fmt.Errorf("pre-start %s: %w", inst.Name, err)
	}

	id, err := host.Client.CreateContainer(ctx, spec(inst))
	if err != nil {
		child.Finish("Failed", tasks.Bad)
		return fmt.Errorf("%w: %s: %w", ErrStartFailed, inst.Name, err)
	}
	if err := host.Client.StartContainer(ctx, id); err != nil {
		child.Finish("Failed", tasks.Bad)
		return fmt.Errorf("%w: %s: %w", ErrStartFailed, inst.Name, err)
	}
	inst.ID = id

	child.Finish("Started", tasks.Good)
	return nil
}

func spec(inst *Instance) docker.ContainerSpec {
	mounts := lo.Keys(inst.Container.NamedVolumes)
	sort.Strings(mounts)

	return docker.ContainerSpec{
		Name:   inst.Name,
		Image:  inst.Container.Image(),
		Labels: map[string]string{docker.LabelContainer: inst.Container.Name},
		Binds: lo.Map(mounts, func(m string, _ int) docker.Bind {
			return docker.Bind{Volume: inst.Container.NamedVolumes[m], Target: m}
		}),
	}
}

// Stop stops and removes inst. A container that is already gone counts as
// stopped.
func Stop(ctx context.Context, host *docker.Host, inst *Instance) error {
	ref := inst.ID
	if ref == "" {
		ref = inst.Name
	}
	if err := host.Client.StopContainer(ctx, ref); err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %s: %w", ErrStopFailed, inst.Name, err)
	}
	if err := host.Client.RemoveContainer(ctx, ref); err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %s: %w", ErrStopFailed, inst.Name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, docker.ErrNotFound)
}
