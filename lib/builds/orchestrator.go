package builds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gookit/color"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/graph"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/otel"
	"github.com/onkernel/bay/lib/tasks"
)

// Request is what the caller asked to build. Profile expands to every
// container in the active profile plus the system containers.
type Request struct {
	Containers []*catalog.Container
	Profile    bool
}

// Options control a batch build.
type Options struct {
	Cache     bool
	Recursive bool
	Verbose   bool
}

// DefaultOptions match the build command defaults.
func DefaultOptions() Options {
	return Options{Cache: true, Recursive: true, Verbose: true}
}

// Plan is the resolved batch.
type Plan struct {
	// Targets is the expanded request: explicit containers first, then
	// profile containers, each followed by its volume providers
	Targets []*catalog.Container
	// Pulled lists the images pulled during resolution, in pull order
	Pulled []*catalog.Container
	// FailedPulls lists the images whose pull failed, in pull order
	FailedPulls []*catalog.Container
	// Builds is the final build order; parents come before children
	Builds []*catalog.Container
}

// Outcome reports an executed batch. Built holds the containers whose build
// succeeded, even when a later build failed.
type Outcome struct {
	Plan    *Plan
	Built   []*catalog.Container
	Elapsed time.Duration
}

// Config configures the orchestrator.
type Config struct {
	LogPath    string
	LogMaxSize datasize.ByteSize
}

// Orchestrator resolves build requests into ordered builds and runs them.
// It is used from one goroutine at a time.
type Orchestrator struct {
	config     Config
	catalog    *catalog.Catalog
	hooks      *hooks.Registry
	newBuilder BuilderFactory
	metrics    *Metrics
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator. meter and tracer may be nil; spans
// are only recorded when meter is set.
func NewOrchestrator(cfg Config, cat *catalog.Catalog, reg *hooks.Registry, newBuilder BuilderFactory, meter metric.Meter, tracer trace.Tracer) (*Orchestrator, error) {
	o := &Orchestrator{
		config:     cfg,
		catalog:    cat,
		hooks:      reg,
		newBuilder: newBuilder,
		now:        time.Now,
	}

	if meter != nil {
		metrics, err := NewMetrics(meter, tracer)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		o.metrics = metrics
	}

	return o, nil
}

// LogPath returns the shared build log location.
func (o *Orchestrator) LogPath() string {
	return o.config.LogPath
}

// Expand turns a request into the containers that must be built regardless
// of the registry (explicit containers and their volume providers) and the
// containers that may be pulled instead (profile containers and theirs).
func (o *Orchestrator) Expand(req Request) (explicit, candidates []*catalog.Container) {
	seen := make(map[*catalog.Container]bool)
	add := func(list []*catalog.Container, con *catalog.Container) []*catalog.Container {
		if seen[con] {
			return list
		}
		seen[con] = true
		return append(list, con)
	}

	for _, con := range req.Containers {
		explicit = add(explicit, con)
		for _, p := range o.catalog.ProvidersFor(con) {
			explicit = add(explicit, p)
		}
	}

	if req.Profile {
		for _, con := range o.catalog.All() {
			if !o.catalog.Options(con).InProfile && !con.System {
				continue
			}
			candidates = add(candidates, con)
			for _, p := range o.catalog.ProvidersFor(con) {
				candidates = add(candidates, p)
			}
		}
	}

	return explicit, candidates
}

// resolution is the state of one Resolve call.
type resolution struct {
	o       *Orchestrator
	host    *docker.Host
	task    *tasks.Task
	outcome *pullOutcome
	plan    *Plan
}

func (r *resolution) pull(ctx context.Context, con *catalog.Container) error {
	r.task.Update("Pulling " + con.Image())
	err := r.host.Client.PullImage(ctx, con.ImageName, con.ImageTag)
	if err != nil {
		r.outcome.failed[con] = true
		r.plan.FailedPulls = append(r.plan.FailedPulls, con)
		r.o.metrics.RecordPull(ctx, "failed")
		return err
	}
	r.outcome.pulled[con] = true
	r.plan.Pulled = append(r.plan.Pulled, con)
	r.o.metrics.RecordPull(ctx, "success")
	return nil
}

// Resolve computes the build plan for req on host. Pulls happen here: a
// container that pulls successfully is not built. An empty request resolves
// to an empty plan.
func (o *Orchestrator) Resolve(ctx context.Context, host *docker.Host, req Request, opts Options, task *tasks.Task) (_ *Plan, err error) {
	ctx, span := o.metrics.startSpan(ctx, "ResolveBuild", attribute.String("host", host.Name))
	defer func() { otel.EndSpan(span, err) }()
	log := logger.FromContext(ctx)

	explicit, candidates := o.Expand(req)
	r := &resolution{
		o:       o,
		host:    host,
		task:    task,
		outcome: newPullOutcome(),
		plan:    &Plan{Targets: append(append([]*catalog.Container{}, explicit...), candidates...)},
	}
	queue := newBuildQueue(explicit)

	// Runtime dependencies of profile containers are pulled too
	pullOrder, err := graph.TopologicalOrder(candidates, o.catalog.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("order pulls: %w", err)
	}
	for _, con := range pullOrder {
		if queue.has(con) {
			continue
		}
		if err := r.pull(ctx, con); err != nil {
			log.DebugContext(ctx, "pull failed, will build", "container", con.Name, "error", err)
			queue.pushBack(con)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Recursive {
		for _, con := range queue.snapshot() {
			r.walkAncestors(ctx, con, queue)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sorted, err := graph.TopologicalOrder(queue.items, o.buildParents)
	if err != nil {
		return nil, fmt.Errorf("order builds: %w", err)
	}
	// The sort pulls in every ancestor; keep only the ones that need building
	r.plan.Builds = lo.Filter(sorted, func(con *catalog.Container, _ int) bool {
		return queue.has(con)
	})

	log.InfoContext(ctx, "resolved build plan",
		"targets", len(r.plan.Targets),
		"pulled", len(r.plan.Pulled),
		"builds", names(r.plan.Builds))
	return r.plan, nil
}

// walkAncestors visits con's build ancestors newest first, queueing each one
// that cannot be pulled and stopping at the first that can. An ancestor that
// is already queued is never pulled; the walk continues past it.
func (r *resolution) walkAncestors(ctx context.Context, con *catalog.Container, queue *buildQueue) {
	ancestry := r.o.catalog.Ancestry(con)
	for i := len(ancestry) - 1; i >= 0; i-- {
		ancestor := ancestry[i]
		if queue.has(ancestor) {
			continue
		}
		decision := r.resolveAncestor(ctx, ancestor)
		if decision == Pulled {
			return
		}
		queue.pushFront(ancestor)
	}
}

func (o *Orchestrator) buildParents(con *catalog.Container) []*catalog.Container {
	return []*catalog.Container{o.catalog.BuildParent(con)}
}

// Run builds plan.Builds in order on host. The first failure stops the
// batch and is returned as a *BuildFailureError; images built before it are
// kept.
func (o *Orchestrator) Run(ctx context.Context, host *docker.Host, plan *Plan, opts Options, task *tasks.Task) (_ *Outcome, err error) {
	ctx, span := o.metrics.startSpan(ctx, "RunBuild",
		attribute.String("host", host.Name),
		attribute.StringSlice("order", names(plan.Builds)))
	defer func() { otel.EndSpan(span, err) }()
	log := logger.FromContext(ctx)
	start := o.now()
	outcome := &Outcome{Plan: plan}

	if truncated, err := rotateLog(o.config.LogPath, o.config.LogMaxSize); err != nil {
		log.WarnContext(ctx, "failed to rotate build log", "path", o.config.LogPath, "error", err)
	} else if truncated {
		log.DebugContext(ctx, "truncated build log", "path", o.config.LogPath)
	}

	task.AddExtraInfo("Order: " + color.Cyan.Sprint(strings.Join(names(plan.Builds), ", ")))

	if err := o.hooks.Run(ctx, hooks.PreGroupBuild, &hooks.Event{Host: host, Containers: plan.Builds, Task: task}); err != nil {
		return outcome, fmt.Errorf("pre-group-build hook: %w", err)
	}

	for _, con := range plan.Builds {
		if err := o.BuildContainer(ctx, host, con, task, opts); err != nil {
			outcome.Elapsed = o.since(start)
			return outcome, err
		}
		outcome.Built = append(outcome.Built, con)
	}

	if err := o.hooks.Run(ctx, hooks.PostGroupBuild, &hooks.Event{Host: host, Containers: plan.Builds, Task: task}); err != nil {
		return outcome, fmt.Errorf("post-group-build hook: %w", err)
	}

	outcome.Elapsed = o.since(start)
	log.InfoContext(ctx, "build batch complete", "built", len(outcome.Built), "elapsed", FormatElapsed(outcome.Elapsed))
	return outcome, nil
}

// BuildContainer builds one image and fires the post-build hooks. A failed
// build returns a *BuildFailureError carrying the log tail.
func (o *Orchestrator) BuildContainer(ctx context.Context, host *docker.Host, con *catalog.Container, task *tasks.Task, opts Options) (err error) {
	ctx, span := o.metrics.startSpan(ctx, "BuildContainer", attribute.String("container", con.Name))
	defer func() { otel.EndSpan(span, err) }()
	log := logger.FromContext(ctx)
	start := time.Now()

	builder := o.newBuilder(host, con, task, BuildOptions{
		LogPath: o.config.LogPath,
		Cache:   opts.Cache,
		Verbose: opts.Verbose,
	})
	if err := builder.Build(ctx); err != nil {
		o.metrics.RecordBuild(ctx, con.Name, "failed", time.Since(start))
		log.ErrorContext(ctx, "build failed", "container", con.Name, "error", err)

		var failure *BuildFailureError
		if errors.As(err, &failure) {
			return failure
		}
		failure = &BuildFailureError{Container: con.Name, LogPath: o.config.LogPath, Err: err}
		if tail, tailErr := TailLog(o.config.LogPath, TailLines); tailErr == nil {
			failure.Tail = tail
		}
		return failure
	}
	o.metrics.RecordBuild(ctx, con.Name, "success", time.Since(start))

	if err := o.hooks.Run(ctx, hooks.PostBuild, &hooks.Event{Host: host, Container: con, Task: task}); err != nil {
		return fmt.Errorf("post-build hook for %s: %w", con.Name, err)
	}
	return nil
}

func (o *Orchestrator) since(start time.Time) time.Duration {
	return o.now().Sub(start).Truncate(time.Second)
}

// buildQueue is an ordered set of containers to build.
type buildQueue struct {
	items []*catalog.Container
	set   map[*catalog.Container]bool
}

func newBuildQueue(initial []*catalog.Container) *buildQueue {
	q := &buildQueue{set: make(map[*catalog.Container]bool)}
	for _, con := range initial {
		q.pushBack(con)
	}
	return q
}

func (q *buildQueue) has(con *catalog.Container) bool {
	return q.set[con]
}

func (q *buildQueue) pushBack(con *catalog.Container) {
	if q.set[con] {
		return
	}
	q.set[con] = true
	q.items = append(q.items, con)
}

func (q *buildQueue) pushFront(con *catalog.Container) {
	if q.set[con] {
		return
	}
	q.set[con] = true
	q.items = append([]*catalog.Container{con}, q.items...)
}

func (q *buildQueue) snapshot() []*catalog.Container {
	return append([]*catalog.Container(nil), q.items...)
}

func names(cons []*catalog.Container) []string {
	return lo.Map(cons, func(con *catalog.Container, _ int) string { return con.Name })
}
