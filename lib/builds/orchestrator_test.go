package builds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/tasks"
)

// fakeClient answers pulls from a fixed set of available images.
type fakeClient struct {
	docker.Client
	available map[string]bool
	pulls     []string
}

func (c *fakeClient) PullImage(ctx context.Context, name, tag string) error {
	c.pulls = append(c.pulls, name)
	if c.available[name] {
		return nil
	}
	return fmt.Errorf("%w: %s:%s", docker.ErrImagePullFailure, name, tag)
}

// fakeBuilders records builds and fails the ones named in fail.
type fakeBuilders struct {
	built []string
	fail  map[string]bool
}

type fakeBuilder struct {
	b    *fakeBuilders
	con  *catalog.Container
	opts BuildOptions
}

func (f *fakeBuilder) Build(ctx context.Context) error {
	f.b.built = append(f.b.built, f.con.Name)
	if f.b.fail[f.con.Name] {
		logFile, err := os.OpenFile(f.opts.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(logFile, "step 1\n\x1b[31merror: %s broke\x1b[0m\n", f.con.Name)
			logFile.Close()
		}
		return fmt.Errorf("%w: exit 1", docker.ErrBuildFailed)
	}
	return nil
}

func (b *fakeBuilders) factory() BuilderFactory {
	return func(host *docker.Host, con *catalog.Container, task *tasks.Task, opts BuildOptions) Builder {
		return &fakeBuilder{b: b, con: con, opts: opts}
	}
}

type fixture struct {
	catalog  *catalog.Catalog
	client   *fakeClient
	builders *fakeBuilders
	hooks    *hooks.Registry
	host     *docker.Host
	orch     *Orchestrator
	logPath  string
}

func newFixture(t *testing.T, containers []*catalog.Container) *fixture {
	t.Helper()
	cat, err := catalog.New(containers)
	require.NoError(t, err)

	f := &fixture{
		catalog:  cat,
		client:   &fakeClient{available: map[string]bool{}},
		builders: &fakeBuilders{fail: map[string]bool{}},
		hooks:    hooks.NewRegistry(),
		logPath:  filepath.Join(t.TempDir(), "build.log"),
	}
	f.host = &docker.Host{Name: docker.DefaultHost, Client: f.client}
	f.orch, err = NewOrchestrator(Config{LogPath: f.logPath}, cat, f.hooks, f.builders.factory(), nil, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) get(t *testing.T, name string) *catalog.Container {
	con, err := f.catalog.Get(name)
	require.NoError(t, err)
	return con
}

func chain() []*catalog.Container {
	return []*catalog.Container{
		{Name: "a", ImageName: "localdev/a", ImageTag: "latest"},
		{Name: "b", ImageName: "localdev/b", ImageTag: "latest", From: "a"},
		{Name: "c", ImageName: "localdev/c", ImageTag: "latest", From: "b"},
	}
}

func TestResolveAncestorChain(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		recursive bool
		want      []string
		wantPulls []string
	}{
		{
			name:      "all pulls fail",
			recursive: true,
			want:      []string{"a", "b", "c"},
			wantPulls: []string{"localdev/b", "localdev/a"},
		},
		{
			name:      "parent pulls",
			available: []string{"localdev/b"},
			recursive: true,
			want:      []string{"c"},
			wantPulls: []string{"localdev/b"},
		},
		{
			name:      "grandparent pulls",
			available: []string{"localdev/a"},
			recursive: true,
			want:      []string{"b", "c"},
			wantPulls: []string{"localdev/b", "localdev/a"},
		},
		{
			name:      "not recursive",
			recursive: false,
			want:      []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, chain())
			for _, img := range tt.available {
				f.client.available[img] = true
			}

			opts := DefaultOptions()
			opts.Recursive = tt.recursive
			plan, err := f.orch.Resolve(context.Background(), f.host,
				Request{Containers: []*catalog.Container{f.get(t, "c")}}, opts, tasks.Discard())
			require.NoError(t, err)

			assert.Equal(t, tt.want, names(plan.Builds))
			assert.Equal(t, tt.wantPulls, f.client.pulls)
		})
	}
}

func TestResolveSharedAncestorPulledOnce(t *testing.T) {
	containers := append(chain(), &catalog.Container{Name: "d", ImageName: "localdev/d", ImageTag: "latest", From: "b"})
	f := newFixture(t, containers)

	plan, err := f.orch.Resolve(context.Background(), f.host, Request{
		Containers: []*catalog.Container{f.get(t, "c"), f.get(t, "d")},
	}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(plan.Builds))
	assert.Equal(t, []string{"localdev/b", "localdev/a"}, f.client.pulls)
	assert.Equal(t, []string{"b", "a"}, names(plan.FailedPulls))
}

func profileCatalog() []*catalog.Container {
	return []*catalog.Container{
		{Name: "base", ImageName: "localdev/base", ImageTag: "latest"},
		{Name: "web", ImageName: "localdev/web", ImageTag: "latest", From: "base", DependsOn: []string{"db"},
			NamedVolumes: map[string]string{"/srv/assets": "assets"}},
		{Name: "worker", ImageName: "localdev/worker", ImageTag: "latest", From: "base",
			NamedVolumes: map[string]string{"/srv/assets": "assets"}},
		{Name: "db", ImageName: "localdev/db", ImageTag: "latest"},
		{Name: "assets", ImageName: "localdev/assets", ImageTag: "latest", ProvidedVolume: "assets"},
		{Name: "proxy", ImageName: "localdev/proxy", ImageTag: "latest", System: true},
		{Name: "unused", ImageName: "localdev/unused", ImageTag: "latest"},
	}
}

func TestExpandProfile(t *testing.T) {
	f := newFixture(t, profileCatalog())
	require.NoError(t, f.catalog.SetOptions("web", catalog.Options{InProfile: true, DefaultBoot: true}))
	require.NoError(t, f.catalog.SetOptions("worker", catalog.Options{InProfile: true}))

	explicit, candidates := f.orch.Expand(Request{Profile: true})
	assert.Empty(t, explicit)
	assert.Equal(t, []string{"proxy", "web", "assets", "worker"}, names(candidates))
}

func TestExpandExplicitIncludesProviders(t *testing.T) {
	f := newFixture(t, profileCatalog())

	explicit, candidates := f.orch.Expand(Request{Containers: []*catalog.Container{f.get(t, "worker")}})
	assert.Equal(t, []string{"worker", "assets"}, names(explicit))
	assert.Empty(t, candidates)
}

func TestResolveProfilePullsRuntimeDependencies(t *testing.T) {
	f := newFixture(t, profileCatalog())
	require.NoError(t, f.catalog.SetOptions("web", catalog.Options{InProfile: true}))
	f.client.available = map[string]bool{
		"localdev/db":     true,
		"localdev/proxy":  true,
		"localdev/assets": true,
		"localdev/base":   true,
	}

	plan, err := f.orch.Resolve(context.Background(), f.host, Request{Profile: true}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"localdev/proxy", "localdev/db", "localdev/web", "localdev/assets", "localdev/base"}, f.client.pulls)
	assert.Equal(t, []string{"web"}, names(plan.Builds))
}

func TestResolveQueuedAncestorIsNotPulled(t *testing.T) {
	f := newFixture(t, chain())
	f.client.available["localdev/b"] = true

	plan, err := f.orch.Resolve(context.Background(), f.host, Request{
		Containers: []*catalog.Container{f.get(t, "c"), f.get(t, "b")},
	}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"localdev/a"}, f.client.pulls)
	assert.Empty(t, plan.Pulled)
	assert.Equal(t, []string{"a", "b", "c"}, names(plan.Builds))
}

func TestEmptyRequestRunsEmptyBatch(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no containers", req: Request{}},
		{name: "empty profile", req: Request{Profile: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, chain())
			var events []hooks.Type
			for _, typ := range []hooks.Type{hooks.PreGroupBuild, hooks.PostGroupBuild} {
				require.NoError(t, f.hooks.Register(typ, func(ctx context.Context, e *hooks.Event) error {
					events = append(events, typ)
					return nil
				}))
			}

			plan, err := f.orch.Resolve(context.Background(), f.host, tt.req, DefaultOptions(), tasks.Discard())
			require.NoError(t, err)
			assert.Empty(t, plan.Targets)
			assert.Empty(t, plan.Builds)

			outcome, err := f.orch.Run(context.Background(), f.host, plan, DefaultOptions(), tasks.Discard())
			require.NoError(t, err)
			assert.Empty(t, outcome.Built)
			assert.Equal(t, []hooks.Type{hooks.PreGroupBuild, hooks.PostGroupBuild}, events)
			assert.Empty(t, f.client.pulls)
		})
	}
}

func TestRunFiresHooksInOrder(t *testing.T) {
	f := newFixture(t, chain())
	var events []string
	record := func(typ hooks.Type) hooks.Hook {
		return func(ctx context.Context, e *hooks.Event) error {
			switch typ {
			case hooks.PostBuild:
				events = append(events, string(typ)+":"+e.Container.Name)
			default:
				events = append(events, fmt.Sprintf("%s:%d", typ, len(e.Containers)))
			}
			return nil
		}
	}
	for _, typ := range []hooks.Type{hooks.PreGroupBuild, hooks.PostBuild, hooks.PostGroupBuild} {
		require.NoError(t, f.hooks.Register(typ, record(typ)))
	}

	plan := &Plan{Builds: []*catalog.Container{f.get(t, "a"), f.get(t, "b")}}
	outcome, err := f.orch.Run(context.Background(), f.host, plan, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, names(outcome.Built))
	assert.Equal(t, []string{
		"pre-group-build:2",
		"post-build:a",
		"post-build:b",
		"post-group-build:2",
	}, events)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, chain())
	f.builders.fail["b"] = true
	var postGroup bool
	require.NoError(t, f.hooks.Register(hooks.PostGroupBuild, func(context.Context, *hooks.Event) error {
		postGroup = true
		return nil
	}))

	plan := &Plan{Builds: []*catalog.Container{f.get(t, "a"), f.get(t, "b"), f.get(t, "c")}}
	outcome, err := f.orch.Run(context.Background(), f.host, plan, DefaultOptions(), tasks.Discard())

	var failure *BuildFailureError
	require.True(t, errors.As(err, &failure))
	require.ErrorIs(t, err, docker.ErrBuildFailed)
	assert.Equal(t, "b", failure.Container)
	assert.Equal(t, f.logPath, failure.LogPath)
	assert.Equal(t, []string{"step 1", "error: b broke"}, failure.Tail)

	assert.Equal(t, []string{"a", "b"}, f.builders.built, "c is never attempted")
	assert.Equal(t, []string{"a"}, names(outcome.Built))
	assert.False(t, postGroup)
}

func TestRunPostBuildHookError(t *testing.T) {
	f := newFixture(t, chain())
	veto := errors.New("volume busy")
	require.NoError(t, f.hooks.Register(hooks.PostBuild, func(context.Context, *hooks.Event) error {
		return veto
	}))

	plan := &Plan{Builds: []*catalog.Container{f.get(t, "a"), f.get(t, "b")}}
	_, err := f.orch.Run(context.Background(), f.host, plan, DefaultOptions(), tasks.Discard())
	require.ErrorIs(t, err, veto)
	assert.Equal(t, []string{"a"}, f.builders.built)
}

func TestRunElapsed(t *testing.T) {
	f := newFixture(t, chain())
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	f.orch.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(90*time.Second + 400*time.Millisecond)
	}

	outcome, err := f.orch.Run(context.Background(), f.host, &Plan{Builds: []*catalog.Container{f.get(t, "a")}}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, outcome.Elapsed)
	assert.Equal(t, "01:30", FormatElapsed(outcome.Elapsed))
}

func TestRunRotatesOversizedLog(t *testing.T) {
	f := newFixture(t, chain())
	f.orch.config.LogMaxSize = 10 * datasize.B
	require.NoError(t, os.WriteFile(f.logPath, []byte("old output that is too long\n"), 0644))

	_, err := f.orch.Run(context.Background(), f.host, &Plan{}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)

	info, err := os.Stat(f.logPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestBuildSpans(t *testing.T) {
	f := newFixture(t, chain())
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	var err error
	f.orch, err = NewOrchestrator(Config{LogPath: f.logPath}, f.catalog, f.hooks, f.builders.factory(),
		sdkmetric.NewMeterProvider().Meter("test"), tracer)
	require.NoError(t, err)
	f.builders.fail["c"] = true

	ctx := context.Background()
	plan, err := f.orch.Resolve(ctx, f.host, Request{Containers: []*catalog.Container{f.get(t, "c")}}, DefaultOptions(), tasks.Discard())
	require.NoError(t, err)
	_, err = f.orch.Run(ctx, f.host, plan, DefaultOptions(), tasks.Discard())
	require.Error(t, err)

	spans := recorder.Ended()
	var got []string
	for _, span := range spans {
		got = append(got, span.Name())
	}
	require.Equal(t, []string{"ResolveBuild", "BuildContainer", "BuildContainer", "BuildContainer", "RunBuild"}, got)

	run := spans[4]
	for _, span := range spans[1:4] {
		assert.Equal(t, run.SpanContext().SpanID(), span.Parent().SpanID())
	}
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[3].Status().Code)
	assert.Equal(t, codes.Error, run.Status().Code)
}
