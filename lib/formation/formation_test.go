package formation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/tasks"
)

// fakeClient keeps running containers in memory.
type fakeClient struct {
	docker.Client
	running  []docker.ContainerSummary
	created  []docker.ContainerSpec
	started  []string
	stopped  []string
	removed  []string
	startErr error
}

func (c *fakeClient) ListContainers(ctx context.Context, all bool) ([]docker.ContainerSummary, error) {
	return c.running, nil
}

func (c *fakeClient) CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error) {
	c.created = append(c.created, spec)
	return "id-" + spec.Name, nil
}

func (c *fakeClient) StartContainer(ctx context.Context, id string) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.started = append(c.started, id)
	return nil
}

func (c *fakeClient) StopContainer(ctx context.Context, id string) error {
	c.stopped = append(c.stopped, id)
	return nil
}

func (c *fakeClient) RemoveContainer(ctx context.Context, id string) error {
	c.removed = append(c.removed, id)
	return nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]*catalog.Container{
		{Name: "db", ImageName: "localdev/db", ImageTag: "latest",
			NamedVolumes: map[string]string{"/var/lib/postgresql": "pgdata"}},
		{Name: "cache", ImageName: "localdev/cache", ImageTag: "latest"},
		{Name: "web", ImageName: "localdev/web", ImageTag: "latest", DependsOn: []string{"db", "cache"},
			NamedVolumes: map[string]string{"/srv/static": "assets", "/srv/media": "assets"}},
		{Name: "worker", ImageName: "localdev/worker", ImageTag: "latest", DependsOn: []string{"db"}},
	})
	require.NoError(t, err)
	return cat
}

func running(name, container string) docker.ContainerSummary {
	return docker.ContainerSummary{
		ID:     "id-" + name,
		Name:   name,
		State:  "running",
		Labels: map[string]string{docker.LabelContainer: container},
	}
}

func get(t *testing.T, cat *catalog.Catalog, name string) *catalog.Container {
	con, err := cat.Get(name)
	require.NoError(t, err)
	return con
}

func TestFormationVolumes(t *testing.T) {
	cat := testCatalog(t)
	f := New()
	for _, name := range []string{"db", "web", "worker"} {
		_, err := f.AddContainer(get(t, cat, name))
		require.NoError(t, err)
	}

	_, err := f.AddContainer(get(t, cat, "db"))
	require.ErrorIs(t, err, ErrDuplicateInstance)

	using := f.InstancesUsingVolume("assets")
	require.Len(t, using, 1)
	assert.Equal(t, "bay-web", using[0].Name)
	assert.Equal(t, []string{"assets"}, using[0].Volumes())

	clone := f.Clone()
	clone.RemoveInstances(using)
	assert.Equal(t, 2, clone.Len())
	assert.Equal(t, 3, f.Len())
	assert.Nil(t, clone.Get("bay-web"))
	assert.Len(t, f.ForContainer(get(t, cat, "web")), 1)
}

func TestIntrospect(t *testing.T) {
	cat := testCatalog(t)
	client := &fakeClient{running: []docker.ContainerSummary{
		running("bay-db", "db"),
		running("stray", "not-in-catalog"),
		{ID: "x", Name: "unlabelled", State: "running"},
		{ID: "y", Name: "bay-web", State: "exited", Labels: map[string]string{docker.LabelContainer: "web"}},
	}}

	f, err := NewIntrospector(cat).Introspect(context.Background(), &docker.Host{Name: "default", Client: client})
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	inst := f.Get("bay-db")
	require.NotNil(t, inst)
	assert.Equal(t, "id-bay-db", inst.ID)
	assert.Equal(t, "db", inst.Container.Name)
}

func TestRunnerStartsInDependencyOrder(t *testing.T) {
	cat := testCatalog(t)
	client := &fakeClient{running: []docker.ContainerSummary{
		running("bay-cache", "cache"),
		running("bay-old", "worker"),
	}}
	host := &docker.Host{Name: "default", Client: client}
	reg := hooks.NewRegistry()

	var preStart []string
	require.NoError(t, reg.Register(hooks.PreStart, func(ctx context.Context, e *hooks.Event) error {
		preStart = append(preStart, e.Instance.Name)
		return nil
	}))

	target := New()
	for _, name := range []string{"web", "db", "cache"} {
		_, err := target.AddContainer(get(t, cat, name))
		require.NoError(t, err)
	}

	runner, err := NewRunner(NewIntrospector(cat), reg, nil)
	require.NoError(t, err)
	require.NoError(t, runner.Run(context.Background(), host, target, tasks.Discard()))

	assert.Equal(t, []string{"id-bay-old"}, client.stopped)
	assert.Equal(t, []string{"id-bay-old"}, client.removed)
	assert.Equal(t, []string{"bay-db", "bay-web"}, preStart)
	assert.Equal(t, []string{"id-bay-db", "id-bay-web"}, client.started)

	web := client.created[1]
	assert.Equal(t, "localdev/web:latest", web.Image)
	assert.Equal(t, "web", web.Labels[docker.LabelContainer])
	assert.Equal(t, []docker.Bind{
		{Volume: "assets", Target: "/srv/media"},
		{Volume: "assets", Target: "/srv/static"},
	}, web.Binds)
}

func TestRunnerPreStartVeto(t *testing.T) {
	cat := testCatalog(t)
	client := &fakeClient{}
	reg := hooks.NewRegistry()
	veto := errors.New("volume providers cannot run")
	require.NoError(t, reg.Register(hooks.PreStart, func(context.Context, *hooks.Event) error { return veto }))

	target := New()
	_, err := target.AddContainer(get(t, cat, "db"))
	require.NoError(t, err)

	runner, err := NewRunner(NewIntrospector(cat), reg, nil)
	require.NoError(t, err)
	err = runner.Run(context.Background(), &docker.Host{Client: client}, target, tasks.Discard())
	require.ErrorIs(t, err, veto)
	assert.Empty(t, client.created)
}

func TestRunnerStartFailure(t *testing.T) {
	cat := testCatalog(t)
	client := &fakeClient{startErr: fmt.Errorf("port in use")}

	target := New()
	_, err := target.AddContainer(get(t, cat, "cache"))
	require.NoError(t, err)

	runner, err := NewRunner(NewIntrospector(cat), hooks.NewRegistry(), nil)
	require.NoError(t, err)
	err = runner.Run(context.Background(), &docker.Host{Client: client}, target, tasks.Discard())
	require.ErrorIs(t, err, ErrStartFailed)
}
