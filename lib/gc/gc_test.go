package gc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/tasks"
)

type fakeClient struct {
	docker.Client
	containers []docker.ContainerSummary
	removed    []string
	removeErr  error
}

func (c *fakeClient) ListContainers(ctx context.Context, all bool) ([]docker.ContainerSummary, error) {
	return c.containers, nil
}

func (c *fakeClient) RemoveContainer(ctx context.Context, id string) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removed = append(c.removed, id)
	return nil
}

func TestContainers(t *testing.T) {
	client := &fakeClient{containers: []docker.ContainerSummary{
		{ID: "1", Name: "web", State: "running"},
		{ID: "2", Name: "old", State: "exited"},
		{ID: "3", Name: "new", State: "created"},
		{ID: "4", Name: "paused", State: "paused"},
	}}

	n, err := NewCollector().Containers(context.Background(), &docker.Host{Name: "default", Client: client}, tasks.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"2", "3"}, client.removed)
}

func TestContainersToleratesNotFound(t *testing.T) {
	client := &fakeClient{
		containers: []docker.ContainerSummary{{ID: "2", Name: "old", State: "exited"}},
		removeErr:  docker.ErrNotFound,
	}
	_, err := NewCollector().Containers(context.Background(), &docker.Host{Client: client}, tasks.Discard())
	require.NoError(t, err)
}

func TestContainersRemoveFailure(t *testing.T) {
	client := &fakeClient{
		containers: []docker.ContainerSummary{{ID: "2", Name: "old", State: "exited"}},
		removeErr:  errors.New("device busy"),
	}
	_, err := NewCollector().Containers(context.Background(), &docker.Host{Client: client}, tasks.Discard())
	require.Error(t, err)
}

func TestCommand(t *testing.T) {
	client := &fakeClient{containers: []docker.ContainerSummary{{ID: "9", Name: "old", State: "dead"}}}
	hosts := docker.NewHosts(nil, func(ctx context.Context, addr string) (docker.Client, error) {
		return client, nil
	})
	a := app.New(nil, nil, hosts, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	require.NoError(t, NewPlugin(NewCollector())(a).Load(a))

	require.NoError(t, a.Run(context.Background(), []string{"gc"}))
	assert.Equal(t, []string{"9"}, client.removed)
}
