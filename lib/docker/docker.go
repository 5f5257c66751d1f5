package docker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
)

// stopTimeout is how long a container gets to exit before it is killed
const stopTimeout = 10

type dockerClient struct {
	cli *client.Client
}

// NewClient connects to the daemon at host. An empty host uses the standard
// Docker environment (DOCKER_HOST and friends).
func NewClient(ctx context.Context, host string) (Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host == "" {
		opts = append(opts, client.FromEnv)
	} else {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDockerUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: %w", ErrDockerUnavailable, err)
	}

	return &dockerClient{cli: cli}, nil
}

func (d *dockerClient) PullImage(ctx context.Context, name, tag string) error {
	ref := name + ":" + tag
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImagePullFailure, ref, err)
	}
	defer reader.Close()

	// Errors after the pull starts arrive inside the progress stream
	if err := jsonmessage.DisplayJSONMessagesStream(reader, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImagePullFailure, ref, err)
	}
	return nil
}

func (d *dockerClient) InspectImage(ctx context.Context, name string) (*ImageDetails, error) {
	inspect, _, err := d.cli.ImageInspectWithRaw(ctx, name)
	if err != nil {
		return nil, translate(err, "inspect image "+name)
	}
	return &ImageDetails{ID: inspect.ID}, nil
}

func (d *dockerClient) InspectVolume(ctx context.Context, name string) (*VolumeDetails, error) {
	vol, err := d.cli.VolumeInspect(ctx, name)
	if err != nil {
		return nil, translate(err, "inspect volume "+name)
	}
	return &VolumeDetails{Name: vol.Name, Labels: vol.Labels}, nil
}

func (d *dockerClient) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Labels: labels,
	})
	if err != nil {
		return fmt.Errorf("create volume %s: %w", name, err)
	}
	return nil
}

func (d *dockerClient) RemoveVolume(ctx context.Context, name string) error {
	if err := d.cli.VolumeRemove(ctx, name, false); err != nil {
		return translate(err, "remove volume "+name)
	}
	return nil
}

func (d *dockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	labels := map[string]string{LabelManagedBy: managedByValue}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	mounts := make([]mount.Mount, 0, len(spec.Binds))
	volumes := make(map[string]struct{}, len(spec.Binds))
	for _, b := range spec.Binds {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeVolume,
			Source:   b.Volume,
			Target:   b.Target,
			ReadOnly: b.ReadOnly,
		})
		volumes[b.Target] = struct{}{}
	}

	containerCfg := &container.Config{
		Image:   spec.Image,
		Cmd:     spec.Cmd,
		Env:     spec.Env,
		Labels:  labels,
		Volumes: volumes,
	}
	hostCfg := &container.HostConfig{
		Mounts: mounts,
	}

	resp, err := d.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", translate(err, "create container "+spec.Name)
	}
	return resp.ID, nil
}

func (d *dockerClient) StartContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return translate(err, "start container "+id)
	}
	return nil
}

func (d *dockerClient) WaitContainer(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, translate(err, "wait container "+id)
	case status := <-statusCh:
		if status.Error != nil {
			return status.StatusCode, fmt.Errorf("wait container %s: %s", id, status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

func (d *dockerClient) StopContainer(ctx context.Context, id string) error {
	timeout := stopTimeout
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return translate(err, "stop container "+id)
	}
	return nil
}

func (d *dockerClient) RemoveContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return translate(err, "remove container "+id)
	}
	return nil
}

func (d *dockerClient) ListContainers(ctx context.Context, all bool) ([]ContainerSummary, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{
		All: all,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManagedBy+"="+managedByValue),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	summaries := make([]ContainerSummary, 0, len(containers))
	for _, c := range containers {
		summaries = append(summaries, toSummary(c))
	}
	return summaries, nil
}

func (d *dockerClient) BuildImage(ctx context.Context, spec BuildSpec, out io.Writer) error {
	buildContext, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("%w: archive context %s: %w", ErrBuildFailed, spec.ContextDir, err)
	}
	defer buildContext.Close()

	buildArgs := make(map[string]*string, len(spec.BuildArgs))
	for k, v := range spec.BuildArgs {
		buildArgs[k] = &v
	}

	resp, err := d.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        spec.Tags,
		Dockerfile:  spec.Dockerfile,
		NoCache:     spec.NoCache,
		Remove:      true,
		ForceRemove: true,
		PullParent:  false,
		BuildArgs:   buildArgs,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	defer resp.Body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	return nil
}

func (d *dockerClient) Close() error {
	return d.cli.Close()
}

func toSummary(c types.Container) ContainerSummary {
	name := c.ID
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	var vols []string
	for _, m := range c.Mounts {
		if m.Type == mount.TypeVolume && m.Name != "" {
			vols = append(vols, m.Name)
		}
	}

	return ContainerSummary{
		ID:      c.ID,
		Name:    name,
		Image:   c.Image,
		State:   c.State,
		Labels:  c.Labels,
		Volumes: vols,
	}
}

// translate maps daemon not-found errors onto ErrNotFound.
func translate(err error, op string) error {
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
