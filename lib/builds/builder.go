package builds

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/tasks"
)

// BuildOptions control a single image build.
type BuildOptions struct {
	// LogPath is the shared log every build in a batch appends to
	LogPath string
	Cache   bool
	Verbose bool
}

// Builder runs one image build. A failed build returns an error wrapping
// docker.ErrBuildFailed.
type Builder interface {
	Build(ctx context.Context) error
}

// BuilderFactory constructs the builder for one container.
type BuilderFactory func(host *docker.Host, con *catalog.Container, task *tasks.Task, opts BuildOptions) Builder

// NewDockerBuilderFactory returns a factory whose builders build through the
// host's runtime client. Verbose builds also stream their output to out.
func NewDockerBuilderFactory(out io.Writer) BuilderFactory {
	return func(host *docker.Host, con *catalog.Container, task *tasks.Task, opts BuildOptions) Builder {
		return &dockerBuilder{host: host, con: con, task: task, opts: opts, out: out}
	}
}

type dockerBuilder struct {
	host *docker.Host
	con  *catalog.Container
	task *tasks.Task
	opts BuildOptions
	out  io.Writer
}

func (b *dockerBuilder) Build(ctx context.Context) error {
	task := b.task.NewChild(fmt.Sprintf("Building %s", b.con.Name))

	logFile, err := os.OpenFile(b.opts.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		task.Finish("Failed", tasks.Bad)
		return fmt.Errorf("open build log: %w", err)
	}
	defer logFile.Close()

	fmt.Fprintf(logFile, "==== %s: building %s on %s ====\n", time.Now().Format(time.RFC3339), b.con.Image(), b.host.Name)

	var w io.Writer = logFile
	if b.opts.Verbose && b.out != nil {
		w = io.MultiWriter(logFile, b.out)
	}

	task.Update("Building image " + b.con.Image())
	err = b.host.Client.BuildImage(ctx, docker.BuildSpec{
		ContextDir: b.con.Path,
		Dockerfile: b.con.Dockerfile,
		Tags:       []string{b.con.Image()},
		NoCache:    !b.opts.Cache,
		BuildArgs:  b.con.BuildArgs,
	}, w)
	if err != nil {
		fmt.Fprintf(logFile, "==== build failed: %v ====\n", err)
		task.Finish("Failed", tasks.Bad)
		return err
	}

	task.Finish("Built", tasks.Good)
	return nil
}
