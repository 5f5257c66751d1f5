package builds

import (
	"context"
	"errors"
	"fmt"

	"github.com/gookit/color"

	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/cli"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/plugins"
	"github.com/onkernel/bay/lib/tasks"
)

// ProfileTarget is the build argument that stands for the active profile
const ProfileTarget = "profile"

// Plugin contributes the build command.
type Plugin struct {
	app          *app.App
	orchestrator *Orchestrator
}

// NewPlugin returns the factory for the build plugin.
func NewPlugin(o *Orchestrator) plugins.Factory {
	return func(a *app.App) plugins.Plugin {
		return &Plugin{app: a, orchestrator: o}
	}
}

func (p *Plugin) Name() string       { return "build" }
func (p *Plugin) Provides() []string { return []string{"build"} }
func (p *Plugin) Requires() []string { return nil }

func (p *Plugin) Load(a *app.App) error {
	if err := a.AddCommand(&app.Command{
		Name:    "build",
		Summary: "Build container images, along with their build dependencies",
		Run:     p.build,
	}); err != nil {
		return err
	}
	return a.AddAlias("b", "build")
}

func (p *Plugin) build(ctx context.Context, args []string) error {
	out := p.app.Out
	fs := cli.NewFlagSet("build", "[options] [container...|profile]", out)

	var hostName string
	fs.StringVar(&hostName, "host", docker.DefaultHost, "runtime host to build on")
	fs.StringVar(&hostName, "h", docker.DefaultHost, "runtime host to build on (shorthand)")
	opts := DefaultOptions()
	cli.Toggle(fs, &opts.Cache, true, []string{"cache"}, []string{"no-cache"}, "use the build cache")
	cli.Toggle(fs, &opts.Recursive, true, []string{"recursive", "r"}, []string{"one", "1"}, "build missing ancestors too")
	cli.Toggle(fs, &opts.Verbose, true, []string{"verbose", "v"}, []string{"quiet", "q"}, "stream build output")

	if done, err := cli.Parse(fs, args); done || err != nil {
		return err
	}

	req, err := ParseTargets(p.app.Catalog, fs.Args())
	if err != nil {
		return err
	}

	host, err := p.app.Hosts.Get(ctx, hostName)
	if err != nil {
		return err
	}

	task := p.app.NewTask("Building")
	plan, err := p.orchestrator.Resolve(ctx, host, req, opts, task)
	if err != nil {
		task.Finish("Failed", tasks.Bad)
		return err
	}

	outcome, err := p.orchestrator.Run(ctx, host, plan, opts, task)
	if err != nil {
		var failure *BuildFailureError
		task.Finish("Failed", tasks.Bad)
		if errors.As(err, &failure) {
			PrintFailure(out, p.app.Err, failure)
			return cli.Exit(1, "%s", failure.Error())
		}
		return err
	}

	task.Finish("Done", tasks.Good)
	fmt.Fprintf(out, "Total build time [%s]\n", color.Green.Sprint(FormatElapsed(outcome.Elapsed)))
	return nil
}

// ParseTargets maps build arguments onto catalog containers. No arguments
// is an empty request.
func ParseTargets(cat *catalog.Catalog, args []string) (Request, error) {
	var req Request
	for _, arg := range args {
		if arg == ProfileTarget {
			req.Profile = true
			continue
		}
		con, err := cat.Get(arg)
		if err != nil {
			return req, err
		}
		req.Containers = append(req.Containers, con)
	}
	return req, nil
}
