package gc

import (
	"context"

	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/cli"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/plugins"
)

// Plugin contributes the gc command.
type Plugin struct {
	app       *app.App
	collector *Collector
}

// NewPlugin returns the factory for the gc plugin.
func NewPlugin(c *Collector) plugins.Factory {
	return func(a *app.App) plugins.Plugin {
		return &Plugin{app: a, collector: c}
	}
}

func (p *Plugin) Name() string       { return "gc" }
func (p *Plugin) Provides() []string { return []string{"gc"} }
func (p *Plugin) Requires() []string { return nil }

func (p *Plugin) Load(a *app.App) error {
	return a.AddCommand(&app.Command{
		Name:    "gc",
		Summary: "Remove stopped containers",
		Run:     p.gc,
	})
}

func (p *Plugin) gc(ctx context.Context, args []string) error {
	fs := cli.NewFlagSet("gc", "[options]", p.app.Out)
	var hostName string
	fs.StringVar(&hostName, "host", docker.DefaultHost, "runtime host to clean")
	fs.StringVar(&hostName, "h", docker.DefaultHost, "runtime host to clean (shorthand)")
	if done, err := cli.Parse(fs, args); done || err != nil {
		return err
	}

	host, err := p.app.Hosts.Get(ctx, hostName)
	if err != nil {
		return err
	}

	_, err = p.collector.Containers(ctx, host, p.app.NewTask("Garbage collecting"))
	return err
}
