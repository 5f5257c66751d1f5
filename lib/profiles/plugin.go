package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/gookit/color"

	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/cli"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/formation"
	"github.com/onkernel/bay/lib/graph"
	"github.com/onkernel/bay/lib/plugins"
)

// Plugin contributes the profile, profiles and up commands.
type Plugin struct {
	app          *app.App
	store        *Store
	introspector formation.Introspector
	runner       *formation.Runner
}

// NewPlugin returns the factory for the profiles plugin.
func NewPlugin(store *Store, introspector formation.Introspector, runner *formation.Runner) plugins.Factory {
	return func(a *app.App) plugins.Plugin {
		return &Plugin{app: a, store: store, introspector: introspector, runner: runner}
	}
}

func (p *Plugin) Name() string       { return "profiles" }
func (p *Plugin) Provides() []string { return []string{"profiles", "up"} }
func (p *Plugin) Requires() []string { return nil }

func (p *Plugin) Load(a *app.App) error {
	commands := []*app.Command{
		{Name: "profile", Summary: "Switch to a different profile, or show the active one", Run: p.profile},
		{Name: "profiles", Summary: "List available profiles", Run: p.list},
		{Name: "up", Summary: "Start the profile's default containers", Run: p.up},
	}
	for _, cmd := range commands {
		if err := a.AddCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) profile(ctx context.Context, args []string) error {
	out := p.app.Out
	fs := cli.NewFlagSet("profile", "[name]", out)
	if done, err := cli.Parse(fs, args); done || err != nil {
		return err
	}

	if fs.NArg() == 0 {
		stack, err := p.store.Stack()
		if err != nil {
			return err
		}
		if len(stack) < 2 {
			fmt.Fprintln(out, color.Red.Sprint("No profile selected."))
			return nil
		}
		for i, prof := range stack[1:] {
			if i == 0 {
				fmt.Fprintln(out, prof.Name)
				continue
			}
			fmt.Fprintf(out, "%s↳ %s\n", strings.Repeat("  ", i), prof.Name)
		}
		return nil
	}

	name := fs.Arg(0)
	if err := p.store.Switch(name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Switching to profile %s\n", color.Cyan.Sprint(name))
	return nil
}

func (p *Plugin) list(ctx context.Context, args []string) error {
	out := p.app.Out
	fs := cli.NewFlagSet("profiles", "[options]", out)
	var verbose bool
	cli.Toggle(fs, &verbose, false, []string{"verbose", "v"}, []string{"quiet", "q"}, "show descriptions")
	if done, err := cli.Parse(fs, args); done || err != nil {
		return err
	}

	profiles, corrupted, err := p.store.List()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(out, "%-30s %s\n", "PROFILE", "DESCRIPTION")
	}
	for _, prof := range profiles {
		if verbose {
			fmt.Fprintf(out, "%-30s %s\n", prof.Name, prof.Description)
		} else {
			fmt.Fprintln(out, prof.Name)
		}
	}
	if len(corrupted) > 0 {
		fmt.Fprintln(out, "These profiles are defined but corrupted and cannot be loaded:")
		fmt.Fprintln(out, strings.Join(corrupted, ", "))
	}
	return nil
}

func (p *Plugin) up(ctx context.Context, args []string) error {
	fs := cli.NewFlagSet("up", "[options]", p.app.Out)
	var hostName string
	fs.StringVar(&hostName, "host", docker.DefaultHost, "runtime host to start on")
	fs.StringVar(&hostName, "h", docker.DefaultHost, "runtime host to start on (shorthand)")
	if done, err := cli.Parse(fs, args); done || err != nil {
		return err
	}

	host, err := p.app.Hosts.Get(ctx, hostName)
	if err != nil {
		return err
	}

	target, err := p.introspector.Introspect(ctx, host)
	if err != nil {
		return err
	}
	target, err = UpFormation(p.app.Catalog, target)
	if err != nil {
		return err
	}

	task := p.app.NewTask("Restarting containers")
	if err := p.runner.Run(ctx, host, target, task); err != nil {
		return err
	}
	fmt.Fprintf(p.app.Out, "%d containers running on %s\n", target.Len(), host.Name)
	return nil
}

// UpFormation derives the formation "up" moves to from the current one:
// system instances stay, everything else is replaced by the default-boot
// containers and their runtime dependencies.
func UpFormation(cat *catalog.Catalog, current *formation.Formation) (*formation.Formation, error) {
	target := current.Clone()
	for _, inst := range current.Instances() {
		if !inst.Container.System {
			target.RemoveInstances([]*formation.Instance{inst})
		}
	}

	var boot []*catalog.Container
	for _, con := range cat.All() {
		if cat.Options(con).DefaultBoot {
			boot = append(boot, con)
		}
	}
	withDeps, err := graph.TopologicalOrder(boot, cat.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("runtime dependencies: %w", err)
	}

	for _, con := range withDeps {
		if len(target.ForContainer(con)) > 0 {
			continue
		}
		// Keep the running instance when it is already what we want
		if existing := current.ForContainer(con); len(existing) > 0 {
			if err := target.Add(existing[0]); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := target.AddContainer(con); err != nil {
			return nil, err
		}
	}
	return target, nil
}
