// Package app holds the application context shared by every plugin: the
// catalog, the runtime hosts, the hook registry and the command table.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/onkernel/bay/cmd/bay/config"
	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/tasks"
)

// Command is a CLI subcommand contributed by a plugin.
type Command struct {
	Name    string
	Summary string
	Run     func(ctx context.Context, args []string) error
}

// App is created once per process and passed to every plugin.
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Hosts   *docker.Hosts
	Hooks   *hooks.Registry
	Logger  *slog.Logger
	Out     io.Writer
	Err     io.Writer

	commands map[string]*Command
	aliases  map[string]string
}

// New creates the application context. Err defaults to stderr.
func New(cfg *config.Config, cat *catalog.Catalog, hosts *docker.Hosts, reg *hooks.Registry, log *slog.Logger, out io.Writer) *App {
	return &App{
		Config:   cfg,
		Catalog:  cat,
		Hosts:    hosts,
		Hooks:    reg,
		Logger:   log,
		Out:      out,
		Err:      os.Stderr,
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// AddCommand registers cmd under its name.
func (a *App) AddCommand(cmd *Command) error {
	if _, ok := a.commands[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	if _, ok := a.aliases[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	a.commands[cmd.Name] = cmd
	return nil
}

// AddAlias makes alias run the command called target.
func (a *App) AddAlias(alias, target string) error {
	if _, ok := a.commands[target]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, target)
	}
	if _, ok := a.commands[alias]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, alias)
	}
	if _, ok := a.aliases[alias]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, alias)
	}
	a.aliases[alias] = target
	return nil
}

// Command resolves name, following aliases.
func (a *App) Command(name string) (*Command, error) {
	if target, ok := a.aliases[name]; ok {
		name = target
	}
	cmd, ok := a.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// Commands returns every registered command ordered by name.
func (a *App) Commands() []*Command {
	out := make([]*Command, 0, len(a.commands))
	for _, cmd := range a.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewTask starts a root progress task on the application output.
func (a *App) NewTask(label string) *tasks.Task {
	return tasks.New(a.Out, label)
}

// Run dispatches args[0] to its command. With no arguments, or "help", it
// prints the command list.
func (a *App) Run(ctx context.Context, args []string) error {
	ctx = logger.WithLogger(ctx, a.Logger)

	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		a.PrintHelp()
		return nil
	}

	cmd, err := a.Command(args[0])
	if err != nil {
		return err
	}

	a.Logger.DebugContext(ctx, "running command", "command", cmd.Name, "args", args[1:])
	return cmd.Run(ctx, args[1:])
}

// PrintHelp writes the command list to the application output.
func (a *App) PrintHelp() {
	fmt.Fprintln(a.Out, "Usage:\n  bay <command> [options] [args]\n\nCommands:")
	for _, cmd := range a.Commands() {
		var aliases []string
		for alias, target := range a.aliases {
			if target == cmd.Name {
				aliases = append(aliases, alias)
			}
		}
		sort.Strings(aliases)
		name := cmd.Name
		if len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(a.Out, "  %-24s %s\n", name, cmd.Summary)
	}
}
