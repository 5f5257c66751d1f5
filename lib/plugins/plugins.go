// Package plugins loads the units that contribute commands and hooks to bay.
package plugins

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/graph"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
)

// Plugin contributes commands and hooks. Load runs once at startup and must
// only touch process memory.
type Plugin interface {
	Name() string
	Provides() []string
	Requires() []string
	Load(a *app.App) error
}

// Factory instantiates a plugin against the application context.
type Factory func(a *app.App) Plugin

// Registry holds the plugin factories known to the process.
type Registry struct {
	factories []Factory
}

// NewRegistry creates a registry from factories.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// Load instantiates every plugin, checks that each required capability has
// exactly one provider, and calls Load on each plugin with providers before
// their dependents and ties broken by name. The hook registry is closed once
// all plugins are loaded. Nothing is loaded if validation fails.
func (r *Registry) Load(ctx context.Context, a *app.App) ([]Plugin, error) {
	log := logger.FromContext(ctx)

	instances := make([]Plugin, 0, len(r.factories))
	for _, f := range r.factories {
		instances = append(instances, f(a))
	}
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Name() < instances[j].Name()
	})
	for i := 1; i < len(instances); i++ {
		if instances[i].Name() == instances[i-1].Name() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, instances[i].Name())
		}
	}

	order, err := Order(instances)
	if err != nil {
		return nil, err
	}

	for _, p := range order {
		log.DebugContext(ctx, "loading plugin", "plugin", p.Name())
		if err := p.Load(a); err != nil {
			return nil, fmt.Errorf("load plugin %s: %w", p.Name(), err)
		}
	}
	a.Hooks.Close()

	log.DebugContext(ctx, "plugins loaded",
		"plugins", len(order),
		"pre_start_hooks", a.Hooks.Count(hooks.PreStart),
		"post_build_hooks", a.Hooks.Count(hooks.PostBuild))
	return order, nil
}

// Validate checks that every required capability matches exactly one other
// plugin providing it.
func Validate(plugins []Plugin) error {
	for _, p := range plugins {
		for _, capability := range p.Requires() {
			providers := providersOf(plugins, p, capability)
			if len(providers) != 1 {
				return &DependencyError{
					Plugin:     p.Name(),
					Capability: capability,
					Providers: lo.Map(providers, func(q Plugin, _ int) string {
						return q.Name()
					}),
				}
			}
		}
	}
	return nil
}

// Order validates plugins and returns them with every provider ahead of the
// plugins that require it. Plugins must already be sorted by name.
func Order(plugins []Plugin) ([]Plugin, error) {
	if err := Validate(plugins); err != nil {
		return nil, err
	}

	byName := lo.KeyBy(plugins, func(p Plugin) string { return p.Name() })
	names := lo.Map(plugins, func(p Plugin, _ int) string { return p.Name() })

	sorted, err := graph.TopologicalOrder(names, func(name string) []string {
		return lo.FlatMap(byName[name].Requires(), func(capability string, _ int) []string {
			return lo.Map(providersOf(plugins, byName[name], capability), func(q Plugin, _ int) string {
				return q.Name()
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("plugin requirements: %w", err)
	}
	return lo.Map(sorted, func(name string, _ int) Plugin { return byName[name] }), nil
}

// providersOf returns the plugins other than requirer that provide capability.
func providersOf(plugins []Plugin, requirer Plugin, capability string) []Plugin {
	return lo.Filter(plugins, func(p Plugin, _ int) bool {
		return p.Name() != requirer.Name() && lo.Contains(p.Provides(), capability)
	})
}
