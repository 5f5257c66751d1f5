package volumes

import (
	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/plugins"
)

// Plugin wires the provisioner into the build and start hooks.
type Plugin struct {
	provisioner *Provisioner
}

// NewPlugin returns the factory for the volumes plugin.
func NewPlugin(p *Provisioner) plugins.Factory {
	return func(*app.App) plugins.Plugin {
		return &Plugin{provisioner: p}
	}
}

func (p *Plugin) Name() string       { return "volumes" }
func (p *Plugin) Provides() []string { return []string{"volumes"} }
func (p *Plugin) Requires() []string { return []string{"build", "gc"} }

func (p *Plugin) Load(a *app.App) error {
	if err := a.Hooks.Register(hooks.PreStart, p.provisioner.PreStart); err != nil {
		return err
	}
	return a.Hooks.Register(hooks.PostBuild, p.provisioner.PostBuild)
}
