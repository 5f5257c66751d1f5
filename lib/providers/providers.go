package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/onkernel/bay/cmd/bay/config"
	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/builds"
	"github.com/onkernel/bay/lib/catalog"
	"github.com/onkernel/bay/lib/docker"
	"github.com/onkernel/bay/lib/formation"
	"github.com/onkernel/bay/lib/gc"
	"github.com/onkernel/bay/lib/hooks"
	"github.com/onkernel/bay/lib/logger"
	"github.com/onkernel/bay/lib/otel"
	"github.com/onkernel/bay/lib/plugins"
	"github.com/onkernel/bay/lib/profiles"
	"github.com/onkernel/bay/lib/volumes"
)

// ProvideContext provides a base context
func ProvideContext() context.Context {
	return context.Background()
}

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvideLogger provides a structured logger writing to stderr
func ProvideLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)
	return log
}

// ProvideProfileStore provides the profile store
func ProvideProfileStore(cfg *config.Config) *profiles.Store {
	return profiles.NewStore(cfg.ProfilesDir(), cfg.UserProfilePath())
}

// ProvideCatalog loads the container catalog and applies the active profile
func ProvideCatalog(ctx context.Context, cfg *config.Config, store *profiles.Store, log *slog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogDir, catalog.LoadOptions{ImagePrefix: cfg.ImagePrefix})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	stack, err := store.Stack()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if unknown := profiles.Apply(cat, stack); len(unknown) > 0 {
		log.WarnContext(ctx, "profile names containers missing from the catalog", "containers", unknown)
	}
	return cat, nil
}

// ProvideHosts provides the runtime host table
func ProvideHosts(cfg *config.Config) (*docker.Hosts, func(), error) {
	addrs, err := docker.ParseHosts(cfg.Hosts)
	if err != nil {
		return nil, nil, fmt.Errorf("parse BAY_HOSTS: %w", err)
	}
	hosts := docker.NewHosts(addrs, nil)
	cleanup := func() {
		if err := hosts.Close(); err != nil {
			slog.Warn("failed to close runtime clients", "error", err)
		}
	}
	return hosts, cleanup, nil
}

// ProvideHookRegistry provides the hook registry plugins register into
func ProvideHookRegistry() *hooks.Registry {
	return hooks.NewRegistry()
}

// ProvideApp provides the application context
func ProvideApp(cfg *config.Config, cat *catalog.Catalog, hosts *docker.Hosts, reg *hooks.Registry, log *slog.Logger) *app.App {
	return app.New(cfg, cat, hosts, reg, log, os.Stdout)
}

// ProvideMeterProvider provides the OpenTelemetry meter and tracer provider
func ProvideMeterProvider(ctx context.Context, cfg *config.Config) (*otel.Provider, func(), error) {
	provider, err := otel.Init(ctx, cfg.OtelEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush metrics", "error", err)
		}
	}
	return provider, cleanup, nil
}

// ProvideMeter provides the bay meter
func ProvideMeter(provider *otel.Provider) metric.Meter {
	return provider.Meter()
}

// ProvideTracer provides the bay tracer
func ProvideTracer(provider *otel.Provider) trace.Tracer {
	return provider.Tracer()
}

// ProvideOrchestrator provides the build orchestrator
func ProvideOrchestrator(cfg *config.Config, cat *catalog.Catalog, reg *hooks.Registry, meter metric.Meter, tracer trace.Tracer) (*builds.Orchestrator, error) {
	return builds.NewOrchestrator(builds.Config{
		LogPath:    cfg.BuildLogPath,
		LogMaxSize: cfg.BuildLogMaxSize,
	}, cat, reg, builds.NewDockerBuilderFactory(os.Stdout), meter, tracer)
}

// ProvideIntrospector provides the formation introspector
func ProvideIntrospector(cat *catalog.Catalog) formation.Introspector {
	return formation.NewIntrospector(cat)
}

// ProvideRunner provides the formation runner
func ProvideRunner(introspector formation.Introspector, reg *hooks.Registry, meter metric.Meter) (*formation.Runner, error) {
	return formation.NewRunner(introspector, reg, meter)
}

// ProvideCollector provides the garbage collector
func ProvideCollector() *gc.Collector {
	return gc.NewCollector()
}

// ProvideProvisioner provides the volume provisioner
func ProvideProvisioner(cat *catalog.Catalog, introspector formation.Introspector, runner *formation.Runner, collector *gc.Collector, orchestrator *builds.Orchestrator, meter metric.Meter, tracer trace.Tracer) (*volumes.Provisioner, error) {
	return volumes.NewProvisioner(cat, introspector, runner, collector, orchestrator, meter, tracer)
}

// ProvidePlugins provides the registry of builtin plugins
func ProvidePlugins(orchestrator *builds.Orchestrator, collector *gc.Collector, provisioner *volumes.Provisioner, store *profiles.Store, introspector formation.Introspector, runner *formation.Runner) *plugins.Registry {
	return plugins.NewRegistry(
		builds.NewPlugin(orchestrator),
		gc.NewPlugin(collector),
		volumes.NewPlugin(provisioner),
		profiles.NewPlugin(store, introspector, runner),
	)
}
