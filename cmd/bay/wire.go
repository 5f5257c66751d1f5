//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	"github.com/onkernel/bay/cmd/bay/config"
	"github.com/onkernel/bay/lib/app"
	"github.com/onkernel/bay/lib/otel"
	"github.com/onkernel/bay/lib/plugins"
	"github.com/onkernel/bay/lib/providers"
)

// application struct to hold initialized components
type application struct {
	Ctx     context.Context
	Logger  *slog.Logger
	Config  *config.Config
	App     *app.App
	Plugins *plugins.Registry
	Metrics *otel.Provider
}

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideContext,
		providers.ProvideConfig,
		providers.ProvideLogger,
		providers.ProvideProfileStore,
		providers.ProvideCatalog,
		providers.ProvideHosts,
		providers.ProvideHookRegistry,
		providers.ProvideApp,
		providers.ProvideMeterProvider,
		providers.ProvideMeter,
		providers.ProvideTracer,
		providers.ProvideOrchestrator,
		providers.ProvideIntrospector,
		providers.ProvideRunner,
		providers.ProvideCollector,
		providers.ProvideProvisioner,
		providers.ProvidePlugins,
		wire.Struct(new(application), "*"),
	))
}
