// Package di provides dependency injection configuration for the BlueKit backend.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/di/providers"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
	"github.com/bluekitapp/bluekit-backend/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage and events
	do.Provide(injector, providers.ProvideProjectStore)
	do.Provide(injector, providers.ProvideEventBus)
	do.Provide(injector, providers.ProvideWatchManager)

	// Business services
	do.Provide(injector, providers.ProvideProjectService)
	do.Provide(injector, providers.ProvideWatchService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the startup watches.
// Returns the first provider error instead of panicking.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.EventBusHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.WatchManagerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	cfg := do.MustInvoke[*config.Config](injector)
	if cfg.Watch.RegistryOnStart {
		log := do.MustInvoke[*logger.Logger](injector)
		watchService := do.MustInvoke[*service.WatchService](injector)

		// The registry may not exist until the first project is added.
		if info, err := watchService.WatchRegistry(); err == nil {
			log.Info("Watching project registry", "path", info.Root, "watch_id", info.ID)
		}
	}

	return nil
}
