// Package providers contains dependency injection providers for the BlueKit backend.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting BlueKit backend",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"home", cfg.Paths.Home,
		"settings_file", cfg.Paths.SettingsFile,
	)

	return log, nil
}
