package providers

import (
	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
	"github.com/bluekitapp/bluekit-backend/internal/project"
	"github.com/bluekitapp/bluekit-backend/internal/validation"
)

// ProvideProjectStore provides file access to the BlueKit home and projects.
func ProvideProjectStore(i do.Injector) (*project.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return project.NewStore(cfg.Paths.Home, log.Component("project")), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
