package providers

import (
	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
	"github.com/bluekitapp/bluekit-backend/internal/project"
	"github.com/bluekitapp/bluekit-backend/internal/service"
	"github.com/bluekitapp/bluekit-backend/internal/validation"
)

// ProvideProjectService provides the project file service.
func ProvideProjectService(i do.Injector) (*service.ProjectService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*project.Store](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewProjectService(store, validator, log.Component("project"), cfg.App.Version), nil
}

// ProvideWatchService provides the watch service.
func ProvideWatchService(i do.Injector) (*service.WatchService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	store := do.MustInvoke[*project.Store](i)
	validator := do.MustInvoke[*validation.Validator](i)
	managerHandle := do.MustInvoke[*WatchManagerHandle](i)

	return service.NewWatchService(managerHandle.Manager, store, validator, log.Component("watch")), nil
}
