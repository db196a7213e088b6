package service

import (
	"errors"
	"log/slog"
	"os"
	"time"

	domainerrors "github.com/bluekitapp/bluekit-backend/internal/errors"
	"github.com/bluekitapp/bluekit-backend/internal/project"
	"github.com/bluekitapp/bluekit-backend/internal/validation"
	"github.com/bluekitapp/bluekit-backend/internal/watch"
)

// Channel names the frontend listens on.
const (
	ChannelRegistryChanged    = "project-registry-changed"
	ChannelProjectKitsChanged = "project-kits-changed"
)

// WatchInfo describes an active watch.
type WatchInfo struct {
	CreatedAt time.Time   `json:"created_at"`
	ID        string      `json:"id"`
	Root      string      `json:"root"`
	Mode      string      `json:"mode"`
	Channel   string      `json:"channel"`
	Suffix    string      `json:"suffix,omitempty"`
	Backend   string      `json:"backend"`
	Stats     watch.Stats `json:"stats"`
}

// WatchFileRequest asks for a single-file watch.
type WatchFileRequest struct {
	Path    string `json:"path" validate:"required,abspath"`
	Channel string `json:"channel" validate:"required,max=128"`
}

// WatchDirectoryRequest asks for a recursive directory watch.
type WatchDirectoryRequest struct {
	Path    string `json:"path" validate:"required,abspath"`
	Channel string `json:"channel" validate:"required,max=128"`
	Suffix  string `json:"suffix,omitempty" validate:"omitempty,extension,max=32"`
}

// WatchProjectKitsRequest asks for a watch on a project's kits directory.
type WatchProjectKitsRequest struct {
	ProjectPath string `json:"project_path" validate:"required,abspath"`
}

// WatchService establishes and tracks the watches behind the frontend's
// live views.
type WatchService struct {
	manager   *watch.Manager
	store     *project.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewWatchService creates a new watch service.
func NewWatchService(manager *watch.Manager, store *project.Store, validator *validation.Validator, logger *slog.Logger) *WatchService {
	return &WatchService{
		manager:   manager,
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// WatchRegistry watches the project registry and publishes on
// ChannelRegistryChanged. It is called at startup; callers treat a failure
// as non-fatal.
func (s *WatchService) WatchRegistry() (*WatchInfo, error) {
	h, err := s.manager.EstablishFileWatch(s.store.RegistryPath(), ChannelRegistryChanged)
	if err != nil {
		s.logger.Warn("failed to watch project registry",
			"path", s.store.RegistryPath(),
			"error", err,
		)
		return nil, watchError(err)
	}
	return infoFor(h), nil
}

// WatchProjectKits watches <project>/.bluekit/kits for markdown changes and
// publishes on ChannelProjectKitsChanged. The directory must exist.
func (s *WatchService) WatchProjectKits(req WatchProjectKitsRequest) (*WatchInfo, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	kitsDir := project.KitsDir(req.ProjectPath)
	if _, err := os.Stat(kitsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("kits directory does not exist: %s", kitsDir)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stat %s", kitsDir)
	}

	h, err := s.manager.EstablishTreeWatch(kitsDir, ChannelProjectKitsChanged, watch.DefaultSuffix)
	if err != nil {
		return nil, watchError(err)
	}
	return infoFor(h), nil
}

// WatchFile watches a single file.
func (s *WatchService) WatchFile(req WatchFileRequest) (*WatchInfo, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	h, err := s.manager.EstablishFileWatch(req.Path, req.Channel)
	if err != nil {
		return nil, watchError(err)
	}
	return infoFor(h), nil
}

// WatchDirectory watches a directory tree for files with the given suffix.
func (s *WatchService) WatchDirectory(req WatchDirectoryRequest) (*WatchInfo, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	h, err := s.manager.EstablishTreeWatch(req.Path, req.Channel, req.Suffix)
	if err != nil {
		return nil, watchError(err)
	}
	return infoFor(h), nil
}

// Unwatch stops a watch.
func (s *WatchService) Unwatch(watchID string) error {
	if err := s.manager.Unwatch(watchID); err != nil {
		if errors.Is(err, watch.ErrUnknownWatch) {
			return domainerrors.NotFoundf("watch not found: %s", watchID)
		}
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to stop watch %s", watchID)
	}
	return nil
}

// Get returns one active watch.
func (s *WatchService) Get(watchID string) (*WatchInfo, error) {
	h, ok := s.manager.Handle(watchID)
	if !ok {
		return nil, domainerrors.NotFoundf("watch not found: %s", watchID)
	}
	return infoFor(h), nil
}

// List returns the active watches, oldest first.
func (s *WatchService) List() []WatchInfo {
	handles := s.manager.Handles()
	out := make([]WatchInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, *infoFor(h))
	}
	return out
}

// Backend returns the name of the event source backend in use.
func (s *WatchService) Backend() string {
	return s.manager.Backend()
}

func infoFor(h *watch.Handle) *WatchInfo {
	info := &WatchInfo{
		ID:        h.ID(),
		Root:      h.Target().Root,
		Mode:      h.Target().Mode.String(),
		Channel:   h.Channel(),
		Backend:   h.Backend(),
		CreatedAt: h.CreatedAt(),
		Stats:     h.Stats(),
	}
	if f, ok := h.Filter().(watch.ExtensionMatch); ok {
		info.Suffix = f.Suffix
	}
	return info
}

// watchError converts watch package errors into domain errors.
func watchError(err error) error {
	var setupErr *watch.SetupError
	switch {
	case errors.As(err, &setupErr):
		return domainerrors.Wrap(err, domainerrors.CodeWatchSetup, "failed to establish watch").
			WithDetails(map[string]string{
				"root":    setupErr.Root,
				"backend": setupErr.Backend,
				"reason":  setupErr.Err.Error(),
			})
	case errors.Is(err, watch.ErrClosed):
		return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "watch manager is shutting down")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid watch request")
	}
}
