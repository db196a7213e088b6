package service

import (
	"log/slog"
	"runtime"

	"github.com/bluekitapp/bluekit-backend/internal/project"
	"github.com/bluekitapp/bluekit-backend/internal/validation"
)

// AppInfo identifies the running backend.
type AppInfo struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Home     string `json:"home"`
}

// ProjectRequest names a project directory.
type ProjectRequest struct {
	ProjectPath string `json:"project_path" validate:"required,abspath"`
}

// CopyKitRequest copies a kit from the user store into a project.
type CopyKitRequest struct {
	KitName     string `json:"kit_name" validate:"required,basename"`
	ProjectPath string `json:"project_path" validate:"required,abspath"`
}

// CopyBlueprintRequest copies a blueprint from the user store into a project.
type CopyBlueprintRequest struct {
	BlueprintID string `json:"blueprint_id" validate:"required,basename"`
	ProjectPath string `json:"project_path" validate:"required,abspath"`
}

// BlueprintTaskRequest names a task file of a project blueprint.
type BlueprintTaskRequest struct {
	ProjectPath string `json:"project_path" validate:"required,abspath"`
	BlueprintID string `json:"blueprint_id" validate:"required,basename"`
	TaskFile    string `json:"task_file" validate:"required,basename"`
}

// PathRequest names a file or folder.
type PathRequest struct {
	Path string `json:"path" validate:"required,abspath"`
}

// ProjectService validates requests and reads project files through the
// project store.
type ProjectService struct {
	store     *project.Store
	validator *validation.Validator
	logger    *slog.Logger
	version   string
}

// NewProjectService creates a new project service.
func NewProjectService(store *project.Store, validator *validation.Validator, logger *slog.Logger, version string) *ProjectService {
	return &ProjectService{
		store:     store,
		validator: validator,
		logger:    logger,
		version:   version,
	}
}

// AppInfo returns version and platform information.
func (s *ProjectService) AppInfo() AppInfo {
	return AppInfo{
		Name:     "bluekit",
		Version:  s.version,
		Platform: runtime.GOOS,
		Home:     s.store.Home(),
	}
}

// Registry returns the decoded project registry.
func (s *ProjectService) Registry() (any, error) {
	return s.store.ReadRegistry()
}

// Kits lists the project's kit files.
func (s *ProjectService) Kits(req ProjectRequest) ([]string, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.store.ListKits(req.ProjectPath)
}

// Scrapbook lists the project's scrapbook files.
func (s *ProjectService) Scrapbook(req ProjectRequest) ([]string, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.store.ListScrapbook(req.ProjectPath)
}

// Diagrams lists the project's diagram files.
func (s *ProjectService) Diagrams(req ProjectRequest) ([]string, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.store.ListDiagrams(req.ProjectPath)
}

// Blueprints lists the project's blueprints.
func (s *ProjectService) Blueprints(req ProjectRequest) ([]string, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.store.ListBlueprints(req.ProjectPath)
}

// BlueprintTask returns the contents of a blueprint task file.
func (s *ProjectService) BlueprintTask(req BlueprintTaskRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}
	return s.store.ReadBlueprintTask(req.ProjectPath, req.BlueprintID, req.TaskFile)
}

// MarkdownFiles lists the markdown files in a folder.
func (s *ProjectService) MarkdownFiles(req PathRequest) ([]string, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.store.ListMarkdownFiles(req.Path)
}

// ReadFile returns the contents of a file.
func (s *ProjectService) ReadFile(req PathRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}
	return s.store.ReadFile(req.Path)
}

// CopyKit copies a kit into a project and returns the destination path.
func (s *ProjectService) CopyKit(req CopyKitRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}
	return s.store.CopyKit(req.KitName, req.ProjectPath)
}

// CopyBlueprint copies a blueprint into a project and returns the
// destination directory.
func (s *ProjectService) CopyBlueprint(req CopyBlueprintRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}
	return s.store.CopyBlueprint(req.BlueprintID, req.ProjectPath)
}
