package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bluekitapp/bluekit-backend/internal/service"
)

func (s *Server) registerProjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAppInfo",
		Method:      http.MethodGet,
		Path:        "/api/v1/app",
		Summary:     "App info",
		Description: "Returns the backend version, platform and home directory",
		Tags:        []string{"App"},
	}, s.handleGetAppInfo)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRegistry",
		Method:      http.MethodGet,
		Path:        "/api/v1/registry",
		Summary:     "Project registry",
		Description: "Returns the decoded project registry, or an empty object when none exists",
		Tags:        []string{"Projects"},
	}, s.handleGetRegistry)

	listings := []struct {
		id, path, summary string
		list              func(service.ProjectRequest) ([]string, error)
	}{
		{"listKits", "/api/v1/projects/kits", "List project kits", s.services.Project.Kits},
		{"listScrapbook", "/api/v1/projects/scrapbook", "List project scrapbook", s.services.Project.Scrapbook},
		{"listDiagrams", "/api/v1/projects/diagrams", "List project diagrams", s.services.Project.Diagrams},
		{"listBlueprints", "/api/v1/projects/blueprints", "List project blueprints", s.services.Project.Blueprints},
	}
	for _, l := range listings {
		list := l.list
		huma.Register(s.api, huma.Operation{
			OperationID: l.id,
			Method:      http.MethodGet,
			Path:        l.path,
			Summary:     l.summary,
			Description: "Returns entry names sorted by name; a missing directory yields an empty list",
			Tags:        []string{"Projects"},
		}, func(_ context.Context, in *ProjectInput) (*NamesOutput, error) {
			names, err := list(service.ProjectRequest{ProjectPath: in.ProjectPath})
			if err != nil {
				return nil, err
			}
			return &NamesOutput{Body: NamesResponse{Names: names}}, nil
		})
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "getBlueprintTask",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/blueprints/task",
		Summary:     "Read blueprint task",
		Description: "Returns the contents of a task file inside a project blueprint",
		Tags:        []string{"Projects"},
	}, s.handleGetBlueprintTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMarkdownFiles",
		Method:      http.MethodGet,
		Path:        "/api/v1/folders/markdown",
		Summary:     "List markdown files",
		Description: "Returns the .md files directly inside a folder",
		Tags:        []string{"Files"},
	}, s.handleListMarkdownFiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "readFile",
		Method:      http.MethodGet,
		Path:        "/api/v1/files",
		Summary:     "Read file",
		Description: "Returns the contents of a file as text",
		Tags:        []string{"Files"},
	}, s.handleReadFile)

	huma.Register(s.api, huma.Operation{
		OperationID:   "copyKit",
		Method:        http.MethodPost,
		Path:          "/api/v1/kits/copy",
		Summary:       "Copy kit into project",
		Description:   "Copies a kit from the user kit store into the project's kits directory",
		Tags:          []string{"Projects"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCopyKit)

	huma.Register(s.api, huma.Operation{
		OperationID:   "copyBlueprint",
		Method:        http.MethodPost,
		Path:          "/api/v1/blueprints/copy",
		Summary:       "Copy blueprint into project",
		Description:   "Copies a blueprint directory from the user store into the project",
		Tags:          []string{"Projects"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCopyBlueprint)
}

// === DTOs ===

// AppInfoOutput wraps app info for Huma.
type AppInfoOutput struct {
	Body service.AppInfo
}

// RegistryOutput wraps the raw registry document.
type RegistryOutput struct {
	Body any
}

// ProjectInput names a project directory.
type ProjectInput struct {
	ProjectPath string `query:"project_path" required:"true" doc:"Absolute project directory"`
}

// NamesResponse lists entry names.
type NamesResponse struct {
	Names []string `json:"names" doc:"Entry names, sorted"`
}

// NamesOutput wraps a names listing for Huma.
type NamesOutput struct {
	Body NamesResponse
}

// BlueprintTaskInput names a blueprint task file.
type BlueprintTaskInput struct {
	ProjectPath string `query:"project_path" required:"true" doc:"Absolute project directory"`
	BlueprintID string `query:"blueprint_id" required:"true" doc:"Blueprint directory name"`
	TaskFile    string `query:"task_file" required:"true" doc:"Task file name"`
}

// PathInput names a file or folder.
type PathInput struct {
	Path string `query:"path" required:"true" doc:"Absolute path"`
}

// ContentResponse carries file contents.
type ContentResponse struct {
	Path    string `json:"path" doc:"File that was read"`
	Content string `json:"content" doc:"File contents"`
}

// ContentOutput wraps file contents for Huma.
type ContentOutput struct {
	Body ContentResponse
}

// CopyKitInput wraps the copy kit request for Huma.
type CopyKitInput struct {
	Body service.CopyKitRequest
}

// CopyBlueprintInput wraps the copy blueprint request for Huma.
type CopyBlueprintInput struct {
	Body service.CopyBlueprintRequest
}

// CopyResponse reports where a copy landed.
type CopyResponse struct {
	Path string `json:"path" doc:"Destination path"`
}

// CopyOutput wraps a copy result for Huma.
type CopyOutput struct {
	Body CopyResponse
}

// === Handlers ===

func (s *Server) handleGetAppInfo(_ context.Context, _ *struct{}) (*AppInfoOutput, error) {
	return &AppInfoOutput{Body: s.services.Project.AppInfo()}, nil
}

func (s *Server) handleGetRegistry(_ context.Context, _ *struct{}) (*RegistryOutput, error) {
	registry, err := s.services.Project.Registry()
	if err != nil {
		return nil, err
	}
	return &RegistryOutput{Body: registry}, nil
}

func (s *Server) handleGetBlueprintTask(_ context.Context, in *BlueprintTaskInput) (*ContentOutput, error) {
	content, err := s.services.Project.BlueprintTask(service.BlueprintTaskRequest{
		ProjectPath: in.ProjectPath,
		BlueprintID: in.BlueprintID,
		TaskFile:    in.TaskFile,
	})
	if err != nil {
		return nil, err
	}
	return &ContentOutput{Body: ContentResponse{Path: in.TaskFile, Content: content}}, nil
}

func (s *Server) handleListMarkdownFiles(_ context.Context, in *PathInput) (*NamesOutput, error) {
	names, err := s.services.Project.MarkdownFiles(service.PathRequest{Path: in.Path})
	if err != nil {
		return nil, err
	}
	return &NamesOutput{Body: NamesResponse{Names: names}}, nil
}

func (s *Server) handleReadFile(_ context.Context, in *PathInput) (*ContentOutput, error) {
	content, err := s.services.Project.ReadFile(service.PathRequest{Path: in.Path})
	if err != nil {
		return nil, err
	}
	return &ContentOutput{Body: ContentResponse{Path: in.Path, Content: content}}, nil
}

func (s *Server) handleCopyKit(_ context.Context, in *CopyKitInput) (*CopyOutput, error) {
	dst, err := s.services.Project.CopyKit(in.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("kit copied", "kit", in.Body.KitName, "project", in.Body.ProjectPath)
	return &CopyOutput{Body: CopyResponse{Path: dst}}, nil
}

func (s *Server) handleCopyBlueprint(_ context.Context, in *CopyBlueprintInput) (*CopyOutput, error) {
	dst, err := s.services.Project.CopyBlueprint(in.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("blueprint copied", "blueprint", in.Body.BlueprintID, "project", in.Body.ProjectPath)
	return &CopyOutput{Body: CopyResponse{Path: dst}}, nil
}
