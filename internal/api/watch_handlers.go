package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bluekitapp/bluekit-backend/internal/service"
)

func (s *Server) registerWatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "watchProjectKits",
		Method:        http.MethodPost,
		Path:          "/api/v1/watches/project-kits",
		Summary:       "Watch project kits",
		Description:   "Watches <project>/.bluekit/kits recursively and publishes changed markdown paths on project-kits-changed",
		Tags:          []string{"Watches"},
		DefaultStatus: http.StatusCreated,
	}, s.handleWatchProjectKits)

	huma.Register(s.api, huma.Operation{
		OperationID:   "watchFile",
		Method:        http.MethodPost,
		Path:          "/api/v1/watches/file",
		Summary:       "Watch file",
		Description:   "Watches a single file and publishes a unit signal on the channel whenever it changes",
		Tags:          []string{"Watches"},
		DefaultStatus: http.StatusCreated,
	}, s.handleWatchFile)

	huma.Register(s.api, huma.Operation{
		OperationID:   "watchDirectory",
		Method:        http.MethodPost,
		Path:          "/api/v1/watches/directory",
		Summary:       "Watch directory",
		Description:   "Watches a directory tree and publishes the changed paths with the given extension",
		Tags:          []string{"Watches"},
		DefaultStatus: http.StatusCreated,
	}, s.handleWatchDirectory)

	huma.Register(s.api, huma.Operation{
		OperationID: "listWatches",
		Method:      http.MethodGet,
		Path:        "/api/v1/watches",
		Summary:     "List watches",
		Description: "Returns the active watches, oldest first",
		Tags:        []string{"Watches"},
	}, s.handleListWatches)

	huma.Register(s.api, huma.Operation{
		OperationID: "getWatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/watches/{id}",
		Summary:     "Get watch",
		Description: "Returns an active watch with its delivery counters",
		Tags:        []string{"Watches"},
	}, s.handleGetWatch)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteWatch",
		Method:        http.MethodDelete,
		Path:          "/api/v1/watches/{id}",
		Summary:       "Stop watch",
		Description:   "Stops a watch; no notification is published for it afterwards",
		Tags:          []string{"Watches"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteWatch)
}

// === DTOs ===

// WatchProjectKitsInput wraps the project kits watch request for Huma.
type WatchProjectKitsInput struct {
	Body service.WatchProjectKitsRequest
}

// WatchFileInput wraps the file watch request for Huma.
type WatchFileInput struct {
	Body service.WatchFileRequest
}

// WatchDirectoryInput wraps the directory watch request for Huma.
type WatchDirectoryInput struct {
	Body service.WatchDirectoryRequest
}

// WatchOutput wraps a watch for Huma.
type WatchOutput struct {
	Body service.WatchInfo
}

// ListWatchesResponse lists active watches.
type ListWatchesResponse struct {
	Watches []service.WatchInfo `json:"watches" doc:"Active watches"`
}

// ListWatchesOutput wraps the watch list for Huma.
type ListWatchesOutput struct {
	Body ListWatchesResponse
}

// WatchIDInput identifies a watch.
type WatchIDInput struct {
	ID string `path:"id" doc:"Watch ID"`
}

// === Handlers ===

func (s *Server) handleWatchProjectKits(_ context.Context, in *WatchProjectKitsInput) (*WatchOutput, error) {
	info, err := s.services.Watch.WatchProjectKits(in.Body)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: *info}, nil
}

func (s *Server) handleWatchFile(_ context.Context, in *WatchFileInput) (*WatchOutput, error) {
	info, err := s.services.Watch.WatchFile(in.Body)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: *info}, nil
}

func (s *Server) handleWatchDirectory(_ context.Context, in *WatchDirectoryInput) (*WatchOutput, error) {
	info, err := s.services.Watch.WatchDirectory(in.Body)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: *info}, nil
}

func (s *Server) handleListWatches(_ context.Context, _ *struct{}) (*ListWatchesOutput, error) {
	return &ListWatchesOutput{Body: ListWatchesResponse{Watches: s.services.Watch.List()}}, nil
}

func (s *Server) handleGetWatch(_ context.Context, in *WatchIDInput) (*WatchOutput, error) {
	info, err := s.services.Watch.Get(in.ID)
	if err != nil {
		return nil, err
	}
	return &WatchOutput{Body: *info}, nil
}

func (s *Server) handleDeleteWatch(_ context.Context, in *WatchIDInput) (*struct{}, error) {
	if err := s.services.Watch.Unwatch(in.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
