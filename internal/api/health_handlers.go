package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns backend health with component details",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)

	huma.Register(s.api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/api/v1/ping",
		Summary:     "Ping",
		Description: "Liveness probe used by the desktop shell before it opens the webview",
		Tags:        []string{"Health"},
	}, s.handlePing)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy or unhealthy"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Watches    int                        `json:"watches" doc:"Number of active watches"`
	Listeners  int                        `json:"listeners" doc:"Number of connected event stream clients"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// PingOutput is the ping response.
type PingOutput struct {
	Body struct {
		Message string `json:"message" example:"pong" doc:"Always pong"`
	}
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	watches := s.services.Watch.List()

	components := map[string]ComponentHealth{
		"watch": {
			Status:  "healthy",
			Message: "backend " + s.services.Watch.Backend(),
		},
		"eventbus": {Status: "healthy"},
	}
	overall := "healthy"

	if s.bus.Closed() {
		components["eventbus"] = ComponentHealth{Status: "unhealthy", Message: "event bus is shut down"}
		overall = "unhealthy"
	}

	return &HealthOutput{Body: HealthResponse{
		Status:     overall,
		Components: components,
		Watches:    len(watches),
		Listeners:  s.bus.SubscriberCount(),
	}}, nil
}

func (s *Server) handlePing(_ context.Context, _ *struct{}) (*PingOutput, error) {
	out := &PingOutput{}
	out.Body.Message = "pong"
	return out, nil
}
