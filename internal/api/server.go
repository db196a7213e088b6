// Package api exposes the backend's commands over HTTP for the desktop
// webview: huma operations on a chi router, plus the event stream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bluekitapp/bluekit-backend/internal/eventbus"
	"github.com/bluekitapp/bluekit-backend/internal/ratelimit"
	"github.com/bluekitapp/bluekit-backend/internal/service"
)

const (
	eventsPath = "/api/v1/events"

	writeRatePerSecond = 10
	writeBurst         = 20
)

// Services holds the business services the handlers call.
type Services struct {
	Project *service.ProjectService
	Watch   *service.WatchService
}

// Options configures the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	bus      *eventbus.Bus
	router   *chi.Mux
	api      huma.API
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, bus *eventbus.Bus, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services: services,
		bus:      bus,
		router:   chi.NewRouter(),
		limiter:  ratelimit.New(writeRatePerSecond, writeBurst),
		logger:   logger,
	}

	// chi rejects middleware added after the first route, and humachi
	// registers the docs routes immediately.
	s.setupMiddleware(opts.CORSOrigins)

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	humaConfig := huma.DefaultConfig("BlueKit API", version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerProjectRoutes()
	s.registerWatchRoutes()
	s.router.Get(eventsPath, eventbus.NewHandler(bus, logger).ServeHTTP)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	s.router.Use(rateLimitWrites(s.limiter, s.logger))
}
