package providers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/api"
	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
	"github.com/bluekitapp/bluekit-backend/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server. The listener is bound here so
// a port conflict fails startup instead of surfacing later in a goroutine.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*EventBusHandle](i)

	services := &api.Services{
		Project: do.MustInvoke[*service.ProjectService](i),
		Watch:   do.MustInvoke[*service.WatchService](i),
	}

	handler := api.NewServer(services, busHandle.Bus, api.Options{
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, log.Component("api"))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		handler.Close()
		return nil, err
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String())

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
