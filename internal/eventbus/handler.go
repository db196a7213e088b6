package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	heartbeatInterval = 30 * time.Second
	writeDeadline     = 60 * time.Second
)

// Handler streams bus events as Server-Sent Events. Clients pick channels
// with repeated ?channel= query parameters; none means every channel.
type Handler struct {
	bus       *Bus
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(bus *Bus, logger *slog.Logger) *Handler {
	return &Handler{
		bus:       bus,
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	sub, err := h.bus.Subscribe(r.URL.Query()["channel"]...)
	if err != nil {
		h.logger.Error("failed to register subscriber", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusServiceUnavailable)
		return
	}
	defer h.bus.Unsubscribe(sub.ID)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		return
	}

	subLogger := h.logger.With(slog.String("subscriber_id", sub.ID))

	if err := h.send(w, rc, ChannelConnected, "", map[string]any{
		"subscriber_id": sub.ID,
		"channels":      sub.Channels(),
	}); err != nil {
		subLogger.Warn("failed to send connection message", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				subLogger.Info("subscriber closed by bus")
				return
			}
			if err := h.send(w, rc, event.Channel, event.ID, event); err != nil {
				subLogger.Info("client disconnected during send")
				return
			}

		case <-ticker.C:
			hb := NewHeartbeatEvent()
			if err := h.send(w, rc, hb.Channel, hb.ID, hb); err != nil {
				subLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-sub.Done:
			subLogger.Info("subscriber closed by bus")
			return

		case <-ctx.Done():
			subLogger.Info("client context canceled")
			return
		}
	}
}

// send writes one SSE frame and flushes it.
func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, name, eventID string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return err
	}
	if eventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", eventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}

	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
