package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/config"
	"github.com/bluekitapp/bluekit-backend/internal/eventbus"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
	"github.com/bluekitapp/bluekit-backend/internal/watch"
)

// EventBusHandle wraps the event bus with its context for lifecycle management.
type EventBusHandle struct {
	*eventbus.Bus
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Bus.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideEventBus provides the event bus and starts its broadcast loop.
func ProvideEventBus(i do.Injector) (*EventBusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bus := eventbus.New(log.Component("eventbus"))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)

	return &EventBusHandle{Bus: bus, cancel: cancel}, nil
}

// WatchManagerHandle wraps the watch manager with shutdown capability.
type WatchManagerHandle struct {
	*watch.Manager
}

// Shutdown implements do.Shutdownable. It stops every watch before the bus
// goes away so no delivery races the bus shutdown.
func (h *WatchManagerHandle) Shutdown() error {
	return h.Close()
}

// ProvideWatchManager provides the filesystem watch manager publishing to
// the event bus.
func ProvideWatchManager(i do.Injector) (*WatchManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*EventBusHandle](i)

	opts, err := WatchOptions(cfg.Watch)
	if err != nil {
		return nil, err
	}

	manager, err := watch.NewManager(log.Component("watch"), busHandle.Bus, opts)
	if err != nil {
		return nil, fmt.Errorf("create watch manager: %w", err)
	}

	return &WatchManagerHandle{Manager: manager}, nil
}

// WatchOptions converts watch configuration into manager options.
func WatchOptions(cfg config.WatchConfig) (watch.Options, error) {
	overflow, err := watch.ParseOverflow(cfg.Overflow)
	if err != nil {
		return watch.Options{}, err
	}
	return watch.Options{
		Backend:        cfg.Backend,
		QueueSize:      cfg.QueueSize,
		Overflow:       overflow,
		BlockTimeout:   cfg.BlockTimeout,
		Debounce:       cfg.Debounce,
		IgnorePatterns: cfg.IgnorePatterns,
	}, nil
}
