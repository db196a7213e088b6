// Package main provides the entry point for the BlueKit desktop backend.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/bluekitapp/bluekit-backend/internal/di"
	"github.com/bluekitapp/bluekit-backend/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start backend: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down backend...")

	// The container shuts the HTTP server down first, then the watches,
	// then the event bus.
	if report := injector.Shutdown(); !report.Succeed {
		log.WithError(report).Error("Shutdown error")
	}

	log.Info("Backend stopped")
}
