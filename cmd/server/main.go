// Package main provides the entry point for the CRIS indexing server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/crisrs/cris-server/internal/di"
	"github.com/crisrs/cris-server/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Handles are shut down in reverse dependency order: jobs and the ops
	// listener first, the index and the database last.
	if err := injector.Shutdown(); err != nil {
		log.WithError(err).Error("Shutdown error")
	}

	log.Info("Server stopped")
}
