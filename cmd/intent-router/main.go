package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/di"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	listener ports.RequestListener,
	store *cache.Store,
	stateStore ports.StateStore,
	semantic core.SemanticClassifier,
) error {
	defer logger.Sync()

	// Start the listener
	if err := listener.Start(); err != nil {
		logger.Fatal("Failed to start listener", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the listener
	if err := listener.Stop(); err != nil {
		logger.Error("Failed to stop listener", zap.Error(err))
	}

	// Stop the cache sweep
	store.Stop()

	// Close any resources that need closing
	if closer, ok := semantic.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close semantic classifier", zap.Error(err))
		}
	}
	if stateStore != nil {
		if err := stateStore.Close(); err != nil {
			logger.Error("Failed to close state store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
