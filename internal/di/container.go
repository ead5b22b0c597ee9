package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/connections"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/factory"
	"github.com/mikey/intent-router/internal/logging"
	"github.com/mikey/intent-router/internal/ports"
	"github.com/mikey/intent-router/internal/textproc"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStateFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewRouterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewListenerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *textproc.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register semantic classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.SemanticClassifier, error) {
		return f.CreateSemanticClassifier()
	}); err != nil {
		return nil, err
	}

	// Register state store
	if err := container.Provide(func(f *factory.StateFactory) (ports.StateStore, error) {
		return f.CreateStateStore()
	}); err != nil {
		return nil, err
	}

	// Register cache store
	if err := container.Provide(func(f *factory.CacheFactory, stateStore ports.StateStore) (*cache.Store, error) {
		return f.CreateCacheStore(stateStore)
	}); err != nil {
		return nil, err
	}

	// Register connection registry
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *connections.Registry {
		return connections.NewRegistry(cfg.GetStringMapStringSlice("connections.users"), logger)
	}); err != nil {
		return nil, err
	}

	// Register router service
	if err := container.Provide(func(
		f *factory.RouterFactory,
		store *cache.Store,
		semantic core.SemanticClassifier,
		registry *connections.Registry,
		textProcessor *textproc.TextProcessor,
	) (*core.RouterService, error) {
		return f.CreateRouter(store, semantic, registry, textProcessor)
	}); err != nil {
		return nil, err
	}

	// Register request listener
	if err := container.Provide(func(
		f *factory.ListenerFactory,
		router *core.RouterService,
		store *cache.Store,
		registry *connections.Registry,
	) (ports.RequestListener, error) {
		return f.CreateRequestListener(router, store, registry)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
