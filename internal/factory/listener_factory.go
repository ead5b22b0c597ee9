package factory

import (
	"github.com/mikey/intent-router/internal/adapters/httpapi"
	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/connections"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// ListenerFactory creates the transport surface for the router
type ListenerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewListenerFactory creates a new listener factory
func NewListenerFactory(cfg *config.Config, logger *zap.Logger) *ListenerFactory {
	return &ListenerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRequestListener creates the HTTP listener
func (f *ListenerFactory) CreateRequestListener(
	router *core.RouterService,
	store *cache.Store,
	registry *connections.Registry,
) (ports.RequestListener, error) {
	return httpapi.NewServer(
		f.cfg.GetString("server.listen_address"),
		router,
		store,
		registry,
		f.logger,
	), nil
}
