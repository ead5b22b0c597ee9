package factory

import (
	"fmt"

	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/classifier"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/connections"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
	"go.uber.org/zap"
)

// RouterFactory assembles the router service from its stages
type RouterFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRouterFactory creates a new router factory
func NewRouterFactory(cfg *config.Config, logger *zap.Logger) *RouterFactory {
	return &RouterFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRouter wires cache, pattern matcher, keyword classifier and the
// semantic classifier into a RouterService.
func (f *RouterFactory) CreateRouter(
	store *cache.Store,
	semantic core.SemanticClassifier,
	registry *connections.Registry,
	textProcessor *textproc.TextProcessor,
) (*core.RouterService, error) {
	mlTimeout, err := f.cfg.GetDuration("router.ml_timeout")
	if err != nil {
		return nil, fmt.Errorf("invalid router ml timeout: %w", err)
	}

	patterns := classifier.NewPatternMatcher(classifier.DefaultTemplates(), f.logger)
	keywords := classifier.NewKeywordClassifier(textProcessor, f.logger)

	// A nil *Registry must stay a nil interface inside the router.
	var oracle core.ConnectionOracle
	if registry != nil {
		oracle = registry
	}

	return core.NewRouterService(
		store,
		patterns,
		keywords,
		semantic,
		oracle,
		textProcessor,
		f.logger,
		cache.NamespaceResults,
		cache.NamespaceAPIData,
		mlTimeout,
	), nil
}
