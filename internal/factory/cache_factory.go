package factory

import (
	"fmt"

	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// CacheFactory creates the namespaced cache store from configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheStore builds the three-namespace store, wiring the state
// store into the persisted namespace.
func (f *CacheFactory) CreateCacheStore(stateStore ports.StateStore) (*cache.Store, error) {
	sweepFreq, err := f.cfg.GetDuration("cache.sweep_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid cache sweep frequency: %w", err)
	}

	namespaces := make([]cache.NamespaceConfig, 0, 3)
	for _, ns := range []struct {
		name    string
		persist bool
	}{
		{cache.NamespaceResults, false},
		{cache.NamespaceAPIData, false},
		{cache.NamespaceUIState, true},
	} {
		ttl, err := f.cfg.GetDuration("cache." + ns.name + ".ttl")
		if err != nil {
			return nil, fmt.Errorf("invalid TTL for cache namespace %q: %w", ns.name, err)
		}
		namespaces = append(namespaces, cache.NamespaceConfig{
			Name:       ns.name,
			DefaultTTL: ttl,
			MaxEntries: f.cfg.GetInt("cache." + ns.name + ".max_entries"),
			Persist:    ns.persist,
		})
	}

	return cache.NewStore(namespaces, stateStore, sweepFreq, f.logger)
}
