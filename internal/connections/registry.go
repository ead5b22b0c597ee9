package connections

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry is an in-memory ConnectionOracle tracking which services
// each user has connected. It is seeded from configuration and can be
// updated at runtime by the request layer.
type Registry struct {
	mu        sync.RWMutex
	connected map[string]map[string]bool // userID -> serviceID set
	logger    *zap.Logger
}

// NewRegistry creates a registry seeded from a user -> services map.
func NewRegistry(seed map[string][]string, logger *zap.Logger) *Registry {
	connected := make(map[string]map[string]bool, len(seed))
	for userID, services := range seed {
		set := make(map[string]bool, len(services))
		for _, service := range services {
			set[normalize(service)] = true
		}
		connected[normalize(userID)] = set
	}

	if len(connected) > 0 && logger != nil {
		logger.Info("Seeded connection registry", zap.Int("users", len(connected)))
	}

	return &Registry{
		connected: connected,
		logger:    logger,
	}
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsConnected reports whether userID has connected serviceID.
func (r *Registry) IsConnected(_ context.Context, userID, serviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services, ok := r.connected[normalize(userID)]
	if !ok {
		return false
	}
	return services[normalize(serviceID)]
}

// Connect records that userID connected serviceID.
func (r *Registry) Connect(userID, serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := normalize(userID)
	if r.connected[user] == nil {
		r.connected[user] = make(map[string]bool)
	}
	r.connected[user][normalize(serviceID)] = true
}

// Disconnect removes a service connection for userID.
func (r *Registry) Disconnect(userID, serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if services, ok := r.connected[normalize(userID)]; ok {
		delete(services, normalize(serviceID))
	}
}
