package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// The three cache partitions. Each is independently configured and
// never exceeds its entry cap.
const (
	// NamespaceResults holds classification results (long TTL).
	NamespaceResults = "results"
	// NamespaceAPIData holds short-lived automation and API payloads.
	NamespaceAPIData = "apidata"
	// NamespaceUIState holds persisted UI state, mirrored to durable
	// storage on every mutating write.
	NamespaceUIState = "uistate"
)

// ErrUnknownNamespace is returned when an operation names a namespace
// the store was not configured with.
var ErrUnknownNamespace = errors.New("unknown cache namespace")

// NamespaceConfig configures one cache partition.
type NamespaceConfig struct {
	Name       string
	DefaultTTL time.Duration
	MaxEntries int
	Persist    bool
}

// revalidateThreshold is the fraction of an entry's TTL window after
// which a hit triggers a background refresh.
const revalidateThreshold = 0.75

type entry struct {
	value        any
	insertedAt   time.Time
	expiresAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

type namespace struct {
	cfg     NamespaceConfig
	mu      sync.RWMutex
	entries map[string]*entry
}

// Store is an in-memory namespaced TTL cache with stale-while-revalidate
// reads and score-based eviction. One namespace may be mirrored to a
// ports.StateStore; persistence failures are logged and never propagate.
type Store struct {
	namespaces map[string]*namespace
	logger     *zap.Logger
	state      ports.StateStore
	sweepFreq  time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore creates a cache store with the given namespaces, rehydrates
// the persisted namespace from state (nil disables persistence) and
// starts the background sweep.
func NewStore(configs []NamespaceConfig, state ports.StateStore, sweepFreq time.Duration, logger *zap.Logger) (*Store, error) {
	store := &Store{
		namespaces: make(map[string]*namespace, len(configs)),
		logger:     logger,
		state:      state,
		sweepFreq:  sweepFreq,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}

	for _, cfg := range configs {
		if cfg.DefaultTTL <= 0 {
			return nil, fmt.Errorf("namespace %q: default TTL must be positive", cfg.Name)
		}
		if cfg.MaxEntries <= 0 {
			return nil, fmt.Errorf("namespace %q: max entries must be positive", cfg.Name)
		}
		store.namespaces[cfg.Name] = &namespace{
			cfg:     cfg,
			entries: make(map[string]*entry),
		}
	}

	store.rehydrate()

	go store.startSweepTask()

	return store, nil
}

// DefaultNamespaces returns the standard three-partition layout.
func DefaultNamespaces() []NamespaceConfig {
	return []NamespaceConfig{
		{Name: NamespaceResults, DefaultTTL: 6 * time.Hour, MaxEntries: 512},
		{Name: NamespaceAPIData, DefaultTTL: 5 * time.Minute, MaxEntries: 256},
		{Name: NamespaceUIState, DefaultTTL: 24 * time.Hour, MaxEntries: 128, Persist: true},
	}
}

// Get retrieves a live value. Expired entries are purged on access and
// reported as absent. A hit bumps the entry's access bookkeeping.
func (s *Store) Get(nsName, key string) (any, bool) {
	ns, ok := s.namespaces[nsName]
	if !ok {
		s.logger.Warn("Cache get on unknown namespace", zap.String("namespace", nsName))
		return nil, false
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, ok := ns.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(ns.entries, key)
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = s.now()
	return e.value, true
}

// Set stores value under key, evicting one entry first if the namespace
// is at capacity. A zero ttl means the namespace default.
func (s *Store) Set(nsName, key string, value any, ttl time.Duration) {
	ns, ok := s.namespaces[nsName]
	if !ok {
		s.logger.Warn("Cache set on unknown namespace", zap.String("namespace", nsName))
		return
	}
	if ttl <= 0 {
		ttl = ns.cfg.DefaultTTL
	}

	ns.mu.Lock()
	if _, exists := ns.entries[key]; !exists && len(ns.entries) >= ns.cfg.MaxEntries {
		s.evictOneLocked(ns)
	}
	now := s.now()
	ns.entries[key] = &entry{
		value:        value,
		insertedAt:   now,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
	}
	ns.mu.Unlock()

	s.mirror(ns)
}

// GetWithRevalidate returns the cached value for key. Past 75% of the
// entry's TTL window the stale value is returned immediately while
// fetch refreshes it in the background. On a miss, fetch runs
// synchronously and its error propagates to the caller.
func (s *Store) GetWithRevalidate(nsName, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	ns, ok := s.namespaces[nsName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, nsName)
	}

	ns.mu.Lock()
	e, live := ns.entries[key]
	if live && s.now().After(e.expiresAt) {
		delete(ns.entries, key)
		live = false
	}
	if live {
		e.accessCount++
		e.lastAccessed = s.now()
		value := e.value
		window := e.expiresAt.Sub(e.insertedAt)
		elapsed := s.now().Sub(e.insertedAt)
		ttl := window
		ns.mu.Unlock()

		if elapsed.Seconds() >= revalidateThreshold*window.Seconds() {
			go s.revalidate(nsName, key, ttl, fetch)
		}
		return value, nil
	}
	ns.mu.Unlock()

	value, err := fetch(context.Background())
	if err != nil {
		return nil, fmt.Errorf("cache fetch for %q failed: %w", key, err)
	}
	s.Set(nsName, key, value, 0)
	return value, nil
}

// revalidate refreshes one entry in the background. A failed or
// panicking fetch is logged; the stale value stays authoritative.
func (s *Store) revalidate(nsName, key string, ttl time.Duration, fetch func(ctx context.Context) (any, error)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Background revalidation panicked, keeping stale value",
				zap.String("namespace", nsName),
				zap.String("key", key),
				zap.Any("panic", r))
		}
	}()

	value, err := fetch(context.Background())
	if err != nil {
		s.logger.Warn("Background revalidation failed, keeping stale value",
			zap.String("namespace", nsName),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	s.Set(nsName, key, value, ttl)
}

// Invalidate removes the given keys, or clears the whole namespace when
// no key is given.
func (s *Store) Invalidate(nsName string, keys ...string) {
	ns, ok := s.namespaces[nsName]
	if !ok {
		return
	}

	ns.mu.Lock()
	if len(keys) == 0 {
		ns.entries = make(map[string]*entry)
	} else {
		for _, key := range keys {
			delete(ns.entries, key)
		}
	}
	ns.mu.Unlock()

	s.mirror(ns)
}

// Size reports the number of live-or-expired entries in a namespace.
func (s *Store) Size(nsName string) int {
	ns, ok := s.namespaces[nsName]
	if !ok {
		return 0
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.entries)
}

// evictOneLocked removes the entry with the lowest retention score,
// log(accessCount+1) - ageInHours. Old, rarely read entries go first;
// recency and frequency both raise the score.
func (s *Store) evictOneLocked(ns *namespace) {
	var victim string
	lowest := math.Inf(1)
	now := s.now()

	for key, e := range ns.entries {
		age := now.Sub(e.insertedAt).Hours()
		score := math.Log(float64(e.accessCount)+1) - age
		if score < lowest {
			lowest = score
			victim = key
		}
	}

	if victim != "" {
		delete(ns.entries, victim)
		s.logger.Debug("Evicted cache entry",
			zap.String("namespace", ns.cfg.Name),
			zap.String("key", victim))
	}
}

// Sweep purges expired entries across all namespaces and re-mirrors the
// persisted namespace.
func (s *Store) Sweep() {
	for _, ns := range s.namespaces {
		ns.mu.Lock()
		now := s.now()
		expired := 0
		for key, e := range ns.entries {
			if now.After(e.expiresAt) {
				delete(ns.entries, key)
				expired++
			}
		}
		ns.mu.Unlock()

		if expired > 0 {
			s.logger.Debug("Swept expired cache entries",
				zap.String("namespace", ns.cfg.Name),
				zap.Int("expired_count", expired))
			s.mirror(ns)
		}
	}
}

// startSweepTask runs the fixed-interval sweep until Stop.
func (s *Store) startSweepTask() {
	ticker := time.NewTicker(s.sweepFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background sweep task.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// mirror snapshots a persisted namespace into the state store. Errors
// are logged; the in-memory cache continues unaffected.
func (s *Store) mirror(ns *namespace) {
	if s.state == nil || !ns.cfg.Persist {
		return
	}

	ns.mu.RLock()
	snapshot := make([]ports.PersistedEntry, 0, len(ns.entries))
	for key, e := range ns.entries {
		blob, err := json.Marshal(e.value)
		if err != nil {
			s.logger.Warn("Skipping unserializable cache entry",
				zap.String("namespace", ns.cfg.Name),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		snapshot = append(snapshot, ports.PersistedEntry{
			Key:          key,
			Value:        blob,
			InsertedAt:   e.insertedAt,
			ExpiresAt:    e.expiresAt,
			AccessCount:  e.accessCount,
			LastAccessed: e.lastAccessed,
		})
	}
	ns.mu.RUnlock()

	if err := s.state.Save(context.Background(), snapshot); err != nil {
		s.logger.Error("Failed to mirror cache namespace",
			zap.String("namespace", ns.cfg.Name),
			zap.Error(err))
	}
}

// rehydrate loads the persisted namespace from the state store,
// skipping entries that expired while the process was down.
func (s *Store) rehydrate() {
	if s.state == nil {
		return
	}
	ns, ok := s.namespaces[NamespaceUIState]
	if !ok || !ns.cfg.Persist {
		return
	}

	persisted, err := s.state.Load(context.Background())
	if err != nil {
		s.logger.Error("Failed to load persisted cache state", zap.Error(err))
		return
	}

	now := s.now()
	restored := 0
	ns.mu.Lock()
	for _, p := range persisted {
		if now.After(p.ExpiresAt) {
			continue
		}
		if len(ns.entries) >= ns.cfg.MaxEntries {
			break
		}
		ns.entries[p.Key] = &entry{
			value:        json.RawMessage(p.Value),
			insertedAt:   p.InsertedAt,
			expiresAt:    p.ExpiresAt,
			accessCount:  p.AccessCount,
			lastAccessed: p.LastAccessed,
		}
		restored++
	}
	ns.mu.Unlock()

	if restored > 0 {
		s.logger.Info("Restored persisted cache entries", zap.Int("count", restored))
	}
}
