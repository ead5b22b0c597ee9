package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mikey/intent-router/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, configs []NamespaceConfig, state ports.StateStore) *Store {
	t.Helper()
	store, err := NewStore(configs, state, time.Minute, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Stop)
	return store
}

func testNamespaces() []NamespaceConfig {
	return []NamespaceConfig{
		{Name: NamespaceResults, DefaultTTL: time.Hour, MaxEntries: 8},
		{Name: NamespaceAPIData, DefaultTTL: time.Minute, MaxEntries: 4},
		{Name: NamespaceUIState, DefaultTTL: time.Hour, MaxEntries: 4, Persist: true},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t, testNamespaces(), nil)

	t.Run("set then get returns the value", func(t *testing.T) {
		store.Set(NamespaceResults, "greeting", "hello", 0)

		value, ok := store.Get(NamespaceResults, "greeting")
		require.True(t, ok)
		assert.Equal(t, "hello", value)
	})

	t.Run("overwrite replaces the value", func(t *testing.T) {
		store.Set(NamespaceResults, "greeting", "hello", 0)
		store.Set(NamespaceResults, "greeting", "bonjour", 0)

		value, ok := store.Get(NamespaceResults, "greeting")
		require.True(t, ok)
		assert.Equal(t, "bonjour", value)
		assert.Equal(t, 1, store.Size(NamespaceResults))
	})

	t.Run("unknown namespace misses", func(t *testing.T) {
		_, ok := store.Get("nope", "greeting")
		assert.False(t, ok)
	})

	t.Run("namespaces are independent", func(t *testing.T) {
		store.Set(NamespaceResults, "shared-key", "a", 0)
		store.Set(NamespaceAPIData, "shared-key", "b", 0)

		va, _ := store.Get(NamespaceResults, "shared-key")
		vb, _ := store.Get(NamespaceAPIData, "shared-key")
		assert.Equal(t, "a", va)
		assert.Equal(t, "b", vb)
	})
}

func TestStoreExpiry(t *testing.T) {
	store := newTestStore(t, testNamespaces(), nil)

	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set(NamespaceAPIData, "ephemeral", 42, 10*time.Second)
	require.Equal(t, 1, store.Size(NamespaceAPIData))

	t.Run("live before expiry", func(t *testing.T) {
		value, ok := store.Get(NamespaceAPIData, "ephemeral")
		require.True(t, ok)
		assert.Equal(t, 42, value)
	})

	t.Run("purged on access after expiry", func(t *testing.T) {
		now = now.Add(11 * time.Second)

		_, ok := store.Get(NamespaceAPIData, "ephemeral")
		assert.False(t, ok)
		assert.Equal(t, 0, store.Size(NamespaceAPIData), "expired entry should be removed")
	})

	t.Run("sweep purges without reads", func(t *testing.T) {
		store.Set(NamespaceAPIData, "a", 1, 5*time.Second)
		store.Set(NamespaceAPIData, "b", 2, time.Hour)
		now = now.Add(6 * time.Second)

		store.Sweep()

		assert.Equal(t, 1, store.Size(NamespaceAPIData))
		_, ok := store.Get(NamespaceAPIData, "b")
		assert.True(t, ok)
	})
}

func TestStoreEviction(t *testing.T) {
	store := newTestStore(t, []NamespaceConfig{
		{Name: NamespaceResults, DefaultTTL: time.Hour, MaxEntries: 3},
	}, nil)

	now := time.Now()
	store.now = func() time.Time { return now }

	t.Run("evicts the oldest least-accessed entry", func(t *testing.T) {
		store.Set(NamespaceResults, "old-popular", "a", 0)
		for i := 0; i < 20; i++ {
			store.Get(NamespaceResults, "old-popular")
		}

		now = now.Add(10 * time.Minute)
		store.Set(NamespaceResults, "old-quiet", "b", 0)

		now = now.Add(10 * time.Minute)
		store.Set(NamespaceResults, "fresh", "c", 0)

		// At capacity: the next insert evicts exactly one entry.
		now = now.Add(time.Minute)
		store.Set(NamespaceResults, "newcomer", "d", 0)

		assert.Equal(t, 3, store.Size(NamespaceResults))

		_, ok := store.Get(NamespaceResults, "old-quiet")
		assert.False(t, ok, "the unread older entry should be the victim")

		for _, key := range []string{"old-popular", "fresh", "newcomer"} {
			_, ok := store.Get(NamespaceResults, key)
			assert.True(t, ok, "expected %s to survive eviction", key)
		}
	})
}

func TestStoreGetWithRevalidate(t *testing.T) {
	t.Run("miss fetches synchronously", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)

		value, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", value)

		cached, ok := store.Get(NamespaceResults, "k")
		require.True(t, ok)
		assert.Equal(t, "fresh", cached)
	})

	t.Run("miss propagates fetch errors", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)

		_, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			return nil, fmt.Errorf("upstream down")
		})
		require.Error(t, err)
		assert.Equal(t, 0, store.Size(NamespaceResults))
	})

	t.Run("fresh hit does not refetch", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)
		store.Set(NamespaceResults, "k", "old", time.Hour)

		value, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			t.Fatal("fetch must not run for a fresh entry")
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "old", value)
	})

	t.Run("stale hit returns old value and refreshes in background", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)

		now := time.Now()
		var mu sync.Mutex
		store.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

		store.Set(NamespaceResults, "k", "old", 100*time.Second)
		mu.Lock()
		now = now.Add(80 * time.Second) // past 75% of the TTL window
		mu.Unlock()

		fetched := make(chan struct{})
		value, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			defer close(fetched)
			return "new", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "old", value, "stale value must be served immediately")

		<-fetched
		require.Eventually(t, func() bool {
			v, ok := store.Get(NamespaceResults, "k")
			return ok && v == "new"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("panicking background refresh keeps the stale value", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)

		now := time.Now()
		var mu sync.Mutex
		store.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

		store.Set(NamespaceResults, "k", "old", 100*time.Second)
		mu.Lock()
		now = now.Add(80 * time.Second)
		mu.Unlock()

		fetched := make(chan struct{})
		value, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			defer close(fetched)
			panic("classifier stage blew up")
		})
		require.NoError(t, err)
		assert.Equal(t, "old", value, "stale value must be served immediately")

		// The goroutine must absorb the panic rather than crash the
		// process, and the stale entry stays authoritative.
		<-fetched
		require.Eventually(t, func() bool {
			v, ok := store.Get(NamespaceResults, "k")
			return ok && v == "old"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("failed background refresh keeps the stale value", func(t *testing.T) {
		store := newTestStore(t, testNamespaces(), nil)

		now := time.Now()
		var mu sync.Mutex
		store.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

		store.Set(NamespaceResults, "k", "old", 100*time.Second)
		mu.Lock()
		now = now.Add(90 * time.Second)
		mu.Unlock()

		fetched := make(chan struct{})
		value, err := store.GetWithRevalidate(NamespaceResults, "k", func(context.Context) (any, error) {
			defer close(fetched)
			return nil, fmt.Errorf("upstream down")
		})
		require.NoError(t, err)
		assert.Equal(t, "old", value)

		<-fetched
		v, ok := store.Get(NamespaceResults, "k")
		require.True(t, ok)
		assert.Equal(t, "old", v)
	})
}

func TestStoreInvalidate(t *testing.T) {
	store := newTestStore(t, testNamespaces(), nil)

	store.Set(NamespaceResults, "a", 1, 0)
	store.Set(NamespaceResults, "b", 2, 0)

	t.Run("single key", func(t *testing.T) {
		store.Invalidate(NamespaceResults, "a")
		_, ok := store.Get(NamespaceResults, "a")
		assert.False(t, ok)
		_, ok = store.Get(NamespaceResults, "b")
		assert.True(t, ok)
	})

	t.Run("whole namespace", func(t *testing.T) {
		store.Invalidate(NamespaceResults)
		assert.Equal(t, 0, store.Size(NamespaceResults))
	})
}

// fakeStateStore records snapshots in memory.
type fakeStateStore struct {
	mu      sync.Mutex
	saved   [][]ports.PersistedEntry
	preload []ports.PersistedEntry
}

func (f *fakeStateStore) Save(_ context.Context, entries []ports.PersistedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, entries)
	return nil
}

func (f *fakeStateStore) Load(context.Context) ([]ports.PersistedEntry, error) {
	return f.preload, nil
}

func (f *fakeStateStore) Close() error { return nil }

func (f *fakeStateStore) lastSnapshot() []ports.PersistedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func TestStorePersistence(t *testing.T) {
	t.Run("mutating writes mirror the persisted namespace", func(t *testing.T) {
		state := &fakeStateStore{}
		store := newTestStore(t, testNamespaces(), state)

		store.Set(NamespaceUIState, "sidebar", json.RawMessage(`{"open":true}`), 0)

		snapshot := state.lastSnapshot()
		require.Len(t, snapshot, 1)
		assert.Equal(t, "sidebar", snapshot[0].Key)
		assert.JSONEq(t, `{"open":true}`, string(snapshot[0].Value))

		// Other namespaces never touch the state store.
		before := len(state.saved)
		store.Set(NamespaceResults, "r", "v", 0)
		assert.Equal(t, before, len(state.saved))
	})

	t.Run("expired entries are not rehydrated", func(t *testing.T) {
		now := time.Now()
		state := &fakeStateStore{preload: []ports.PersistedEntry{
			{Key: "live", Value: []byte(`"x"`), InsertedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Hour)},
			{Key: "dead", Value: []byte(`"y"`), InsertedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		}}

		store := newTestStore(t, testNamespaces(), state)

		assert.Equal(t, 1, store.Size(NamespaceUIState))
		value, ok := store.Get(NamespaceUIState, "live")
		require.True(t, ok)
		assert.Equal(t, json.RawMessage(`"x"`), value)

		_, ok = store.Get(NamespaceUIState, "dead")
		assert.False(t, ok)
	})
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := newTestStore(t, []NamespaceConfig{
		{Name: NamespaceResults, DefaultTTL: time.Hour, MaxEntries: 64},
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%16)
				store.Set(NamespaceResults, key, n, 0)
				store.Get(NamespaceResults, key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Size(NamespaceResults), 64)
}
