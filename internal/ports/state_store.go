package ports

import (
	"context"
	"time"
)

// PersistedEntry is one cache entry flattened for durable storage.
type PersistedEntry struct {
	Key          string
	Value        []byte
	InsertedAt   time.Time
	ExpiresAt    time.Time
	AccessCount  int64
	LastAccessed time.Time
}

// StateStore mirrors the persisted cache namespace to durable storage.
// Failures are non-fatal: the in-memory cache stays authoritative.
type StateStore interface {
	// Save replaces the stored snapshot with entries.
	Save(ctx context.Context, entries []PersistedEntry) error

	// Load returns the stored snapshot. Expired entries may be
	// included; callers must filter them.
	Load(ctx context.Context) ([]PersistedEntry, error)

	// Close releases the underlying storage handle.
	Close() error
}
