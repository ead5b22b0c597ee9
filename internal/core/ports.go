package core

import (
	"context"
	"time"
)

// SemanticClassifier defines the interface for the external LLM-backed
// classifier used when keyword scoring is not confident enough.
type SemanticClassifier interface {
	// ClassifyText assigns text to one of the allowed categories.
	ClassifyText(ctx context.Context, text string, allowed []Category) (*SemanticResult, error)
}

// PatternMatcher detects automation commands syntactically.
type PatternMatcher interface {
	// Match returns the first template matching text, or nil when the
	// text is not an automation command.
	Match(text string) *AutomationMatch

	// Validate reports required parameters the match failed to capture.
	Validate(match *AutomationMatch) *ValidationError
}

// KeywordClassifier scores text against the fixed categories using
// keyword and stem counts.
type KeywordClassifier interface {
	// Classify returns the best-scoring category, or ok=false when no
	// keyword matched at all.
	Classify(text string) (result *ClassificationResult, ok bool)
}

// ConnectionOracle reports whether a user has connected a given service.
type ConnectionOracle interface {
	IsConnected(ctx context.Context, userID, serviceID string) bool
}

// Cache is the namespaced TTL store shared by all classification and
// detection call sites.
type Cache interface {
	// Get retrieves a live value. Expired entries are treated as absent.
	Get(namespace, key string) (any, bool)

	// Set stores value under key. A zero ttl means the namespace default.
	Set(namespace, key string, value any, ttl time.Duration)

	// GetWithRevalidate returns the cached value, refreshing it in the
	// background once it is close to expiry. On a miss, fetch runs
	// synchronously and its error propagates.
	GetWithRevalidate(namespace, key string, fetch func(ctx context.Context) (any, error)) (any, error)

	// Invalidate removes the given keys, or the whole namespace when no
	// key is given.
	Invalidate(namespace string, keys ...string)
}
