// Package cache provides TTL-based caching for JSON-serializable values.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON payloads under string keys with a per-entry TTL.
// Implementations must treat an entry as live only while its expiry is
// strictly in the future, and Set must overwrite unconditionally.
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key with an absolute expiry of now+ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
