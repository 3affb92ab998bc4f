// Package cache provides the layered key-value cache used by providers and
// actions. Values are opaque byte slices with a per-entry time-to-live; a
// tiered composition reads through a fast in-process tier into a persistent
// backing tier.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Cache is the store interface shared by all tiers.
type Cache interface {
	// Get retrieves the value for a key. The second result is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key. A non-positive ttl stores the value
	// without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Keyspace namespaces cache keys. Segments are joined with ':'.
type Keyspace string

// Key builds a namespaced key like "birdeye:price:<addr>".
func (ns Keyspace) Key(parts ...string) string {
	if len(parts) == 0 {
		return string(ns)
	}
	return string(ns) + ":" + strings.Join(parts, ":")
}

// GetJSON reads a key and unmarshals it into T. The second result is false
// when the key is absent, expired, or holds malformed JSON.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var zero T
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false, nil
	}
	return v, true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b, ttl)
}
