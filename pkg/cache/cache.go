// Package cache provides byte-level caching for expensive template work.
// The inspect command and the debug API cache layout reflections keyed by a
// hash of the deck bytes, so re-inspecting an unchanged template is free.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte values under string keys with optional TTL.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// InspectionKey derives the cache key for a deck's layout reflection.
// Identical deck bytes always map to the same key.
func InspectionKey(deck []byte) string {
	return "inspect:" + Hash(deck)
}
