// Package cache provides session-scoped storage for API payloads and the
// ETag validator tokens used to revalidate them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by backends when a key has no value
	ErrNotFound = errors.New("cache entry not found")

	// ErrQuotaExceeded is returned by backends that refuse a write because
	// the storage limit would be exceeded
	ErrQuotaExceeded = errors.New("cache quota exceeded")

	// ErrPurgeUnsupported is returned by Store.Purge when the backend
	// cannot drop everything at once
	ErrPurgeUnsupported = errors.New("cache backend does not support purge")
)

// Entry represents a cached payload with metadata
type Entry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// Backend is raw byte storage for cache values. Implementations must be
// safe for concurrent use; writes to the same key are last-write-wins.
type Backend interface {
	// Get returns the stored bytes and true, or false when the key is absent.
	// A non-nil error means the backend itself failed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing anything already there
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by backends that can drop every key they own
type Purger interface {
	Purge(ctx context.Context) error
}
