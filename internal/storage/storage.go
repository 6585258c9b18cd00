package storage

import (
	"context"
	"time"
)

// Storage abstracts the backend holding advisory-server counter state,
// chiefly the per-client request counters behind the API rate limit.
// Implementations must be safe for concurrent use.
//
// Counter values written by Increment are decimal strings, so a Get on a
// counter key returns the same bytes from every backend.
type Storage interface {
	// Get retrieves the stored value for a key.
	// Returns nil, nil if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value for a key with an expiration duration.
	// If exp is 0, the key does not expire.
	Set(ctx context.Context, key string, value []byte, exp time.Duration) error

	// Increment atomically increments a counter for a key, returning the new
	// value. A missing or expired key starts from zero. exp sets the key's
	// expiration and is only applied on creation.
	Increment(ctx context.Context, key string, delta int64, exp time.Duration) (int64, error)

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
