// Package cache defines the result-cache contract the engine depends on and
// provides a Redis-backed implementation plus an in-memory one for tests and
// single-process deployments.
//
// The cache is the engine's only shared mutable resource. Failure semantics
// are deliberately soft: the engine treats any error from Get as a miss and
// any error from Set or Invalidate as a logged no-op — a broken cache slows
// requests down, it never fails them.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the content-addressed result cache. Values are opaque byte slices
// (the engine stores versioned JSON envelopes). Implementations must be safe
// for concurrent use; concurrent computes for the same key are acceptable
// (last write wins).
type Cache interface {
	// Get returns the value for key, or ErrMiss if absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes every key matching the glob pattern, e.g.
	// "prediction:*". It must tolerate racing with in-flight reads.
	Invalidate(ctx context.Context, pattern string) error
}
