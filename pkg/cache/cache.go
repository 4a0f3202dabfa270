// Package cache provides the key-value cache backing embeddings, mental
// state, and session context. The production implementation is Redis; an
// in-memory implementation exists for tests and for running without Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store is closed")

// Store is a string key-value store with per-key TTLs.
//
// Get returns found=false for missing or expired keys. A nil error with
// found=false is a normal miss, not a failure.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
