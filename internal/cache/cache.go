// Package cache provides key-value stores with per-entry expiry.
//
// Claim is the only operation that both reads and removes an entry. It is
// atomic in every backend, so when several callers claim the same key at
// most one of them observes the value.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a string key-value store with per-entry TTL.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	// Claim returns the value stored under key and removes the entry in a
	// single step.
	Claim(ctx context.Context, key string) (string, error)
	Close() error
}
