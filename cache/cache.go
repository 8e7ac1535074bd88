// Package cache provides the TTL key-value store used for streaming
// tokens and server-side sessions. The store's TTL is fixed per store,
// not per key: every entry written through one store expires after the
// same window, which matches how both consumers use it.
package cache

import (
	"context"
)

// Store is a key-value store whose entries expire after the store's TTL.
// Get returns errors.ErrKeyNotFound for missing and expired keys alike;
// callers cannot distinguish the two, and must not need to.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
