package cache

import (
	"context"
	"time"

	"github.com/AmrMohamed27/threadit-server-sub001/natsclient"
)

// KVStore backs a Store with a JetStream KV bucket. The bucket's TTL is
// enforced server-side, so entries survive process restarts and expire
// even while the server is down.
type KVStore struct {
	bucket *natsclient.TTLBucket
}

// NewKVStore creates or opens the named bucket with the given TTL and
// wraps it as a Store.
func NewKVStore(ctx context.Context, client *natsclient.Client, bucket string, ttl time.Duration) (*KVStore, error) {
	b, err := client.NewTTLBucket(ctx, bucket, ttl)
	if err != nil {
		return nil, err
	}
	return &KVStore{bucket: b}, nil
}

// Set stores a value. The expiry window restarts from this write.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.bucket.Put(ctx, key, value)
}

// Get retrieves a value; expired keys read as missing.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.bucket.Get(ctx, key)
}

// Delete removes a key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.bucket.Delete(ctx, key)
}

var _ Store = (*KVStore)(nil)
