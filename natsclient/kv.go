package natsclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// TTLBucket wraps a JetStream KV bucket whose entries expire after the
// bucket's configured TTL. Expiry is enforced server-side: a Get after the
// TTL window behaves exactly like a missing key, which is all the token
// bridge needs.
type TTLBucket struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
}

// NewTTLBucket creates or opens a bucket with the given per-bucket TTL.
func (c *Client) NewTTLBucket(ctx context.Context, name string, ttl time.Duration) (*TTLBucket, error) {
	bucket, err := c.KeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket: name,
		TTL:    ttl,
	})
	if err != nil {
		return nil, err
	}

	return &TTLBucket{
		bucket:  bucket,
		timeout: 5 * time.Second,
	}, nil
}

func (b *TTLBucket) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(ctx, b.timeout)
	}
	return ctx, func() {}
}

// Get retrieves a value. Missing and expired keys both return
// errors.ErrKeyNotFound.
func (b *TTLBucket) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	entry, err := b.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "TTLBucket", "Get", fmt.Sprintf("get %s", key))
	}

	return entry.Value(), nil
}

// Put creates or updates a key. The expiry clock restarts from this write.
func (b *TTLBucket) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	if _, err := b.bucket.Put(ctx, key, value); err != nil {
		return errors.WrapTransient(err, "TTLBucket", "Put", fmt.Sprintf("put %s", key))
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (b *TTLBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := b.applyTimeout(ctx)
	defer cancel()

	if err := b.bucket.Delete(ctx, key); err != nil {
		if IsKVNotFoundError(err) {
			return nil
		}
		return errors.WrapTransient(err, "TTLBucket", "Delete", fmt.Sprintf("delete %s", key))
	}
	return nil
}

// IsKVNotFoundError checks if an error indicates a missing (or expired) key
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, errors.ErrKeyNotFound) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") ||
		strings.Contains(errMsg, "10037")
}
