package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/cache"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// tokenClock drives expiry in token tests without sleeping.
type tokenClock struct {
	now time.Time
}

func (c *tokenClock) Now() time.Time { return c.now }

func newBridge(t *testing.T) (*TokenBridge, *tokenClock, *cache.Memory) {
	t.Helper()
	clock := &tokenClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewMemory(TokenTTLSeconds*time.Second, cache.WithClock(func() time.Time { return clock.now }))
	t.Cleanup(func() { _ = store.Close() })
	return NewTokenBridge(store, nil), clock, store
}

func TestIssueRequiresAuthentication(t *testing.T) {
	bridge, _, _ := newBridge(t)

	_, err := bridge.Issue(context.Background(), Anonymous())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthenticated))
}

func TestIssueAndResolve(t *testing.T) {
	bridge, _, _ := newBridge(t)
	ctx := context.Background()

	token, err := bridge.Issue(ctx, User(42))
	require.NoError(t, err)
	assert.Len(t, token, 64, "32 random bytes hex-encoded")

	p, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, p.Authenticated)
	assert.Equal(t, int64(42), p.UserID)
}

func TestResolveIsIdempotent(t *testing.T) {
	bridge, clock, _ := newBridge(t)
	ctx := context.Background()

	token, err := bridge.Issue(ctx, User(42))
	require.NoError(t, err)

	// Two resolves inside the window yield the same principal; reading
	// must not consume the token or shorten the remaining TTL.
	clock.now = clock.now.Add(100 * time.Second)
	first, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	second, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(42), first.UserID)

	// Still valid just before expiry despite the earlier reads.
	clock.now = clock.now.Add(199 * time.Second)
	p, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	assert.True(t, p.Authenticated)
}

func TestResolveAfterExpiry(t *testing.T) {
	bridge, clock, _ := newBridge(t)
	ctx := context.Background()

	token, err := bridge.Issue(ctx, User(42))
	require.NoError(t, err)

	clock.now = clock.now.Add(301 * time.Second)
	p, err := bridge.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, p.Authenticated, "expired token resolves to anonymous, not an error")
}

func TestResolveUnknownToken(t *testing.T) {
	bridge, _, _ := newBridge(t)

	p, err := bridge.Resolve(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, p.Authenticated)

	p, err = bridge.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, p.Authenticated)
}

func TestTokensAreUnique(t *testing.T) {
	bridge, _, _ := newBridge(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, err := bridge.Issue(ctx, User(1))
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup, "token collision")
		seen[token] = struct{}{}
	}
}
