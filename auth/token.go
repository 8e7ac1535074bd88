package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/AmrMohamed27/threadit-server-sub001/cache"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// TokenTTLSeconds is the streaming-token expiry window. The cache store
// backing the bridge must be constructed with exactly this TTL.
const TokenTTLSeconds = 300

// tokenBytes is the entropy of an issued token (hex-encoded on the wire).
const tokenBytes = 32

// TokenBridge issues short-lived credentials that map a streaming
// handshake to an already-authenticated session. The websocket handshake
// cannot see the session cookie, so the client fetches a token over the
// cookie-authenticated HTTP surface and presents it at connection time.
type TokenBridge struct {
	store  cache.Store
	logger *slog.Logger
}

// NewTokenBridge creates a bridge over the given TTL store.
func NewTokenBridge(store cache.Store, logger *slog.Logger) *TokenBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenBridge{
		store:  store,
		logger: logger.With("component", "token-bridge"),
	}
}

// Issue generates a random token for an authenticated principal and
// stores the token-to-user mapping with the store's TTL.
func (b *TokenBridge) Issue(ctx context.Context, p Principal) (string, error) {
	if !p.Authenticated {
		return "", errors.WrapInvalid(errors.ErrUnauthenticated, "TokenBridge", "Issue",
			"require authenticated session")
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.WrapTransient(err, "TokenBridge", "Issue", "generate token")
	}
	token := hex.EncodeToString(buf)

	value := []byte(strconv.FormatInt(p.UserID, 10))
	if err := b.store.Set(ctx, tokenKey(token), value); err != nil {
		return "", errors.WrapTransient(err, "TokenBridge", "Issue", "store token")
	}

	b.logger.Debug("issued streaming token", "userId", p.UserID)
	return token, nil
}

// Resolve maps a handshake token back to a principal. Missing, expired,
// and malformed tokens all resolve to the anonymous principal without an
// error: unauthenticated streaming connections are permitted to exist and
// are silenced by the subscription filter instead. Resolving does not
// consume the token, so a client may reconnect within the window.
func (b *TokenBridge) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Anonymous(), nil
	}

	value, err := b.store.Get(ctx, tokenKey(token))
	if err != nil {
		if errors.Is(err, errors.ErrKeyNotFound) {
			return Anonymous(), nil
		}
		return Anonymous(), errors.WrapTransient(err, "TokenBridge", "Resolve", "cache lookup")
	}

	userID, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		b.logger.Warn("discarding malformed token entry", "error", err)
		return Anonymous(), nil
	}

	return User(userID), nil
}

func tokenKey(token string) string {
	return "wsauth." + token
}
