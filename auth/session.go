package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AmrMohamed27/threadit-server-sub001/cache"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
)

// DefaultCookieName is the session cookie written by the HTTP transport.
const DefaultCookieName = "threadit_sid"

// sessionRecord is the server-side session payload kept in the cache.
type sessionRecord struct {
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionManager resolves signed session cookies to principals and issues
// new sessions on login. The cookie carries only a random session ID plus
// an HMAC signature; all session state lives server-side in the cache.
type SessionManager struct {
	store      cache.Store
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	logger     *slog.Logger
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) SessionOption {
	return func(m *SessionManager) { m.cookieName = name }
}

// WithSecureCookies marks issued cookies Secure (HTTPS-only deployments).
func WithSecureCookies(secure bool) SessionOption {
	return func(m *SessionManager) { m.secure = secure }
}

// NewSessionManager creates a session manager. maxAge bounds the cookie
// lifetime; the backing store's TTL bounds the server-side record.
func NewSessionManager(store cache.Store, secret []byte, maxAge time.Duration, logger *slog.Logger, opts ...SessionOption) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "SessionManager", "NewSessionManager",
			"session secret must be at least 32 bytes")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &SessionManager{
		store:      store,
		secret:     secret,
		cookieName: DefaultCookieName,
		maxAge:     maxAge,
		logger:     logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create starts a session for userID and writes the signed cookie.
func (m *SessionManager) Create(ctx context.Context, w http.ResponseWriter, userID int64) error {
	sessionID := uuid.NewString()

	record, err := json.Marshal(sessionRecord{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.WrapInvalid(err, "SessionManager", "Create", "encode session")
	}

	if err := m.store.Set(ctx, sessionKey(sessionID), record); err != nil {
		return errors.WrapTransient(err, "SessionManager", "Create", "store session")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.sign(sessionID),
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Debug("session created", "userId", userID)
	return nil
}

// Resolve derives the principal for a request from its session cookie.
// Absent, tampered, or expired cookies all resolve to anonymous.
func (m *SessionManager) Resolve(ctx context.Context, r *http.Request) Principal {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return Anonymous()
	}

	sessionID, ok := m.verify(cookie.Value)
	if !ok {
		return Anonymous()
	}

	value, err := m.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if !errors.Is(err, errors.ErrKeyNotFound) {
			m.logger.Warn("session lookup failed", "error", err)
		}
		return Anonymous()
	}

	var record sessionRecord
	if err := json.Unmarshal(value, &record); err != nil {
		m.logger.Warn("discarding malformed session record", "error", err)
		return Anonymous()
	}

	return User(record.UserID)
}

// Destroy ends the request's session and clears the cookie.
func (m *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if sessionID, ok := m.verify(cookie.Value); ok {
			if err := m.store.Delete(ctx, sessionKey(sessionID)); err != nil {
				m.logger.Warn("session delete failed", "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sign encodes "sessionID.signature" for the cookie value.
func (m *SessionManager) sign(sessionID string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sessionID))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return sessionID + "." + sig
}

// verify checks the cookie signature and returns the session ID.
func (m *SessionManager) verify(value string) (string, bool) {
	sessionID, sig, found := strings.Cut(value, ".")
	if !found || sessionID == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sessionID))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return sessionID, true
}

func sessionKey(sessionID string) string {
	return "session." + sessionID
}
