package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/broker"
	"github.com/AmrMohamed27/threadit-server-sub001/cache"
	"github.com/AmrMohamed27/threadit-server-sub001/event"
	"github.com/AmrMohamed27/threadit-server-sub001/service"
	"github.com/AmrMohamed27/threadit-server-sub001/storage/memory"
)

// fakeSubscriber routes locally published envelopes to subscriptions, in
// place of a NATS connection.
type fakeSubscriber struct {
	mu   sync.Mutex
	subs []fakeSub
}

type fakeSub struct {
	topics  map[event.Topic]bool
	deliver func(*event.Envelope) bool
}

func (f *fakeSubscriber) Subscribe(_ context.Context, topics ...event.Topic) (*broker.Subscription, error) {
	sub, deliver := broker.NewLocalSubscription(16, nil)
	set := make(map[event.Topic]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	f.mu.Lock()
	f.subs = append(f.subs, fakeSub{topics: set, deliver: deliver})
	f.mu.Unlock()
	return sub, nil
}

// Publish implements broker.Publisher by looping envelopes straight back
// into matching subscriptions.
func (f *fakeSubscriber) Publish(_ context.Context, env *event.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.topics[env.Topic] {
			sub.deliver(env)
		}
	}
	return nil
}

type gatewayFixture struct {
	backend  *memory.Backend
	loop     *fakeSubscriber
	sessions *auth.SessionManager
	tokens   *auth.TokenBridge
	server   *Server
	ts       *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	logger := slog.Default()

	backend := memory.New()
	loop := &fakeSubscriber{}
	pub := service.NewPublisher(loop, logger)

	sessionStore := cache.NewMemory(time.Hour)
	t.Cleanup(func() { _ = sessionStore.Close() })
	tokenStore := cache.NewMemory(auth.TokenTTLSeconds * time.Second)
	t.Cleanup(func() { _ = tokenStore.Close() })

	sessions, err := auth.NewSessionManager(sessionStore,
		[]byte("0123456789abcdef0123456789abcdef"), time.Hour, logger)
	require.NoError(t, err)
	tokens := auth.NewTokenBridge(tokenStore, logger)

	resolver := NewResolver(
		service.NewUserService(backend, logger),
		service.NewChatService(backend, pub, logger),
		service.NewMessageService(backend, backend, pub, logger),
		service.NewForumService(backend, pub, logger),
		sessions, tokens, logger,
	)

	server, err := NewServer(Config{BindAddress: "127.0.0.1:0"}, Deps{
		Resolver:   resolver,
		Subscriber: loop,
		Chats:      backend,
		Sessions:   sessions,
		Tokens:     tokens,
		Publisher:  pub,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, server.Setup())

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &gatewayFixture{
		backend:  backend,
		loop:     loop,
		sessions: sessions,
		tokens:   tokens,
		server:   server,
		ts:       ts,
	}
}

// graphql posts a GraphQL request with the given cookies and decodes the
// response body.
func (f *gatewayFixture) graphql(t *testing.T, cookies []*http.Cookie, query string, vars map[string]any) map[string]any {
	t.Helper()

	body, err := json.Marshal(Request{Query: query, Variables: vars})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/graphql", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// register creates an account over GraphQL and returns its session cookie.
func (f *gatewayFixture) register(t *testing.T, username string) (*http.Cookie, int64) {
	t.Helper()

	body, err := json.Marshal(Request{
		Query: `mutation($u: String!, $e: String!, $p: String!) {
			register(username: $u, email: $e, password: $p) {
				user { id username }
				errors { field message }
			}
		}`,
		Variables: map[string]any{
			"u": username,
			"e": username + "@example.com",
			"p": "long enough password",
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(f.ts.URL+"/graphql", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Data struct {
			Register struct {
				User *struct {
					ID int64 `json:"id"`
				} `json:"user"`
				Errors []event.FieldError `json:"errors"`
			} `json:"register"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Empty(t, out.Data.Register.Errors)
	require.NotNil(t, out.Data.Register.User)

	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c, out.Data.Register.User.ID
		}
	}
	t.Fatal("register response carried no session cookie")
	return nil, 0
}
