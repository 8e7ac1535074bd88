// Package graphql is the HTTP and websocket surface of the event
// pipeline. Queries and mutations run over plain HTTP with cookie
// sessions; subscriptions run over a graphql-transport-ws websocket
// authenticated by a short-lived streaming token minted at /api/ws-auth.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
	"github.com/AmrMohamed27/threadit-server-sub001/broker"
	"github.com/AmrMohamed27/threadit-server-sub001/errors"
	"github.com/AmrMohamed27/threadit-server-sub001/service"
	"github.com/AmrMohamed27/threadit-server-sub001/storage"
)

// Deps bundles the collaborators the server needs.
type Deps struct {
	Resolver   *Resolver
	Subscriber broker.Subscriber
	Chats      storage.ChatBackend
	Sessions   *auth.SessionManager
	Tokens     *auth.TokenBridge
	Publisher  *service.Publisher
}

// Server manages the HTTP server for the GraphQL endpoint.
type Server struct {
	config     Config
	executor   *Executor
	deps       Deps
	subs       *subscriptionHandler
	metrics    *metrics
	logger     *slog.Logger
	httpServer *http.Server
	mux        *http.ServeMux

	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates the GraphQL HTTP server.
func NewServer(config Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}
	if deps.Resolver == nil || deps.Subscriber == nil || deps.Sessions == nil || deps.Tokens == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer",
			"resolver, subscriber, sessions, and tokens are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	executor, err := NewExecutor(deps.Resolver, logger)
	if err != nil {
		return nil, errors.WrapFatal(err, "Server", "NewServer", "create executor")
	}

	m := newMetrics()
	return &Server{
		config:   config,
		executor: executor,
		deps:     deps,
		subs: newSubscriptionHandler(
			executor, deps.Subscriber, deps.Chats, deps.Chats,
			deps.Tokens, deps.Publisher, m, logger),
		metrics:  m,
		logger:   logger.With("component", "server"),
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}, nil
}

// Setup configures the HTTP routes.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.HandleFunc(s.config.Path, s.handleGraphQL)
	s.mux.HandleFunc("/api/ws-auth", s.handleWSAuth)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	if s.config.EnablePlayground {
		s.mux.Handle("/", playground.Handler("Threadit GraphQL", s.config.Path))
		s.logger.Info("GraphQL playground enabled",
			"url", fmt.Sprintf("http://%s/", s.config.BindAddress))
	}

	handler := sessionMiddleware(s.deps.Sessions, s.mux)
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.BindAddress,
		Handler: handler,
		// No WriteTimeout: it would sever long-lived subscription
		// websockets.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("server configured",
		"address", s.config.BindAddress,
		"path", s.config.Path,
		"timeout", s.config.Timeout())
	return nil
}

// Start runs the HTTP server until the context is cancelled or Stop is
// called. The ready channel is closed once the server begins listening.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("server starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("server stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server gracefully", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("server stopped")
	return nil
}

// Handler returns the fully wired handler, for tests.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.httpServer != nil {
		return s.httpServer.Handler
	}
	return s.mux
}

// handleGraphQL serves queries and mutations over POST, and hands
// websocket upgrades to the subscription transport.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.metrics.wsConnections.Inc()
		defer s.metrics.wsConnections.Dec()
		s.subs.ServeHTTP(w, r)
		return
	}

	s.metrics.requestsTotal.Inc()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.requestsFailed.Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"message": "malformed request body"}},
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout())
	defer cancel()

	resp := s.executor.Execute(ctx, req)
	if len(resp.Errors) > 0 {
		s.metrics.requestsFailed.Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWSAuth mints a short-lived streaming token for the session
// principal. Anonymous requests get 401: the websocket itself fails open,
// but a token is only ever minted for a proven session.
func (s *Server) handleWSAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal := auth.PrincipalFromContext(r.Context())
	if !principal.Authenticated {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	token, err := s.deps.Tokens.Issue(r.Context(), principal)
	if err != nil {
		s.logger.Error("failed to issue streaming token", "userID", principal.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token issuance failed"})
		return
	}

	s.metrics.tokensIssued.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
