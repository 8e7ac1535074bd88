package graphql

import (
	"context"
	"net/http"

	"github.com/AmrMohamed27/threadit-server-sub001/auth"
)

type responseWriterKey struct{}
type requestKey struct{}

// withResponseWriter stashes the response writer so login and logout
// resolvers can set session cookies.
func withResponseWriter(ctx context.Context, w http.ResponseWriter) context.Context {
	return context.WithValue(ctx, responseWriterKey{}, w)
}

// responseWriterFromContext returns the response writer for the current
// HTTP request, or nil on a websocket connection.
func responseWriterFromContext(ctx context.Context) http.ResponseWriter {
	w, _ := ctx.Value(responseWriterKey{}).(http.ResponseWriter)
	return w
}

// requestFromContext returns the originating HTTP request, or nil on a
// websocket connection.
func requestFromContext(ctx context.Context) *http.Request {
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	return r
}

// sessionMiddleware resolves the session cookie into a principal on every
// request. Resolution always succeeds: a missing, tampered, or expired
// session yields the anonymous principal and the request proceeds.
func sessionMiddleware(sessions *auth.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := sessions.Resolve(r.Context(), r)
		ctx := auth.WithPrincipal(r.Context(), principal)
		ctx = withResponseWriter(ctx, w)
		ctx = context.WithValue(ctx, requestKey{}, r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
