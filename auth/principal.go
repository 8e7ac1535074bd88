// Package auth holds the identity pieces of the event pipeline: the
// request/connection principal, the cookie session manager used by the
// HTTP transport, and the token bridge that authenticates streaming
// connections outside the cookie domain.
package auth

import "context"

// Principal is the authenticated identity attached to one request or one
// streaming connection. It is immutable for that scope and never persisted
// beyond it. The zero value is anonymous.
type Principal struct {
	UserID        int64
	Authenticated bool
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// User returns a principal for the given user.
func User(id int64) Principal {
	return Principal{UserID: id, Authenticated: true}
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal. Context builders
// call this exactly once per request or connection; nothing downstream
// mutates it.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal, defaulting to anonymous.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}
