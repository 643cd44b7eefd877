// Package middleware provides HTTP middlewares for authentication, logging
// and metrics.
package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophTasks/internal/session"
)

type ctxKey string

const userKey ctxKey = "user"

// SessionResolver resolves the identity bound to a request's session.
type SessionResolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (session.Identity, error)
}

// LoadIdentity resolves the session identity once per request and stores it
// in the request context. Anonymous requests pass through unchanged; a
// lookup failure is a 500.
func LoadIdentity(sessions SessionResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := sessions.Resolve(w, r)
			if err != nil {
				log.Error("resolve session", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser passes only requests that carry an identity; the rest are
// handed to unauthorized.
func RequireUser(unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) == nil {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity session.Identity) context.Context {
	return context.WithValue(ctx, userKey, identity)
}

// IdentityFromContext returns the identity stored by LoadIdentity, or nil.
func IdentityFromContext(ctx context.Context) session.Identity {
	if identity, ok := ctx.Value(userKey).(session.Identity); ok {
		return identity
	}
	return nil
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns 0 if not found.
func GetUserIDFromContext(ctx context.Context) int64 {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.GetID()
	}
	return 0
}
