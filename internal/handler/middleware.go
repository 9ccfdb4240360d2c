package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

type contextKey string

const sessionContextKey contextKey = "session"

const sessionCookie = "auth_token"

// SessionFromContext returns the request's session store, or nil when no
// auth middleware ran.
func SessionFromContext(ctx context.Context) *service.SessionStore {
	store, _ := ctx.Value(sessionContextKey).(*service.SessionStore)
	return store
}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	if store := SessionFromContext(ctx); store != nil {
		return store.Identity()
	}
	return nil
}

// RequireAuth is middleware that protects routes requiring authentication.
// It attaches a session store for the auth_token cookie to the request
// context and answers 401 unless the store ends up authenticated. The
// store follows the session for as long as the request runs, so a
// sign-out elsewhere is seen by long-lived streams.
func RequireAuth(gateway *service.SessionGateway, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := attachSession(gateway, r)
		defer store.Close()

		if store.Current().Status != service.SessionAuthenticated {
			writeError(w, http.StatusUnauthorized, domain.UserMessage(domain.ErrNotAuthenticated))
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that attaches a session store without
// blocking anonymous requests.
func OptionalAuth(gateway *service.SessionGateway, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := attachSession(gateway, r)
		defer store.Close()

		ctx := context.WithValue(r.Context(), sessionContextKey, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func attachSession(gateway *service.SessionGateway, r *http.Request) *service.SessionStore {
	var token string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		token = cookie.Value
	}
	store := service.NewSessionStore()
	gateway.Attach(r.Context(), store, token)
	return store
}

// RateLimit rejects requests from a client IP whose bucket is empty.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders sets conservative browser security headers on every
// response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
