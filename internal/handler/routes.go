package handler

import (
	"net/http"

	"github.com/fardin04/pu-found-lost-hub/internal/imagehost"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

// Deps are the services the HTTP surface is built on. Blobs and Store may
// be nil: without Blobs no /images route is served, and without Store the
// health check does not ping.
type Deps struct {
	Gateway      *service.SessionGateway
	Posts        *service.PostService
	Blobs        *imagehost.BlobHost
	Limiter      *service.TokenBucket
	Store        Pinger
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	authHandler := NewAuthHandler(d.Gateway, d.CookieSecure)
	postHandler := NewPostHandler(d.Posts)
	streamHandler := NewStreamHandler(d.Posts)

	requireAuth := func(h http.HandlerFunc) http.Handler { return RequireAuth(d.Gateway, h) }
	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return RateLimit(d.Limiter, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(d.Store))

	// Auth
	mux.Handle("POST /api/auth/register", limited(authHandler.HandleRegister))
	mux.Handle("POST /api/auth/login", limited(authHandler.HandleLogin))
	mux.Handle("POST /api/auth/federated", limited(authHandler.HandleFederated))
	mux.Handle("POST /api/auth/password-reset", limited(authHandler.HandlePasswordReset))
	mux.Handle("POST /api/auth/reset-password", limited(authHandler.HandleResetPassword))
	mux.HandleFunc("POST /api/auth/verify-email", authHandler.HandleVerifyEmail)
	mux.Handle("POST /api/auth/logout", OptionalAuth(d.Gateway, http.HandlerFunc(authHandler.HandleLogout)))
	mux.Handle("POST /api/auth/verification", requireAuth(authHandler.HandleResendVerification))
	mux.Handle("GET /api/auth/me", requireAuth(authHandler.HandleMe))

	// Posts
	mux.Handle("POST /api/posts", requireAuth(postHandler.HandleCreate))
	mux.Handle("POST /api/posts/{id}/resolve", requireAuth(postHandler.HandleResolve))
	mux.Handle("DELETE /api/posts/{id}", requireAuth(postHandler.HandleDelete))
	mux.Handle("GET /api/feed", requireAuth(postHandler.HandleFeed))
	mux.Handle("GET /api/profile/posts", requireAuth(postHandler.HandleProfilePosts))

	// Live views
	mux.Handle("GET /feed/stream", requireAuth(streamHandler.HandleFeed))
	mux.Handle("GET /profile/stream", requireAuth(streamHandler.HandleProfile))

	if d.Blobs != nil {
		mux.HandleFunc("GET /images/{key...}", NewImageHandler(d.Blobs).HandleServe)
	}
}
