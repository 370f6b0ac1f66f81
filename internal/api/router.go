package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/atlwiki/wikilink/internal/config"
	"github.com/atlwiki/wikilink/internal/store"
)

// NewRouter creates the HTTP router for the verification endpoints
func NewRouter(cfg *config.Config, links *store.LinkStore, sessions *store.SessionStore, provider OAuthProvider) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())

	// Both endpoints are public and user-interactive; keep abuse down
	// without locking out a user who retries a couple of times.
	limiter := NewRateLimiter(rate.Limit(1), 5)
	limiter.CleanupOldLimiters()

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))
		r.Get("/verify", HandleVerifyEntry(links, sessions, provider, cfg))
		r.Get("/verify/callback", HandleVerifyCallback(links, sessions, provider, cfg))
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
