// Package api exposes the load-test orchestrator over HTTP: three run
// endpoints behind a shared-secret bearer gate, plus an open health check.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires all routes. The run endpoints hold the response open for
// the full test duration, so no per-request timeout middleware is applied;
// callers are expected to size their own client timeouts.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.Health)

	// Run endpoints (protected by the credential gate)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireBearer)
		r.Post("/run-load-tests", h.RunAll)
		r.Post("/run-load-tests/{test}", h.RunOne)
		r.Post("/run-load-tests/{test}/{intensity}", h.RunWithIntensity)
	})

	return r
}
