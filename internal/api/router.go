/**
 * @description
 * This file sets up the HTTP router for the bridge-connector using the
 * go-chi/chi router. It defines the webhook route, applies middleware for
 * logging, recovery, timeouts and CORS, and exposes a liveness endpoint.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the connector routes.
func NewRouter(h *WebhookHandler) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Hub-Signature"},
		MaxAge:         300,
	}))

	// Liveness endpoint
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Bridge connector is healthy"))
	})

	// Webhook entry point
	r.Post("/hooks", h.ServeHTTP)

	return r
}
