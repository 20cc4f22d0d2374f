/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for dashboards
  5. Authenticator: Caller identity attestation (auth.go)

ROUTE GROUPS:
  /api/initialize           One-time setup
  /api/payments             Payment recording
  /api/transactions/*       Transaction reads
  /api/state                Global state
  /api/customers/*          Balance reads
  /api/admin/*              Authority rotation

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Caller-ID"},
		AllowCredentials: true,
	}))
	r.Use(auth.Middleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/initialize", h.Initialize)
		r.Post("/payments", h.ProcessPayment)
		r.Get("/state", h.GetState)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{id}", h.GetTransaction)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/{id}/balance", h.GetCustomerBalance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/authority", h.UpdateAuthority)
		})
	})

	return r
}
