package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))

	// API and chat endpoints — bearer auth when a token is configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth))
		}

		r.Get("/ws/chat", g.handleWSChat())

		r.Route("/api", func(r chi.Router) {
			r.Get("/sessions", g.handleListSessions())
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Post("/messages", g.handlePostMessage())
				r.Get("/turns", g.handleGetTurns())
				r.Get("/context", g.handleGetContext())
				r.Get("/profile", g.handleGetProfile())
				r.Delete("/", g.handleDeleteSession())
			})
		})
	})

	return r
}
