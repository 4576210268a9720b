package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Automation routes
	r.Route("/api/automation", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/create", s.handleCreateRule)
			r.Get("/active", s.handleActiveRules)
		})

		r.Route("/scenes", func(r chi.Router) {
			r.Post("/create", s.handleCreateScene)
		})

		r.Route("/triggers", func(r chi.Router) {
			r.Post("/motion", s.handleMotionTrigger)
		})

		r.Get("/energy-savings", s.handleEnergySavings)
	})

	// Infrastructure routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)
	})

	// Unknown paths get the same JSON envelope as everything else.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	})

	return r
}

// handleHealth returns the server health status and component probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}

	status := "ok"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			components["database"] = "unhealthy"
			status = "degraded"
		} else {
			components["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			components["mqtt"] = "ok"
		} else {
			components["mqtt"] = "disconnected"
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
