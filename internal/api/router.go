package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database ping behind GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Post("/events", s.handlePublishEvent)

			r.Route("/routines", func(r chi.Router) {
				r.Get("/", s.handleListRoutines)
				r.Post("/", s.handleCreateRoutine)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoutine)
					r.Patch("/", s.handleUpdateRoutine)
					r.Delete("/", s.handleDeleteRoutine)
					r.Get("/logs", s.handleListRoutineLogs)
				})
			})

			r.Get("/notifications", s.handleListNotifications)
			r.Get("/insights", s.handleListInsights)
			r.Get("/audit", s.handleListAudit)

			r.Post("/scheduler/tick", s.handleSchedulerTick)
		})
	})

	return r
}

// handleHealth returns the server health status. A failing database ping
// reports "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	database := "unconfigured"

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
		} else {
			database = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"version":  s.version,
		"database": database,
	})
}
