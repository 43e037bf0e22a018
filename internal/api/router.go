package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	// Prometheus self-metrics (process instrumentation, not sensor data)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/readings", func(r chi.Router) {
			r.Get("/", s.handleGetReadings)
			r.Get("/latest", s.handleGetLatest)
		})

		r.Get("/metrics/catalog", s.handleGetCatalog)
		r.Get("/export", s.handleExport)

		r.Get("/cycles", s.handleListCycles)
		r.Get("/alarms", s.handleListAlarms)
	})

	return r
}

// handleHealth returns the server health status, including whether the
// time-series store is currently reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "unknown"
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.HealthCheck(ctx); err != nil {
			storeStatus = "unreachable"
		} else {
			storeStatus = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"store":   storeStatus,
	})
}
