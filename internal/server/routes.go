package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/gate"
	"github.com/n3tuk/maintenance-gate/internal/health"
	"github.com/n3tuk/maintenance-gate/internal/middleware"
	"github.com/n3tuk/maintenance-gate/internal/pages"
)

// refreshCachePath forces the status cache to re-read the store.
const refreshCachePath = pages.AdminAPIPath + "/cache"

// setupAPIRoutes configures the API server routes.
func (s *Server) setupAPIRoutes(r chi.Router) {
	r.Get("/ping", handlePing(s.logger))

	// Status endpoints
	r.Get(pages.PublicAPIPath, s.handlers.HandlePublicStatus)
	r.Group(func(r chi.Router) {
		r.Use(s.admins.RequireAdmin)
		r.Get(pages.AdminAPIPath, s.handlers.HandleGetAdminStatus)
		r.Post(pages.AdminAPIPath, s.handlers.HandleSetStatus)
		r.Post(refreshCachePath, s.handlers.HandleRefreshCache)
	})

	// Everything else passes through the gate
	r.Group(func(r chi.Router) {
		r.Use(s.gate.Handler)
		r.Get(gate.MaintenancePath, s.pages.Maintenance)
		r.With(s.admins.RequireAdminPage).Get(pages.PanelPath, s.pages.Panel)
		r.Handle("/*", s.upstream)
	})
}

// setupProbeRoutes configures the probe server routes.
func (s *Server) setupProbeRoutes(r chi.Router) {
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "startup")).
		Get("/healthz/startup", s.handleStartup)
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "live")).
		Get("/healthz/live", s.handleLive)
	r.With(middleware.HealthCheckMetricsMiddleware(s.metrics, "ready")).
		Get("/healthz/ready", s.handleReady)
}

// handlePing handles the /ping endpoint.
func handlePing(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, map[string]string{
			"status": "pong",
		})
	}
}

// handleStartup reports 200 once every registered check is ok.
func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	response := s.healthManager.GetStartupStatus(r.Context())

	code := http.StatusOK
	if response.Status != health.StatusOK {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, s.logger, code, response)
}

// handleLive reports that the process is serving requests.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.logger, http.StatusOK, s.healthManager.GetLivenessStatus())
}

// handleReady reports 200 while the service should receive traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	response := s.healthManager.GetReadinessStatus(r.Context())

	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, s.logger, code, response)
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
