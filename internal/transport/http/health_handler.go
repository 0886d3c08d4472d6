package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"dataflow/internal/services"
)

// HealthHandler serves the health checks, version and runtime stats under /api
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Routes returns the health routes, mounted at /api
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.status(h.service.HealthCheck))
	r.Get("/health/ready", h.status(h.service.ReadinessCheck))
	r.Get("/health/live", h.status(h.service.LivenessCheck))
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, h.service.Version())
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, h.service.SystemStats(r.Context()))
	})
	return r
}

// status renders a check; not_ready answers 503
func (h *HealthHandler) status(check func(context.Context) services.HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := check(r.Context())
		if st.Status == "not_ready" {
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, st)
	}
}
