// Package ops serves the operational endpoints: health and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crisrs/cris-server/internal/metrics"
)

// Component statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Check probes one component. A nil error means healthy.
type Check func(ctx context.Context) error

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

// Server routes the ops endpoints.
type Server struct {
	router  *chi.Mux
	checks  map[string]Check
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewServer creates the ops router. checks are keyed by component name.
func NewServer(m *metrics.Metrics, checks map[string]Check, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		checks:  checks,
		metrics: m,
		logger:  logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	if m != nil {
		s.router.Method(http.MethodGet, "/metrics", m.Handler())
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: StatusHealthy, Components: make(map[string]ComponentHealth, len(names))}
	for _, name := range names {
		start := time.Now()
		err := s.checks[name](ctx)
		h := ComponentHealth{Status: StatusHealthy, Latency: time.Since(start).String()}
		if err != nil {
			h.Status = StatusUnhealthy
			h.Message = err.Error()
			resp.Status = StatusUnhealthy
		}
		resp.Components[name] = h
	}

	status := http.StatusOK
	if resp.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
