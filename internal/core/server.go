// Package core is the operational HTTP surface of the lawnwatch service:
// health, Prometheus metrics and read-only views of monitoring state.
package core

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lawnwatch/internal/monitor"
	"lawnwatch/internal/types"
)

// SessionLister exposes the monitoring session table.
type SessionLister interface {
	Sessions() []monitor.SessionInfo
}

// ModelSource exposes the current prediction model snapshot.
type ModelSource interface {
	Metrics() *types.ModelMetrics
}

// Options carries the server's dependencies. Metrics, Sessions and Model
// are optional; their routes are omitted when nil.
type Options struct {
	Logger   *slog.Logger
	Probes   []HealthProbe
	Metrics  http.Handler
	Sessions SessionLister
	Model    ModelSource
	Build    map[string]string
}

type Server struct {
	logger   *slog.Logger
	probes   []HealthProbe
	sessions SessionLister
	model    ModelSource
	build    map[string]string
	router   *chi.Mux
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:   logger.With("component", "ops_server"),
		probes:   opts.Probes,
		sessions: opts.Sessions,
		model:    opts.Model,
		build:    opts.Build,
		router:   chi.NewRouter(),
	}

	s.router.Use(s.Recoverer, RequestID, RequestLogger(s.logger))
	s.router.Get("/health", s.HandleHealth)
	if opts.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	s.router.Route("/v1", func(r chi.Router) {
		if s.sessions != nil {
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{treatmentID}", s.handleGetSession)
		}
		if s.model != nil {
			r.Get("/model", s.handleModel)
		}
	})
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(errCodeNotFoundRoute, "route not found", nil))
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.Sessions()
	JSON(w, r, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treatmentID")
	for _, info := range s.sessions.Sessions() {
		if info.TreatmentID == id {
			JSON(w, r, http.StatusOK, info)
			return
		}
	}
	Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundTreatment,
		"treatment is not being monitored", nil, map[string]any{"treatment_id": id}))
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	m := s.model.Metrics()
	if m == nil {
		JSON(w, r, http.StatusOK, map[string]any{"trained": false})
		return
	}
	JSON(w, r, http.StatusOK, map[string]any{"trained": true, "metrics": m})
}
