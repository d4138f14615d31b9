// Package api provides the HTTP server for capmap: dashboard aggregates,
// region rankings and stateful choropleth map views.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/capx-network/capmap/internal/app/dashboard"
	"github.com/capx-network/capmap/internal/app/mapview"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/health"
	"github.com/capx-network/capmap/internal/infra/metrics"
	"github.com/capx-network/capmap/internal/infra/render"
)

// maxBodyBytes bounds request bodies; datasets are the largest.
const maxBodyBytes = 32 << 20

// Server is the capmap HTTP API server.
type Server struct {
	dash  *dashboard.Service
	views *mapview.Manager
	log   zerolog.Logger

	health         *health.Checker // nil if not set
	defaultStyle   render.Style
	corsOrigins    []string
	metricsEnabled bool
	version        string
	instanceID     string
	startedAt      time.Time
}

// NewServer creates a new API server.
func NewServer(log zerolog.Logger, dash *dashboard.Service, views *mapview.Manager) *Server {
	return &Server{
		dash:        dash,
		views:       views,
		log:         log.With().Str("component", "api").Logger(),
		corsOrigins: []string{"*"},
		version:     "dev",
		startedAt:   time.Now(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the checker behind /api/health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins sets the allowed origins. Empty means any.
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.corsOrigins = origins
}

// SetDefaultStyle sets the style of views created without one.
func (s *Server) SetDefaultStyle(style render.Style) { s.defaultStyle = style }

// SetVersion sets the version reported by /api/status.
func (s *Server) SetVersion(v string) { s.version = v }

// SetInstanceID sets the state directory id reported by /api/status.
func (s *Server) SetInstanceID(id string) { s.instanceID = id }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/health", s.handleHealth)

		r.Get("/regions", s.handleRegions)
		r.Get("/regions/{id}/top", s.handleTop)
		r.Get("/resolve", s.handleResolve)

		r.Get("/dataset", s.handleGetDataset)
		r.Put("/dataset", s.handlePutDataset)
		r.Get("/aggregate", s.handleAggregate)

		r.Route("/views", func(r chi.Router) {
			r.Get("/", s.handleListViews)
			r.Post("/", s.handleCreateView)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetView)
				r.Patch("/", s.handlePatchView)
				r.Delete("/", s.handleDeleteView)
				r.Post("/click", s.handleClick)
				r.Post("/enter", s.handleEnter)
				r.Post("/leave", s.handleLeave)
				r.Get("/map.svg", s.handleMap)
			})
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Status ─────────────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "capmap is running",
		"version":         s.version,
		"instance_id":     s.instanceID,
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"dataset_version": s.dash.Version(),
		"views":           s.views.Len(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"healthy": true, "checks": []health.Status{}})
		return
	}
	status := http.StatusOK
	healthy := s.health.IsHealthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": healthy,
		"checks":  s.health.Statuses(),
	})
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// accessLog logs every request and counts it by route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeErr maps a service error to its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrViewNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTooManyViews):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnknownRegion),
		errors.Is(err, domain.ErrUnknownViewMode),
		errors.Is(err, domain.ErrUnknownStyle),
		errors.Is(err, domain.ErrInvalidViewOption),
		errors.Is(err, domain.ErrDatasetInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
