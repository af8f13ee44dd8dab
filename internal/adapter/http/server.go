package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jillmpla/south-carolina-fires/internal/domain"
	"github.com/jillmpla/south-carolina-fires/internal/observability"
	"github.com/jillmpla/south-carolina-fires/internal/pipeline"
	"github.com/jillmpla/south-carolina-fires/internal/window"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// DetectionQuerier reads stored detections for a serving window.
type DetectionQuerier interface {
	QuerySince(ctx context.Context, since time.Time, limit int) ([]domain.Detection, error)
}

// IngestionTrigger runs one ingestion cycle on demand.
type IngestionTrigger interface {
	RunCycle(ctx context.Context) (pipeline.CycleStats, error)
}

// Config holds the server's address and trigger credential.
type Config struct {
	Addr       string
	CronSecret string
}

// Server exposes the fires API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	querier DetectionQuerier
	trigger IngestionTrigger
	window  *window.Window
	metrics *observability.Metrics
	secret  string
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(cfg Config, querier DetectionQuerier, trigger IngestionTrigger, win *window.Window, ready ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // the trigger endpoint waits on a full cycle
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		querier: querier,
		trigger: trigger,
		window:  win,
		metrics: metrics,
		secret:  cfg.CronSecret,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/fires", s.handleFires)
	mux.HandleFunc("GET /api/update-fires", s.handleUpdateFires)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// firesResponse is the read endpoint's payload.
type firesResponse struct {
	Fires []domain.Detection `json:"fires"`
	Count int                `json:"count"`
	Meta  firesMeta          `json:"meta"`
}

type firesMeta struct {
	Window          string `json:"window"`
	RolloverHourUTC int    `json:"rollover_utc_hour"`
}

func (s *Server) handleFires(w http.ResponseWriter, r *http.Request) {
	resolved := s.window.Resolve(
		queryInt(r, "hours"),
		queryInt(r, "limit"),
	)

	mode := "opday"
	if resolved.Rolling {
		mode = "rolling"
	}
	s.metrics.QueryRequests.WithLabelValues(mode).Inc()

	fires, err := s.querier.QuerySince(r.Context(), resolved.Since, resolved.Limit)
	if err != nil {
		s.logger.Error("detection query failed", "error", err, "window", resolved.Description)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database error"})
		return
	}
	if fires == nil {
		fires = []domain.Detection{}
	}

	// Responses may be cached until the next scheduled ingestion run.
	expires, maxAge := s.window.CacheDeadline()
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, must-revalidate", int(maxAge.Seconds())))
	w.Header().Set("Expires", expires.Format(http.TimeFormat))
	w.Header().Set("Access-Control-Allow-Origin", "*")

	writeJSON(w, http.StatusOK, firesResponse{
		Fires: fires,
		Count: len(fires),
		Meta: firesMeta{
			Window:          resolved.Description,
			RolloverHourUTC: s.window.RolloverHourUTC(),
		},
	})
}

func (s *Server) handleUpdateFires(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("unauthorized ingestion trigger",
			"has_auth_header", r.Header.Get("Authorization") != "",
			"has_query_key", r.URL.Query().Has("key"),
			"remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	stats, err := s.trigger.RunCycle(r.Context())
	if err != nil {
		s.logger.Error("triggered ingestion cycle failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingestion cycle failed"})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "fire data updated",
		"stats":   stats,
	})
}

// authorized accepts the shared secret as either a bearer token or a ?key=
// query parameter. Comparison is constant-time and reveals nothing about how
// close a candidate was.
func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return false
	}

	var headerToken string
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		headerToken = strings.TrimPrefix(auth, "Bearer ")
	}
	queryToken := r.URL.Query().Get("key")

	secret := []byte(s.secret)
	return subtle.ConstantTimeCompare([]byte(headerToken), secret) == 1 ||
		subtle.ConstantTimeCompare([]byte(queryToken), secret) == 1
}

// queryInt reads an optional integer query parameter, nil when absent or
// unparsable.
func queryInt(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
