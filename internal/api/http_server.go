// Package api exposes the HTTP surface: the WhatsApp webhook, the tenant
// REST endpoints and the operational endpoints (healthz, metrics, export).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bookline/internal/config"
	"bookline/internal/database"
	"bookline/internal/metrics"
	"bookline/internal/service"
	"bookline/internal/whatsapp"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps bundles everything the HTTP handlers call into.
type Deps struct {
	DB           *database.DB
	Booking      *service.BookingService
	Availability *service.AvailabilityService
	Dispatcher   *whatsapp.Dispatcher
	Logger       *zerolog.Logger
}

type HTTPServer struct {
	cfg    config.Config
	deps   Deps
	server *http.Server
	auth   *APIAuth
}

func NewHTTPServer(cfg config.Config, deps Deps) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, deps: deps}
	srv.auth = NewAPIAuth(cfg.API)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook", srv.handleWebhookVerify)
	mux.HandleFunc("POST /webhook", srv.handleWebhookPost)
	mux.HandleFunc("GET /api/v1/tenants/{slug}/services", srv.handleListServices)
	mux.HandleFunc("GET /api/v1/tenants/{slug}/services/{serviceID}/availability", srv.handleAvailability)
	mux.HandleFunc("POST /api/v1/tenants/{slug}/appointments", srv.handleCreateAppointment)
	mux.HandleFunc("GET /api/v1/appointments/{token}", srv.handleGetAppointment)
	mux.HandleFunc("POST /api/v1/appointments/{token}/cancel", srv.handleCancelAppointment)
	mux.HandleFunc("GET /api/v1/export/appointments", srv.handleExportAppointments)
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	handler := loggingMiddleware(deps.Logger, srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler exposes the full middleware chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.deps.Logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()

		reqLogger := logger.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Error envelope codes.
const (
	codeValidation        = "validation"
	codeNotFound          = "not_found"
	codeConflict          = "conflict"
	codeInvalidTransition = "invalid_transition"
	codeUnauthorized      = "unauthorized"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]errorBody{"error": {Code: code, Message: message}})
}

// writeStorageError maps the storage sentinel errors onto the envelope.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, database.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "time slot is no longer available")
	case errors.Is(err, database.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, "status transition not allowed")
	case errors.Is(err, database.ErrNotReschedulable):
		writeError(w, http.StatusConflict, codeInvalidTransition, "appointment can no longer be moved")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
