// Package httphandler is the JSON API driving adapter.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// RandomService is the orchestrator surface the API needs.
type RandomService interface {
	Fetch(ctx context.Context) (model.RandomValue, error)
	Status() application.Status
	Journal(ctx context.Context, limit int) ([]model.BootstrapEvent, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	svc     RandomService
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewHandler creates a Handler. A nil limiter leaves fetches unthrottled.
func NewHandler(svc RandomService, limiter *RateLimiter, logger *slog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		limiter: limiter,
		logger:  logger,
	}
}

// RegisterAPIRoutes registers the /api/v1 routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.Handle("GET /api/v1/random", h.limiter.Middleware(http.HandlerFunc(h.Random)))
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/events", h.Events)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps next with logging and recovery middleware.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Random fetches one value from the deployed service.
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	value, err := h.svc.Fetch(r.Context())
	if err != nil {
		h.logger.Warn("random fetch failed", "error", err)
		writeStageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRandomResponse(value))
}

// Status returns a snapshot of the session.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatusResponse(h.svc.Status()))
}

// Events returns recent journal entries, newest first. The optional limit
// query parameter is capped at 500.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.svc.Journal(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness. It answers 200 while bootstrapping or ready and
// 503 once bootstrap has failed.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	state := h.svc.Status().State

	status, code := "ok", http.StatusOK
	switch state {
	case model.StateFailed:
		status, code = "failed", http.StatusServiceUnavailable
	case model.StateReady, model.StateFetching:
	default:
		status = "starting"
	}

	writeJSON(w, code, HealthResponse{
		Status: status,
		State:  string(state),
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
