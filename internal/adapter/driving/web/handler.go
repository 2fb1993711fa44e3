// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/edgerandom/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/edgerandom/internal/adapter/driving/web/templates/pages"
	"github.com/ericfisherdev/edgerandom/internal/application"
	"github.com/ericfisherdev/edgerandom/internal/domain/model"
)

// RandomService is the orchestrator surface the page needs.
type RandomService interface {
	Fetch(ctx context.Context) (model.RandomValue, error)
	Status() application.Status
	Descriptor() model.ServiceDescriptor
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	svc    RandomService
	limit  func(http.Handler) http.Handler
	logger *slog.Logger
}

// NewHandler creates a Handler. limit wraps the fetch route and may be nil.
func NewHandler(svc RandomService, limit func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{svc: svc, limit: limit, logger: logger}
}

// Index renders the page with the current session state.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	token := csrfToken(w, r)
	page := toPageViewModel(h.svc.Status(), h.svc.Descriptor(), token)
	h.render(w, r, http.StatusOK, page.Title, pages.RandomPage(page))
}

// Random fetches one value and renders the page with "Got N" or the error.
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	token := csrfToken(w, r)
	value, err := h.svc.Fetch(r.Context())
	page := toPageViewModel(h.svc.Status(), h.svc.Descriptor(), token)

	if err != nil {
		h.logger.Warn("random fetch failed", "error", err)
		page.Error = "Could not get a random number: " + err.Error()
		h.render(w, r, http.StatusOK, page.Title, pages.RandomPage(page))
		return
	}

	page = withValue(page, value)
	h.render(w, r, http.StatusOK, page.Title, pages.RandomPage(page))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	templ.Handler(templates.Layout(title, body),
		templ.WithStatus(status),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			})
		}),
	).ServeHTTP(w, r)
}
