package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/handler/views"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
	"github.com/cloze-lab/ctest/internal/model"
	"github.com/cloze-lab/ctest/internal/store"
)

// ErrMissingInput is returned when the authoring form is incomplete.
var ErrMissingInput = errors.New("text and difficulty are required")

// Backend is the part of the C-Test backend the handlers use.
type Backend interface {
	ctest.Submitter
	Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error)
	GeneratePDF(ctx context.Context, req model.GenerateRequest) ([]byte, error)
	LoadTest(ctx context.Context, ctestID string) (*model.PageData, error)
	LoadResults(ctx context.Context, ctestID string) (*model.ReviewData, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	backend  Backend
	store    *store.Store
	config   model.AppConfig
	validate *validator.Validate
	limiter  *ipLimiter
	now      func() time.Time
}

// New creates a new Handler.
func New(b Backend, s *store.Store, cfg model.AppConfig) (*Handler, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	if s == nil {
		return nil, errors.New("store is required")
	}
	if cfg.HintCooldown < 0 {
		cfg.HintCooldown = 0
	}
	return &Handler{
		backend:  b,
		store:    s,
		config:   cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  newIPLimiter(cfg.GenerateRate, cfg.GenerateBurst),
		now:      time.Now,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(securityHeaders)
	r.Use(h.csrfMiddleware)

	r.Get("/", h.handleIndex)
	r.With(h.rateLimit).Post("/generate", h.handleGenerate)
	r.With(h.rateLimit).Post("/pdf", h.handlePDF)

	r.Get("/ctest/{id}", h.handleTakingPage)
	r.Post("/ctest/{id}/hint", h.handleHint)
	r.Post("/ctest/{id}/submit", h.handleSubmit)

	r.Get("/results/{id}", h.handleResults)
}

// Close stops background work.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// BasePathMiddleware makes the deployment prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// render writes c with status. htmx does not swap error responses, so its
// requests always get 200 and carry the failure in an alert.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	if isHTMX(r) {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	msg := ctest.Message{
		Lines:    []string{appI18n.T(r.Context(), msgID)},
		Severity: ctest.SeverityDanger,
	}
	if isHTMX(r) {
		h.render(w, r, status, views.Alert(msg))
		return
	}
	h.render(w, r, status, views.ErrorPage(msg))
}
