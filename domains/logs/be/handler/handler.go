package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/logs/be/service"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

// Logs is the audit log surface served over HTTP.
type Logs interface {
	ListByPeriod(ctx context.Context, month, year string) ([]service.Entry, error)
	Delete(ctx context.Context, id uuid.UUID) (service.Entry, error)
}

// Handler serves /logs.
type Handler struct {
	svc      Logs
	validate *validation.Validator
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc Logs, validate *validation.Validator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("logs service is required")
	}
	if validate == nil {
		panic("validator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, validate: validate, logger: logger}
}

// Routes mounts /logs. Managers may read; only admins delete.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/logs", func(r chi.Router) {
		r.With(platformauth.RequireRole(platformauth.RoleAdmin, platformauth.RoleManager)).Get("/", h.ListLogs)
		r.With(platformauth.RequireRole(platformauth.RoleAdmin)).Delete("/{logId}", h.DeleteLog)
	})
}

type periodQuery struct {
	Month string `json:"month" validate:"omitempty,month"`
	Year  string `json:"year" validate:"omitempty,year"`
}

type logsResponse struct {
	Logs []service.Entry `json:"logs"`
}

// ListLogs implements GET /logs?month=&year=. Missing values default to the current period.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := periodQuery{Month: r.URL.Query().Get("month"), Year: r.URL.Query().Get("year")}
	if err := h.validate.Struct(q); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	entries, err := h.svc.ListByPeriod(r.Context(), q.Month, q.Year)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, logsResponse{Logs: entries})
}

// DeleteLog implements DELETE /logs/{logId}
func (h *Handler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "logId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	entry, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}
