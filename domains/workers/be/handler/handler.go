package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	"github.com/harmony-hq/harmony/domains/workers/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// Workers is the worker surface served over HTTP.
type Workers interface {
	Search(ctx context.Context, scope tagscope.Scope, opts service.SearchOptions) (service.SearchResult, error)
	Get(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (service.Worker, error)
	GetByIDs(ctx context.Context, scope tagscope.Scope, ids []uuid.UUID) ([]service.Worker, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input service.CreateInput) (service.Worker, error)
	Import(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, inputs []service.CreateInput) (service.ImportResult, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input service.UpdateInput) (service.Worker, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (service.Worker, error)
}

// Handler serves /workers.
type Handler struct {
	svc    Workers
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Workers, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("workers service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the worker endpoints with their role gates.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/workers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.WorkerReaders...))
			r.Get("/", h.ListWorkers)
			r.Get("/{workerId}", h.GetWorker)
		})
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.WorkerWriters...))
			r.Post("/", h.CreateWorker)
			r.Post("/import", h.ImportWorkers)
			r.Put("/{workerId}", h.UpdateWorker)
			r.Delete("/{workerId}", h.DeleteWorker)
		})
	})
}

type importRequest struct {
	Workers []service.CreateInput `json:"workers"`
}

type workersResponse struct {
	Workers []service.Worker `json:"items"`
}

// ListWorkers implements GET /workers?q=&active=&limit=&skip= and GET /workers?ids=
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	rawIDs, err := httpx.QueryList(r, "ids")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if len(rawIDs) > 0 {
		h.listByIDs(w, r, rawIDs)
		return
	}

	limit, err := httpx.QueryInt(r, "limit", 50)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	skip, err := httpx.QueryInt(r, "skip", 0)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.Search(r.Context(), scope(r), service.SearchOptions{
		Query:  r.URL.Query().Get("q"),
		Active: active,
		Limit:  limit,
		Skip:   skip,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listByIDs(w http.ResponseWriter, r *http.Request, rawIDs []string) {
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, h.logger, apperr.NewValidationError(map[string]string{"ids": "must be UUIDs"}))
			return
		}
		ids = append(ids, id)
	}
	workers, err := h.svc.GetByIDs(r.Context(), scope(r), ids)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, workersResponse{Workers: workers})
}

// GetWorker implements GET /workers/{workerId}
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "workerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	worker, err := h.svc.Get(r.Context(), scope(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, worker)
}

// CreateWorker implements POST /workers
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	worker, err := h.svc.Create(r.Context(), audit(r), scope(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/workers/%s", worker.ID))
	httpx.WriteJSON(w, http.StatusCreated, worker)
}

// ImportWorkers implements POST /workers/import
func (h *Handler) ImportWorkers(w http.ResponseWriter, r *http.Request) {
	var body importRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.Import(r.Context(), audit(r), scope(r), body.Workers)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// UpdateWorker implements PUT /workers/{workerId}
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "workerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var input service.UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	worker, err := h.svc.Update(r.Context(), audit(r), scope(r), id, input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, worker)
}

// DeleteWorker implements DELETE /workers/{workerId}
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "workerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	worker, err := h.svc.Delete(r.Context(), audit(r), scope(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, worker)
}

func scope(r *http.Request) tagscope.Scope {
	creds, _ := platformauth.UserFromContext(r.Context())
	return tagscope.WorkerScope(creds)
}

func audit(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}
