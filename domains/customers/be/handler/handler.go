package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	"github.com/harmony-hq/harmony/domains/customers/be/service"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// Customers is the customer surface served over HTTP.
type Customers interface {
	List(ctx context.Context, scope tagscope.Scope, opts service.ListOptions) (service.ListResult, error)
	Get(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (service.Customer, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input service.CreateInput) (service.Customer, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input service.UpdateInput) (service.Customer, error)
	Delete(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (service.Customer, error)
}

// Handler serves /customers.
type Handler struct {
	svc    Customers
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Customers, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("customers service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the customer endpoints with their role gates.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.CustomerReaders...))
			r.Get("/", h.ListCustomers)
			r.Get("/{customerId}", h.GetCustomer)
		})
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.CustomerWriters...))
			r.Post("/", h.CreateCustomer)
			r.Put("/{customerId}", h.UpdateCustomer)
			r.Delete("/{customerId}", h.DeleteCustomer)
		})
	})
}

// ListCustomers implements GET /customers?search=&active=&limit=&skip=
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.svc.List(r.Context(), scope(r), service.ListOptions{
		Search: r.URL.Query().Get("search"),
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

// GetCustomer implements GET /customers/{customerId}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "customerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	customer, err := h.svc.Get(r.Context(), scope(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

// CreateCustomer implements POST /customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	customer, err := h.svc.Create(r.Context(), audit(r), scope(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/customers/%s", customer.ID))
	httpx.WriteJSON(w, http.StatusCreated, customer)
}

// UpdateCustomer implements PUT /customers/{customerId}
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "customerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var input service.UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	customer, err := h.svc.Update(r.Context(), audit(r), scope(r), id, input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

// DeleteCustomer implements DELETE /customers/{customerId}
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "customerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	customer, err := h.svc.Delete(r.Context(), audit(r), scope(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, customer)
}

func scope(r *http.Request) tagscope.Scope {
	creds, _ := platformauth.UserFromContext(r.Context())
	return tagscope.CustomerScope(creds)
}

func audit(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}
