package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// Directory is the company surface served over HTTP.
type Directory interface {
	List(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	Create(ctx context.Context, audit requesttrace.AuditInfo, input service.CreateInput) (service.Company, error)
	Get(ctx context.Context, id uuid.UUID) (service.Company, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (service.Company, error)
	Delete(ctx context.Context, id uuid.UUID) (service.Company, error)

	AddField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope service.FieldScope, f service.Field) (service.Field, error)
	UpdateField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope service.FieldScope, f service.Field) (service.Field, error)
	DeleteField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope service.FieldScope, id string) (service.Field, error)
	AddPosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, p service.Position) (service.Position, error)
	UpdatePosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, p service.Position) (service.Position, error)
	DeletePosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (service.Position, error)
	AddConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, c service.Convention) (service.Convention, error)
	UpdateConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, c service.Convention) (service.Convention, error)
	DeleteConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (service.Convention, error)
	AddSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, seq service.Sequence) (service.Sequence, error)
	UpdateSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, seq service.Sequence) (service.Sequence, error)
	DeleteSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (service.Sequence, error)
	AddTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, t service.Tag) (service.Tag, error)
	UpdateTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, t service.Tag) (service.Tag, error)
	DeleteTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (service.Tag, error)
}

// Handler serves /companies.
type Handler struct {
	svc         Directory
	notifier    notify.Publisher
	logger      *zap.Logger
	definitions map[string]definitionOps
}

// New constructs a Handler. notifier may be nil.
func New(svc Directory, notifier notify.Publisher, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("companies service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	h := &Handler{svc: svc, notifier: notifier, logger: logger}
	h.definitions = map[string]definitionOps{
		"worker-fields": bind(
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, f service.Field) (service.Field, error) {
				return svc.AddField(ctx, a, id, service.ScopeWorker, f)
			},
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, f service.Field) (service.Field, error) {
				return svc.UpdateField(ctx, a, id, service.ScopeWorker, f)
			},
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, key string) (service.Field, error) {
				return svc.DeleteField(ctx, a, id, service.ScopeWorker, key)
			},
			func(f service.Field, key string) service.Field { f.ID = key; return f },
		),
		"customer-fields": bind(
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, f service.Field) (service.Field, error) {
				return svc.AddField(ctx, a, id, service.ScopeCustomer, f)
			},
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, f service.Field) (service.Field, error) {
				return svc.UpdateField(ctx, a, id, service.ScopeCustomer, f)
			},
			func(ctx context.Context, a requesttrace.AuditInfo, id uuid.UUID, key string) (service.Field, error) {
				return svc.DeleteField(ctx, a, id, service.ScopeCustomer, key)
			},
			func(f service.Field, key string) service.Field { f.ID = key; return f },
		),
		"positions": bind(svc.AddPosition, svc.UpdatePosition, svc.DeletePosition,
			func(p service.Position, key string) service.Position { p.ID = key; return p }),
		"conventions": bind(svc.AddConvention, svc.UpdateConvention, svc.DeleteConvention,
			func(c service.Convention, key string) service.Convention { c.ID = key; return c }),
		"sequences": bind(svc.AddSequence, svc.UpdateSequence, svc.DeleteSequence,
			func(s service.Sequence, key string) service.Sequence { s.ID = key; return s }),
		"tags": bind(svc.AddTag, svc.UpdateTag, svc.DeleteTag,
			func(t service.Tag, key string) service.Tag { t.ID = key; return t }),
	}
	return h
}

// Routes mounts /companies. Listing, creation and deletion are super-admin only;
// reads and definition edits are open to admins of the same company.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/companies", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleSuperAdmin))
			r.Get("/", h.ListCompanies)
			r.Post("/", h.CreateCompany)
		})

		r.Route("/{companyId}", func(r chi.Router) {
			r.Use(h.sameCompany)
			r.With(platformauth.RequireRole(platformauth.RoleAdmin, platformauth.RoleManager)).Get("/", h.GetCompany)
			r.With(platformauth.RequireRole(platformauth.RoleSuperAdmin)).Delete("/", h.DeleteCompany)

			r.Group(func(r chi.Router) {
				r.Use(platformauth.RequireRole(platformauth.RoleAdmin))
				r.Put("/", h.UpdateCompany)
				r.Post("/{kind}", h.AddDefinition)
				r.Put("/{kind}/{definitionId}", h.UpdateDefinition)
				r.Delete("/{kind}/{definitionId}", h.DeleteDefinition)
			})
		})
	})
}

// ListCompanies implements GET /companies?page=&pageSize=
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	size, err := httpx.QueryInt(r, "pageSize", 20)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.List(r.Context(), service.ListOptions{Page: page, PageSize: size})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// CreateCompany implements POST /companies
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	company, err := h.svc.Create(r.Context(), audit(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/companies/%s", company.ID))
	httpx.WriteJSON(w, http.StatusCreated, company)
}

// GetCompany implements GET /companies/{companyId}
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "companyId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	company, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, company)
}

// UpdateCompany implements PUT /companies/{companyId}
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "companyId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var input service.UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	company, err := h.svc.Update(r.Context(), audit(r), id, input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.publish(r, company.ID, company)
	httpx.WriteJSON(w, http.StatusOK, company)
}

// DeleteCompany implements DELETE /companies/{companyId}
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "companyId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	company, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, company)
}

// AddDefinition implements POST /companies/{companyId}/{kind}
func (h *Handler) AddDefinition(w http.ResponseWriter, r *http.Request) {
	h.definition(w, r, http.StatusCreated, func(ops definitionOps, id uuid.UUID) (any, error) {
		return ops.add(w, r, id)
	})
}

// UpdateDefinition implements PUT /companies/{companyId}/{kind}/{definitionId}
func (h *Handler) UpdateDefinition(w http.ResponseWriter, r *http.Request) {
	h.definition(w, r, http.StatusOK, func(ops definitionOps, id uuid.UUID) (any, error) {
		key, err := httpx.PathString(r, "definitionId")
		if err != nil {
			return nil, err
		}
		return ops.update(w, r, id, key)
	})
}

// DeleteDefinition implements DELETE /companies/{companyId}/{kind}/{definitionId}
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	h.definition(w, r, http.StatusOK, func(ops definitionOps, id uuid.UUID) (any, error) {
		key, err := httpx.PathString(r, "definitionId")
		if err != nil {
			return nil, err
		}
		return ops.remove(r, id, key)
	})
}

func (h *Handler) definition(w http.ResponseWriter, r *http.Request, status int, run func(definitionOps, uuid.UUID) (any, error)) {
	id, err := httpx.PathUUID(r, "companyId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	kind := chi.URLParam(r, "kind")
	ops, ok := h.definitions[kind]
	if !ok {
		httpx.WriteError(w, r, h.logger, fmt.Errorf("definition kind %q: %w", kind, apperr.ErrNotFound))
		return
	}
	out, err := run(ops, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.publish(r, id, map[string]any{"kind": kind, "definition": out})
	httpx.WriteJSON(w, status, out)
}

// sameCompany rejects callers acting on a company other than their own. Super admins pass.
func (h *Handler) sameCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, ok := platformauth.UserFromContext(r.Context())
		if !ok || creds == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !creds.HasRole(platformauth.RoleSuperAdmin) && chi.URLParam(r, "companyId") != creds.CompanyID {
			httpx.WriteError(w, r, h.logger, fmt.Errorf("company outside caller scope: %w", apperr.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) publish(r *http.Request, companyID uuid.UUID, data any) {
	a := audit(r)
	h.notifier.Publish(context.WithoutCancel(r.Context()), notify.Event{
		Event:    notify.CompanyUpdated,
		Data:     data,
		UserName: a.ActorName(),
		Company:  companyID.String(),
	})
}

type definitionOps struct {
	add    func(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) (any, error)
	update func(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, key string) (any, error)
	remove func(r *http.Request, companyID uuid.UUID, key string) (any, error)
}

// bind adapts typed service calls to the shared definition routes.
func bind[T any](
	add func(context.Context, requesttrace.AuditInfo, uuid.UUID, T) (T, error),
	update func(context.Context, requesttrace.AuditInfo, uuid.UUID, T) (T, error),
	remove func(context.Context, requesttrace.AuditInfo, uuid.UUID, string) (T, error),
	withKey func(T, string) T,
) definitionOps {
	return definitionOps{
		add: func(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) (any, error) {
			var item T
			if err := httpx.DecodeJSON(w, r, &item); err != nil {
				return nil, err
			}
			return add(r.Context(), audit(r), companyID, item)
		},
		update: func(w http.ResponseWriter, r *http.Request, companyID uuid.UUID, key string) (any, error) {
			var item T
			if err := httpx.DecodeJSON(w, r, &item); err != nil {
				return nil, err
			}
			return update(r.Context(), audit(r), companyID, withKey(item, key))
		},
		remove: func(r *http.Request, companyID uuid.UUID, key string) (any, error) {
			return remove(r.Context(), audit(r), companyID, key)
		},
	}
}

func audit(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}
