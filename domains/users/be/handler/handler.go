package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/users/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// Users is the users surface served over HTTP.
type Users interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	List(ctx context.Context, caller *platformauth.UserCredentials, opts service.ListOptions) (service.ListResult, error)
	Create(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, input service.CreateInput) (service.User, error)
	Get(ctx context.Context, caller *platformauth.UserCredentials, id uuid.UUID) (service.User, error)
	Update(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, id uuid.UUID, input service.UpdateInput) (service.User, error)
	UpdateSelf(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, input service.UpdateSelfInput) (service.User, error)
	Delete(ctx context.Context, caller *platformauth.UserCredentials, id uuid.UUID) (service.User, error)
}

// Handler wires the users service to chi routes.
type Handler struct {
	svc      Users
	notifier notify.Publisher
	logger   *zap.Logger
}

// New constructs a Handler instance. notifier may be nil.
func New(svc Users, notifier notify.Publisher, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Handler{svc: svc, notifier: notifier, logger: logger}
}

// PublicRoutes mounts the unauthenticated login endpoint.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// Routes mounts /users. /users/me is open to every authenticated user.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Put("/me", h.UpdateMe)

		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleAdmin))
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{userId}", h.GetUser)
			r.Put("/{userId}", h.UpdateUser)
			r.Delete("/{userId}", h.DeleteUser)
		})
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login implements POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// ListUsers implements GET /users?page=&pageSize=&email=&sort=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts, err := buildListOptions(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.List(r.Context(), caller(r), opts)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// CreateUser implements POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	created, err := h.svc.Create(r.Context(), caller(r), audit(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.publish(r, notify.UserCreated, created)
	w.Header().Set("Location", fmt.Sprintf("/api/v1/users/%s", created.ID))
	httpx.WriteJSON(w, http.StatusCreated, created)
}

// GetUser implements GET /users/{userId}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "userId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	user, err := h.svc.Get(r.Context(), caller(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// UpdateUser implements PUT /users/{userId}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "userId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var input service.UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), caller(r), audit(r), id, input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.publish(r, notify.UserUpdated, updated)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

// DeleteUser implements DELETE /users/{userId}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "userId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	deleted, err := h.svc.Delete(r.Context(), caller(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.publish(r, notify.UserDeleted, deleted)
	w.WriteHeader(http.StatusNoContent)
}

// GetMe implements GET /users/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	creds := caller(r)
	if creds == nil {
		httpx.WriteError(w, r, h.logger, fmt.Errorf("missing credentials: %w", apperr.ErrUnauthorized))
		return
	}
	id, err := uuid.Parse(creds.ID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, service.ErrNotFound)
		return
	}
	user, err := h.svc.Get(r.Context(), creds, id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe implements PUT /users/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateSelfInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	updated, err := h.svc.UpdateSelf(r.Context(), caller(r), audit(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) publish(r *http.Request, event string, user service.User) {
	h.notifier.Publish(context.WithoutCancel(r.Context()), notify.Event{
		Event:    event,
		Data:     user,
		UserName: audit(r).ActorName(),
		Company:  user.CompanyID.String(),
	})
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		return service.ListOptions{}, err
	}
	size, err := httpx.QueryInt(r, "pageSize", 20)
	if err != nil {
		return service.ListOptions{}, err
	}
	opts := service.ListOptions{Page: page, PageSize: size}

	if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
		opts.Email = &email
	}
	if sort := strings.TrimSpace(r.URL.Query().Get("sort")); sort != "" {
		opts.Sort = &sort
	}
	return opts, nil
}

func caller(r *http.Request) *platformauth.UserCredentials {
	creds, _ := platformauth.UserFromContext(r.Context())
	return creds
}

func audit(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}
