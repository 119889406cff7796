package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	"github.com/harmony-hq/harmony/domains/customers/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

type mockService struct {
	listFn   func(ctx context.Context, scope tagscope.Scope, opts service.ListOptions) (service.ListResult, error)
	getFn    func(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (service.Customer, error)
	createFn func(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input service.CreateInput) (service.Customer, error)
	updateFn func(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input service.UpdateInput) (service.Customer, error)
	deleteFn func(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (service.Customer, error)
}

func (m *mockService) List(ctx context.Context, scope tagscope.Scope, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, scope, opts)
}

func (m *mockService) Get(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (service.Customer, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, scope, id)
}

func (m *mockService) Create(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input service.CreateInput) (service.Customer, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, audit, scope, input)
}

func (m *mockService) Update(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input service.UpdateInput) (service.Customer, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, audit, scope, id, input)
}

func (m *mockService) Delete(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (service.Customer, error) {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, audit, scope, id)
}

func newRouter(t *testing.T, svc Customers, creds *platformauth.UserCredentials) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			audit, _ := requesttrace.FromCredentials(creds, "req-1")
			ctx := requesttrace.IntoContext(platformauth.WithUser(req.Context(), creds), audit)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Routes(r)
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListCustomersUsesCallerScope(t *testing.T) {
	t.Parallel()

	reader := &platformauth.UserCredentials{
		ID:        uuid.NewString(),
		Roles:     []string{platformauth.RoleReadCustomers},
		Customers: []string{"north"},
	}
	svc := &mockService{listFn: func(_ context.Context, scope tagscope.Scope, opts service.ListOptions) (service.ListResult, error) {
		require.Equal(t, tagscope.Scope{"north"}, scope)
		require.Equal(t, "banco", opts.Search)
		require.Equal(t, 10, opts.Limit)
		require.Equal(t, 20, opts.Skip)
		require.NotNil(t, opts.Active)
		require.True(t, *opts.Active)
		return service.ListResult{Customers: []service.Customer{{Name: "Banco Norte"}}, Total: 21}, nil
	}}
	router := newRouter(t, svc, reader)

	rec := serve(t, router, http.MethodGet, "/customers?search=banco&limit=10&skip=20&active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body service.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 21, body.Total)
	require.Equal(t, "Banco Norte", body.Customers[0].Name)

	rec = serve(t, router, http.MethodGet, "/customers?limit=ten", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerWritesRequireWriterRole(t *testing.T) {
	t.Parallel()

	reader := &platformauth.UserCredentials{ID: uuid.NewString(), Roles: []string{platformauth.RoleReadCustomers}}
	router := newRouter(t, &mockService{}, reader)

	rec := serve(t, router, http.MethodPost, "/customers", `{"name":"Banco","identification":"1"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, router, http.MethodDelete, "/customers/"+uuid.NewString(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateCustomer(t *testing.T) {
	t.Parallel()

	writer := &platformauth.UserCredentials{ID: uuid.NewString(), UserName: "ana", Roles: []string{platformauth.RoleHandleCustomers}}
	id := uuid.New()
	svc := &mockService{createFn: func(_ context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input service.CreateInput) (service.Customer, error) {
		require.Equal(t, "ana", audit.ActorName())
		require.Empty(t, scope)
		require.Equal(t, "Banco Norte", input.Name)
		require.Equal(t, []string{"north"}, input.Tags)
		return service.Customer{ID: id, Name: input.Name}, nil
	}}
	router := newRouter(t, svc, writer)

	rec := serve(t, router, http.MethodPost, "/customers", `{"name":"Banco Norte","identification":"900-1","tags":["north"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/customers/"+id.String(), rec.Header().Get("Location"))
}

func TestOutOfScopeCustomerIsForbidden(t *testing.T) {
	t.Parallel()

	admin := &platformauth.UserCredentials{ID: uuid.NewString(), Roles: []string{platformauth.RoleAdmin}, Customers: []string{"north"}}
	svc := &mockService{
		getFn: func(context.Context, tagscope.Scope, uuid.UUID) (service.Customer, error) {
			return service.Customer{}, apperr.ErrUnauthorized
		},
		deleteFn: func(context.Context, requesttrace.AuditInfo, tagscope.Scope, uuid.UUID) (service.Customer, error) {
			return service.Customer{}, service.ErrNotFound
		},
	}
	router := newRouter(t, svc, admin)

	rec := serve(t, router, http.MethodGet, "/customers/"+uuid.NewString(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, router, http.MethodDelete, "/customers/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, router, http.MethodGet, "/customers/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
