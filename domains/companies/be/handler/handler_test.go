package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/domains/companies/be/repo"
	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

type noopProvisioner struct{}

func (noopProvisioner) EnsureCompanySchema(context.Context, string) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type fixture struct {
	svc       *service.Service
	router    http.Handler
	publisher *recordingPublisher
}

func newFixture(t *testing.T, creds *platformauth.UserCredentials) fixture {
	t.Helper()
	svc := service.New(repo.NewMemoryStore(), noopProvisioner{},
		auditstamp.Fixed(time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC), time.UTC),
		validation.New(), persistence.MustNewDocumentValidator(), "harmony")
	pub := &recordingPublisher{}
	h := New(svc, pub, zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := platformauth.WithUser(req.Context(), creds)
			audit, err := requesttrace.FromCredentials(creds, "req-1")
			require.NoError(t, err)
			next.ServeHTTP(w, req.WithContext(requesttrace.IntoContext(ctx, audit)))
		})
	})
	h.Routes(r)
	return fixture{svc: svc, router: r, publisher: pub}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func superAdmin() *platformauth.UserCredentials {
	return &platformauth.UserCredentials{ID: "u-root", UserName: "root", Roles: []string{platformauth.RoleSuperAdmin}}
}

func TestCreateCompanyRequiresSuperAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, superAdmin())
	rec := do(t, f.router, http.MethodPost, "/companies", `{"name":"Acme Guards"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var company service.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &company))
	require.Equal(t, "acme_guards", company.DatabaseName)
	require.Equal(t, "/api/v1/companies/"+company.ID.String(), rec.Header().Get("Location"))

	admin := newFixture(t, &platformauth.UserCredentials{ID: "u1", CompanyID: company.ID.String(), Roles: []string{platformauth.RoleAdmin}})
	rec = do(t, admin.router, http.MethodPost, "/companies", `{"name":"Other"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDefinitionsAreLimitedToOwnCompany(t *testing.T) {
	t.Parallel()

	f := newFixture(t, superAdmin())
	company, err := f.svc.Create(context.Background(), requesttrace.System("seed"), service.CreateInput{Name: "Acme"})
	require.NoError(t, err)
	other, err := f.svc.Create(context.Background(), requesttrace.System("seed"), service.CreateInput{Name: "Other"})
	require.NoError(t, err)

	creds := &platformauth.UserCredentials{ID: "u1", UserName: "ana", CompanyID: company.ID.String(), Roles: []string{platformauth.RoleAdmin}}
	h := New(f.svc, f.publisher, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			audit, _ := requesttrace.FromCredentials(creds, "req-2")
			ctx := requesttrace.IntoContext(platformauth.WithUser(req.Context(), creds), audit)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Routes(r)

	rec := do(t, r, http.MethodPost, "/companies/"+company.ID.String()+"/tags", `{"name":"North","scope":"worker"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tag service.Tag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tag))
	require.NotEmpty(t, tag.ID)

	rec = do(t, r, http.MethodPut, "/companies/"+company.ID.String()+"/tags/"+tag.ID, `{"name":"North zone","scope":"worker"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.svc.Get(context.Background(), company.ID)
	require.NoError(t, err)
	require.Equal(t, "North zone", got.Tags[0].Name)
	require.Equal(t, "ana", got.UpdatedBy)

	rec = do(t, r, http.MethodPost, "/companies/"+other.ID.String()+"/tags", `{"name":"South","scope":"worker"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, "/companies/"+company.ID.String()+"/badges", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/companies/"+company.ID.String(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodDelete, "/companies/"+company.ID.String()+"/tags/"+tag.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 3)
	for _, e := range f.publisher.events {
		require.Equal(t, notify.CompanyUpdated, e.Event)
		require.Equal(t, company.ID.String(), e.Company)
		require.Equal(t, "ana", e.UserName)
	}
}

func TestFieldValidationIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture(t, superAdmin())
	company, err := f.svc.Create(context.Background(), requesttrace.System("seed"), service.CreateInput{Name: "Acme"})
	require.NoError(t, err)

	rec := do(t, f.router, http.MethodPost, "/companies/"+company.ID.String()+"/worker-fields", `{"name":"Size","type":"select"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "options")

	rec = do(t, f.router, http.MethodPost, "/companies/"+company.ID.String()+"/customer-fields", `{"name":"Contract","type":"text","active":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	fields, err := f.svc.ActiveFields(context.Background(), company.ID, service.ScopeCustomer)
	require.NoError(t, err)
	require.Len(t, fields, 1)
}
