package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/domains/logs/be/repo"
	"github.com/harmony-hq/harmony/domains/logs/be/service"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

func newRouter(t *testing.T, svc Logs, space tenant.Space, roles ...string) http.Handler {
	t.Helper()
	creds := &platformauth.UserCredentials{ID: uuid.NewString(), Roles: roles}
	h := New(svc, validation.New(), zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := tenant.WithSpace(platformauth.WithUser(req.Context(), creds), space)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Routes(r)
	return r
}

func TestListAndDeleteLogs(t *testing.T) {
	t.Parallel()

	clock := auditstamp.Fixed(time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC), time.UTC)
	svc := service.New(repo.NewMemoryStore(), clock)
	space := tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"}
	ctx := tenant.WithSpace(context.Background(), space)
	actor := requesttrace.AuditInfo{ActorKind: "user", UserName: "Ana", Email: "ana@acme.co"}
	require.NoError(t, svc.RecordFor(ctx, actor, service.TypeStall, "created stall Gate"))
	require.NoError(t, svc.RecordFor(ctx, actor, service.TypeWorker, "created worker Luis"))

	manager := newRouter(t, svc, space, platformauth.RoleManager)
	rec := httptest.NewRecorder()
	manager.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?month=03&year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body logsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Logs, 2)
	require.Equal(t, "created worker Luis", body.Logs[0].Message)

	rec = httptest.NewRecorder()
	manager.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?month=13", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	manager.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/logs/"+body.Logs[0].ID.String(), nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := newRouter(t, svc, space, platformauth.RoleAdmin)
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/logs/"+body.Logs[0].ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/logs/"+body.Logs[0].ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
}
