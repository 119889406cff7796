package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

type resolverFunc func(ctx context.Context, id uuid.UUID) (tenant.Space, error)

func (f resolverFunc) GetCompanyDatabase(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
	return f(ctx, id)
}

func TestWithCompanySpaceResolvesAndCaches(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	var calls atomic.Int32
	resolver := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		calls.Add(1)
		require.Equal(t, companyID, id)
		return tenant.Space{CompanyID: id, SchemaName: "harmony__company_acme"}, nil
	})

	var seen tenant.Space
	handler := WithCompanySpace(resolver, Config{CacheTTL: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.FromContext(r.Context())
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/stalls", nil)
		req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u", CompanyID: companyID.String()}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Equal(t, "harmony__company_acme", seen.SchemaName)
	require.EqualValues(t, 1, calls.Load())
}

func TestWithCompanySpaceRejectsUnknownCompany(t *testing.T) {
	t.Parallel()

	resolver := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		return tenant.Space{}, fmt.Errorf("company %s: %w", id, apperr.ErrTenantNotFound)
	})
	handler := WithCompanySpace(resolver, Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/stalls", nil)
	req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u", CompanyID: uuid.NewString()}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/stalls", nil)
	req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u", CompanyID: "not-a-uuid"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWithCompanySpaceReportsDirectoryOutage(t *testing.T) {
	t.Parallel()

	resolver := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		return tenant.Space{}, apperr.Storage("get company", errors.New("connection refused"))
	})
	handler := WithCompanySpace(resolver, Config{CacheTTL: time.Minute, Logger: zaptest.NewLogger(t)})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/stalls", nil)
	req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u", CompanyID: uuid.NewString()}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem httpx.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Equal(t, httpx.ProblemTypeInternal, problem.Type)
	require.NotContains(t, problem.Detail, "connection refused")
}

func TestWithCompanySpaceAnonymousPassesThrough(t *testing.T) {
	t.Parallel()

	resolver := resolverFunc(func(ctx context.Context, id uuid.UUID) (tenant.Space, error) {
		t.Fatal("resolver must not run")
		return tenant.Space{}, nil
	})
	called := false
	handler := WithCompanySpace(resolver, Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.True(t, called)
}

func TestSpaceCacheExpires(t *testing.T) {
	t.Parallel()

	c := newSpaceCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	space := tenant.Space{CompanyID: uuid.New()}
	c.put(space)
	_, ok := c.get(space.CompanyID)
	require.True(t, ok)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = c.get(space.CompanyID)
	require.False(t, ok)
}
