package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultCredentialExtractor(t *testing.T) {
	t.Parallel()

	creds, err := DefaultCredentialExtractor(map[string]interface{}{
		"sub":       "user-123",
		"userName":  "jdoe",
		"email":     "jdoe@example.com",
		"company":   "company-1",
		"roles":     []interface{}{"manager", 7, ""},
		"customers": []string{"north"},
		"workers":   []interface{}{"all"},
	})
	require.NoError(t, err)
	require.Equal(t, "user-123", creds.ID)
	require.Equal(t, "company-1", creds.CompanyID)
	require.Equal(t, []string{"manager"}, creds.Roles)
	require.Equal(t, []string{"north"}, creds.Customers)
	require.Equal(t, []string{"all"}, creds.Workers)
}

func TestDefaultCredentialExtractorRequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := DefaultCredentialExtractor(map[string]interface{}{"email": "x@example.com"})
	require.Error(t, err)
}

func TestHasAnyRoleSuperAdminBypass(t *testing.T) {
	t.Parallel()

	super := &UserCredentials{Roles: []string{RoleSuperAdmin}}
	require.True(t, super.HasAnyRole(RoleHandleStalls))

	reader := &UserCredentials{Roles: []string{RoleReadStalls}}
	require.True(t, reader.HasAnyRole(StallReaders...))
	require.False(t, reader.HasAnyRole(StallWriters...))

	var none *UserCredentials
	require.False(t, none.HasAnyRole(RoleAdmin))
}

func TestTokenManagerRoundTrip(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", time.Hour)
	token, expiresAt, err := tm.Issue(UserCredentials{
		ID:        "user-1",
		UserName:  "jdoe",
		CompanyID: "company-1",
		Roles:     []string{RoleAdmin},
		Customers: []string{ScopeAllSentinel},
	})
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := tm.Verifier()(context.Background(), token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "user-1", creds.ID)
	require.Equal(t, []string{RoleAdmin}, creds.Roles)
	require.Equal(t, []string{ScopeAllSentinel}, creds.Customers)
}

func TestTokenManagerRejectsForeignSecret(t *testing.T) {
	t.Parallel()

	token, _, err := NewTokenManager("one", time.Hour).Issue(UserCredentials{ID: "u"})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Validate(token)
	require.Error(t, err)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", time.Minute)
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := tm.Issue(UserCredentials{ID: "u"})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Validate(token)
	require.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("secret", time.Hour)
	token, _, err := tm.Issue(UserCredentials{ID: "user-1", Roles: []string{RoleWorker}})
	require.NoError(t, err)

	var got *UserCredentials
	handler := JWT(tm.Verifier(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	require.Equal(t, "user-1", got.ID)

	got = nil
	req = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)

	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := RequireRole(ShiftWriters...)(ok)

	cases := []struct {
		name  string
		creds *UserCredentials
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"worker", &UserCredentials{ID: "u", Roles: []string{RoleWorker}}, http.StatusForbidden},
		{"manager", &UserCredentials{ID: "u", Roles: []string{RoleManager}}, http.StatusNoContent},
		{"super admin", &UserCredentials{ID: "u", Roles: []string{RoleSuperAdmin}}, http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/shifts", nil)
			if tc.creds != nil {
				req = req.WithContext(WithUser(req.Context(), tc.creds))
			}
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
