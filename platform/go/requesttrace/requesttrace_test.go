package requesttrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

func TestContextRoundTrip(t *testing.T) {
	planner := AuditInfo{ActorKind: ActorKindUser, UserID: ptr("u-planner"), UserName: "planner", RequestID: "req-1"}

	got, ok := FromContext(IntoContext(context.Background(), planner))
	require.True(t, ok)
	require.Equal(t, planner, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
	require.Equal(t, ActorKindAnonymous, FromContextOrAnonymous(context.Background()).ActorKind)
}

func TestFromCredentialsCarriesCompany(t *testing.T) {
	creds := &platformauth.UserCredentials{
		ID:        "u-42",
		UserName:  "supervisor",
		Email:     "supervisor@acme.test",
		CompanyID: "c-acme",
		Roles:     []string{platformauth.RoleManager},
	}

	audit, err := FromCredentials(creds, "req-7")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.Equal(t, "u-42", *audit.UserID)
	require.Equal(t, "c-acme", audit.Company())
	require.Equal(t, "supervisor@acme.test", audit.Email)
	require.Equal(t, "supervisor", audit.ActorName())

	require.Len(t, audit.LogFields(), 3)
}

func TestFromCredentialsRejectsIncompleteCredentials(t *testing.T) {
	_, err := FromCredentials(nil, "req-1")
	require.Error(t, err)

	_, err = FromCredentials(&platformauth.UserCredentials{CompanyID: "c-acme"}, "req-1")
	require.Error(t, err)
}

func TestActorNameIsWrittenToAuditFields(t *testing.T) {
	cases := map[string]AuditInfo{
		"supervisor": {ActorKind: ActorKindUser, UserID: ptr("u-1"), UserName: "supervisor"},
		"u-1":        {ActorKind: ActorKindUser, UserID: ptr("u-1")},
		"system":     System("cli"),
		"anonymous":  Anonymous("req-login"),
	}
	for want, audit := range cases {
		require.Equal(t, want, audit.ActorName())
	}
}

func TestSystemAndAnonymousHaveNoCompany(t *testing.T) {
	for _, audit := range []AuditInfo{System("cli"), Anonymous("req-login")} {
		require.Nil(t, audit.UserID)
		require.Empty(t, audit.Company())
		require.Len(t, audit.LogFields(), 1)
	}
}

func ptr[T any](v T) *T { return &v }
