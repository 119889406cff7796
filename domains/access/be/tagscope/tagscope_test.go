package tagscope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
)

type record struct {
	id   string
	tags []string
}

func (r record) ScopeTags() []string { return r.tags }

func TestVisible(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		scope Scope
		tags  []string
		want  bool
	}{
		{name: "all sentinel", scope: Scope{"all"}, tags: nil, want: true},
		{name: "intersection", scope: Scope{"north", "south"}, tags: []string{"south"}, want: true},
		{name: "disjoint", scope: Scope{"north"}, tags: []string{"south"}, want: false},
		{name: "empty scope", scope: Scope{}, tags: []string{"south"}, want: false},
		{name: "untagged record", scope: Scope{"north"}, tags: nil, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Visible(tc.scope, tc.tags))
		})
	}
}

func TestAuthorizeReturnsUnauthorizedNotNotFound(t *testing.T) {
	t.Parallel()

	err := Authorize(Scope{"north"}, []string{"south"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.NotErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, Authorize(Scope{"north"}, []string{"north", "east"}))
}

func TestFilterKeepsOrder(t *testing.T) {
	t.Parallel()

	records := []record{
		{id: "1", tags: []string{"north"}},
		{id: "2", tags: []string{"south"}},
		{id: "3", tags: []string{"north", "south"}},
	}

	got := Filter(Scope{"north"}, records)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].id)
	require.Equal(t, "3", got[1].id)

	require.Len(t, Filter(Scope{"all"}, records), 3)
}

func TestSQLScope(t *testing.T) {
	t.Parallel()

	all, tags := SQLScope(Scope{"north", "all"})
	require.True(t, all)
	require.Nil(t, tags)

	all, tags = SQLScope(Scope{"north"})
	require.False(t, all)
	require.Equal(t, []string{"north"}, tags)
}

func TestScopesFromCredentials(t *testing.T) {
	t.Parallel()

	creds := &platformauth.UserCredentials{Customers: []string{"vip"}, Workers: []string{"all"}}
	require.Equal(t, Scope{"vip"}, CustomerScope(creds))
	require.True(t, WorkerScope(creds).Unrestricted())

	super := &platformauth.UserCredentials{Roles: []string{platformauth.RoleSuperAdmin}}
	require.True(t, CustomerScope(super).Unrestricted())

	require.Empty(t, CustomerScope(nil))
}
