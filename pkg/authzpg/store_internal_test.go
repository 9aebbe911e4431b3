package authzpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

func TestLikePattern(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"admin.*", "admin.%"},
		{"*", "%"},
		{"*.read", "%.read"},
		{"plain", "plain"},
		{"100%_raise", `100\%\_raise`},
		{`back\slash`, `back\\slash`},
		{"a*b*c", "a%b%c"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, likePattern(tc.in), tc.in)
	}
}

func TestTableFor(t *testing.T) {
	t.Parallel()

	for kind, want := range map[authz.Kind]string{
		authz.KindRole:       "roles",
		authz.KindPermission: "permissions",
		authz.KindTeam:       "teams",
	} {
		got, err := tableFor(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := tableFor("projects")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestNamePredicate(t *testing.T) {
	t.Parallel()

	t.Run("exact only", func(t *testing.T) {
		t.Parallel()

		pred, args := namePredicate("p.name", []string{"a", "b"}, nil, []any{"user", "1"})
		assert.Equal(t, " AND p.name = ANY($3)", pred)
		assert.Len(t, args, 3)
	})

	t.Run("patterns only", func(t *testing.T) {
		t.Parallel()

		pred, args := namePredicate("p.name", nil, []string{"admin.*"}, []any{"user", "1"})
		assert.Equal(t, " AND p.name LIKE ANY($3)", pred)
		require.Len(t, args, 3)
		assert.Equal(t, []string{"admin.%"}, args[2])
	})

	t.Run("both", func(t *testing.T) {
		t.Parallel()

		pred, args := namePredicate("p.name", []string{"a"}, []string{"b.*"}, []any{"user", "1"})
		assert.Equal(t, " AND (p.name = ANY($3) OR p.name LIKE ANY($4))", pred)
		assert.Len(t, args, 4)
	})

	t.Run("neither matches nothing", func(t *testing.T) {
		t.Parallel()

		pred, args := namePredicate("p.name", nil, nil, []any{"user", "1"})
		assert.Equal(t, " AND FALSE", pred)
		assert.Len(t, args, 2)
	})
}

func TestTeamPredicate(t *testing.T) {
	t.Parallel()

	t.Run("nil filter adds nothing", func(t *testing.T) {
		t.Parallel()

		pred, args := teamPredicate("sr.team_id", nil, []any{"user"})
		assert.Empty(t, pred)
		assert.Len(t, args, 1)
	})

	t.Run("nil team compares against NULL", func(t *testing.T) {
		t.Parallel()

		pred, args := teamPredicate("sr.team_id", &authz.TeamFilter{}, []any{"user"})
		assert.Equal(t, " AND sr.team_id IS NOT DISTINCT FROM $2", pred)
		require.Len(t, args, 2)
		assert.Nil(t, args[1])
	})

	t.Run("team id is appended", func(t *testing.T) {
		t.Parallel()

		teamID := int64(7)
		pred, args := teamPredicate("sp.team_id", &authz.TeamFilter{TeamID: &teamID}, nil)
		assert.Equal(t, " AND sp.team_id IS NOT DISTINCT FROM $1", pred)
		require.Len(t, args, 1)
	})
}
