package authz_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readOnlyStore exposes only the read side of a memory store, hiding its
// count and mutation methods.
type readOnlyStore struct {
	inner *authz.MemoryStore
}

func (s *readOnlyStore) FindIDByName(ctx context.Context, kind authz.Kind, name string) (int64, error) {
	return s.inner.FindIDByName(ctx, kind, name)
}

func (s *readOnlyStore) SubjectRoles(ctx context.Context, sub authz.Subject) ([]authz.RoleAssignment, error) {
	return s.inner.SubjectRoles(ctx, sub)
}

func (s *readOnlyStore) SubjectPermissions(ctx context.Context, sub authz.Subject) ([]authz.PermissionAssignment, error) {
	return s.inner.SubjectPermissions(ctx, sub)
}

func (s *readOnlyStore) RolePermissions(ctx context.Context, roleID int64) ([]authz.PermissionAssignment, error) {
	return s.inner.RolePermissions(ctx, roleID)
}

// fixture seeds the canonical scenario used across the checker tests:
//
//	role_a owns permission_a, held by the subject without a team
//	role_b owns permission_b, held by the subject under team_a
//	permission_c is assigned directly under team_a
type fixture struct {
	svc   *authz.Service
	store *authz.MemoryStore
	sub   authz.Subject
	teamA int64
}

func newFixture(t *testing.T, cfg authz.Config, opts ...authz.Option) *fixture {
	t.Helper()

	ctx := context.Background()
	store := authz.NewMemoryStore()

	roleA, err := store.EnsureRole(ctx, "role_a")
	require.NoError(t, err)
	roleB, err := store.EnsureRole(ctx, "role_b")
	require.NoError(t, err)
	permA, err := store.EnsurePermission(ctx, "permission_a")
	require.NoError(t, err)
	permB, err := store.EnsurePermission(ctx, "permission_b")
	require.NoError(t, err)
	permC, err := store.EnsurePermission(ctx, "permission_c")
	require.NoError(t, err)
	teamA, err := store.EnsureTeam(ctx, "team_a")
	require.NoError(t, err)

	_, err = store.AttachRolePermissions(ctx, roleA, []int64{permA})
	require.NoError(t, err)
	_, err = store.AttachRolePermissions(ctx, roleB, []int64{permB})
	require.NoError(t, err)

	sub := authz.NewSubject("user", "1")
	_, err = store.AttachRoles(ctx, sub, []int64{roleA}, nil)
	require.NoError(t, err)
	_, err = store.AttachRoles(ctx, sub, []int64{roleB}, &teamA)
	require.NoError(t, err)
	_, err = store.AttachPermissions(ctx, sub, []int64{permC}, &teamA)
	require.NoError(t, err)

	svc, err := authz.New(store, append([]authz.Option{
		authz.WithConfig(cfg),
		authz.WithLogger(discardLogger()),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{svc: svc, store: store, sub: sub, teamA: teamA}
}

func baseConfig() authz.Config {
	return authz.Config{
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil store", func(t *testing.T) {
		t.Parallel()

		_, err := authz.New(nil)
		assert.ErrorIs(t, err, authz.ErrInvalidArgument)
	})

	t.Run("rejects unknown checker", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.Checker = "psychic"
		_, err := authz.New(authz.NewMemoryStore(), authz.WithConfig(cfg))
		assert.ErrorIs(t, err, authz.ErrInvalidArgument)
	})

	t.Run("rejects unknown return type", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.ReturnType = "json"
		_, err := authz.New(authz.NewMemoryStore(), authz.WithConfig(cfg))
		assert.ErrorIs(t, err, authz.ErrInvalidArgument)
	})

	t.Run("rejects query checker over a store without counts", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.Checker = authz.CheckerQuery
		store := &readOnlyStore{inner: authz.NewMemoryStore()}
		_, err := authz.New(store, authz.WithConfig(cfg))
		assert.ErrorIs(t, err, authz.ErrUnsupportedChecker)
	})

	t.Run("applies defaults to zero config", func(t *testing.T) {
		t.Parallel()

		svc, err := authz.New(authz.NewMemoryStore())
		require.NoError(t, err)
		defer svc.Close()

		cfg := svc.Config()
		assert.Equal(t, authz.CheckerDefault, cfg.Checker)
		assert.Equal(t, authz.ReturnBoolean, cfg.ReturnType)
		assert.Equal(t, "|", cfg.AbilityDelimiter)
		assert.Equal(t, time.Hour, cfg.CacheTTL)
	})
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("AUTHZ_TEAMS_ENABLED", "true")
	t.Setenv("AUTHZ_TEAMS_STRICT_CHECK", "true")
	t.Setenv("AUTHZ_CACHE_TTL", "5m")
	t.Setenv("AUTHZ_ABILITY_RETURN_TYPE", "both")

	svc, err := authz.NewFromEnv(authz.NewMemoryStore())
	require.NoError(t, err)
	defer svc.Close()

	cfg := svc.Config()
	assert.True(t, cfg.TeamsEnabled)
	assert.True(t, cfg.StrictTeamCheck)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, authz.ReturnBoth, cfg.ReturnType)
}

func TestServiceHasRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("single role", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_a"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.svc.HasRole(ctx, f.sub, []string{"role_c"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("any semantics by default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_c", "role_a"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("require all", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_a", "role_b"}, authz.RequireAll())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.svc.HasRole(ctx, f.sub, []string{"role_a", "role_c"}, authz.RequireAll())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty list is trivially true", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.svc.HasRole(ctx, f.sub, nil, authz.RequireAll())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("duplicate names are deduplicated", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_a", "role_a"}, authz.RequireAll())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("role names never match as patterns", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_*"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown subject holds nothing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasRole(ctx, authz.NewSubject("user", "999"), []string{"role_a"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown team name fails the check", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.TeamsEnabled = true
		f := newFixture(t, cfg)

		_, err := f.svc.HasRole(ctx, f.sub, []string{"role_a"}, authz.InTeam(authz.ByName("ghost")))
		assert.ErrorIs(t, err, authz.ErrNotFound)
	})
}

func TestServiceHasPermission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("direct permission", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub, []string{"permission_c"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("permission through role", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub, []string{"permission_a"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing permission", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub, []string{"permission_z"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("require all mixes direct and role-derived", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub,
			[]string{"permission_a", "permission_b", "permission_c"}, authz.RequireAll())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.svc.HasPermission(ctx, f.sub,
			[]string{"permission_a", "permission_z"}, authz.RequireAll())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty list is trivially true", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub, []string{})
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestServiceWildcards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T, cfg authz.Config) (*authz.Service, authz.Subject) {
		t.Helper()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "7")

		ids := make([]int64, 0, 3)
		for _, name := range []string{"admin.posts", "admin.users", "reports.read"} {
			id, err := store.EnsurePermission(ctx, name)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		_, err := store.AttachPermissions(ctx, sub, ids, nil)
		require.NoError(t, err)

		svc, err := authz.New(store, authz.WithConfig(cfg), authz.WithLogger(discardLogger()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = svc.Close() })

		return svc, sub
	}

	for _, checker := range []authz.CheckerKind{authz.CheckerDefault, authz.CheckerQuery} {
		checker := checker
		t.Run(string(checker), func(t *testing.T) {
			t.Parallel()

			cfg := baseConfig()
			cfg.Checker = checker
			svc, sub := seed(t, cfg)

			t.Run("pattern matches stored names", func(t *testing.T) {
				ok, err := svc.HasPermission(ctx, sub, []string{"admin.*"})
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("pattern requires full match", func(t *testing.T) {
				ok, err := svc.HasPermission(ctx, sub, []string{"admin"})
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("case sensitive", func(t *testing.T) {
				ok, err := svc.HasPermission(ctx, sub, []string{"Admin.*"})
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("unmatched pattern", func(t *testing.T) {
				ok, err := svc.HasPermission(ctx, sub, []string{"billing.*"})
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("require all with patterns", func(t *testing.T) {
				ok, err := svc.HasPermission(ctx, sub,
					[]string{"admin.*", "reports.read"}, authz.RequireAll())
				require.NoError(t, err)
				assert.True(t, ok)

				// One pattern matching two rows must not compensate for a
				// name nothing matches.
				ok, err = svc.HasPermission(ctx, sub,
					[]string{"admin.*", "billing.read"}, authz.RequireAll())
				require.NoError(t, err)
				assert.False(t, ok)
			})
		})
	}
}
