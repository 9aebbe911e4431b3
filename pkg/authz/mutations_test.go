package authz_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

// eventRecorder collects emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []authz.Event
}

func (r *eventRecorder) hook() authz.EventHook {
	return func(ctx context.Context, event authz.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
	}
}

func (r *eventRecorder) all() []authz.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]authz.Event(nil), r.events...)
}

func TestMutations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("read-only store rejects mutations", func(t *testing.T) {
		t.Parallel()

		store := &readOnlyStore{inner: authz.NewMemoryStore()}
		svc, err := authz.New(store, authz.WithConfig(baseConfig()))
		require.NoError(t, err)
		defer svc.Close()

		_, err = svc.AttachRoles(ctx, authz.NewSubject("user", "1"),
			[]authz.Ref{authz.ByID(1)}, authz.Ref{})
		assert.ErrorIs(t, err, authz.ErrStoreReadOnly)

		err = svc.DeleteSubject(ctx, authz.NewSubject("user", "1"))
		assert.ErrorIs(t, err, authz.ErrStoreReadOnly)
	})

	t.Run("attach is idempotent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		cs, err := f.svc.AttachRoles(ctx, f.sub, []authz.Ref{authz.ByName("role_a")}, authz.Ref{})
		require.NoError(t, err)
		assert.True(t, cs.Empty(), "already attached")
	})

	t.Run("sync replaces the set within team scope", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.TeamsEnabled = true
		f := newFixture(t, cfg)

		// Globally the subject holds role_a; under team_a role_b. Syncing
		// the global scope to role_b must leave the team assignment alone.
		cs, err := f.svc.SyncRoles(ctx, f.sub, []authz.Ref{authz.ByName("role_b")}, authz.Ref{})
		require.NoError(t, err)
		assert.Len(t, cs.Attached, 1)
		assert.Len(t, cs.Detached, 1)

		roles, err := f.store.SubjectRoles(ctx, f.sub)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		for _, r := range roles {
			assert.Equal(t, "role_b", r.Name)
		}
	})

	t.Run("events fire after the write", func(t *testing.T) {
		t.Parallel()

		rec := &eventRecorder{}
		f := newFixture(t, baseConfig(), authz.WithEventHook(rec.hook()))

		sub := authz.NewSubject("user", "9")
		_, err := f.svc.AttachRoles(ctx, sub, []authz.Ref{authz.ByName("role_a")}, authz.Ref{})
		require.NoError(t, err)

		_, err = f.svc.DetachRoles(ctx, sub, []authz.Ref{authz.ByName("role_a")}, authz.Ref{})
		require.NoError(t, err)

		events := rec.all()
		require.Len(t, events, 2)

		assert.Equal(t, authz.EventRolesAttached, events[0].Type)
		assert.Equal(t, sub, events[0].Subject)
		assert.Len(t, events[0].Changes.Attached, 1)
		assert.NotZero(t, events[0].ID)
		assert.False(t, events[0].OccurredAt.IsZero())

		assert.Equal(t, authz.EventRolesDetached, events[1].Type)
	})

	t.Run("delete role cascades and invalidates", func(t *testing.T) {
		t.Parallel()

		rec := &eventRecorder{}
		f := newFixture(t, baseConfig(), authz.WithEventHook(rec.hook()))

		// Warm the cache, then delete the role the subject holds.
		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_a"})
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, f.svc.DeleteRole(ctx, authz.ByName("role_a")))

		ok, err = f.svc.HasRole(ctx, f.sub, []string{"role_a"})
		require.NoError(t, err)
		assert.False(t, ok)

		// The role's permission disappears with it.
		ok, err = f.svc.HasPermission(ctx, f.sub, []string{"permission_a"})
		require.NoError(t, err)
		assert.False(t, ok)

		events := rec.all()
		require.NotEmpty(t, events)
		assert.Equal(t, authz.EventRoleDeleted, events[len(events)-1].Type)
	})

	t.Run("delete permission detaches it everywhere", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		ok, err := f.svc.HasPermission(ctx, f.sub, []string{"permission_a"})
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, f.svc.DeletePermission(ctx, authz.ByName("permission_a")))

		ok, err = f.svc.HasPermission(ctx, f.sub, []string{"permission_a"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete team drops its scoped assignments", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.TeamsEnabled = true
		f := newFixture(t, cfg)

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_b"}, authz.InTeam(authz.ByName("team_a")))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, f.svc.DeleteTeam(ctx, authz.ByName("team_a")))

		// The team itself is gone, so scoping to it fails resolution.
		_, err = f.svc.HasRole(ctx, f.sub, []string{"role_b"}, authz.InTeam(authz.ByName("team_a")))
		assert.ErrorIs(t, err, authz.ErrNotFound)

		// And the scoped assignment no longer exists at all.
		roles, err := f.store.SubjectRoles(ctx, f.sub)
		require.NoError(t, err)
		for _, r := range roles {
			assert.Nil(t, r.TeamID)
		}
	})

	t.Run("delete subject clears every assignment", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, baseConfig())

		require.NoError(t, f.svc.DeleteSubject(ctx, f.sub))

		ok, err := f.svc.HasRole(ctx, f.sub, []string{"role_a"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.svc.HasPermission(ctx, f.sub, []string{"permission_c"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("detach honors team scope", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()
		cfg.TeamsEnabled = true
		f := newFixture(t, cfg)

		// Detaching role_b without a team targets the global scope and
		// cannot remove the team_a assignment.
		cs, err := f.svc.DetachRoles(ctx, f.sub, []authz.Ref{authz.ByName("role_b")}, authz.Ref{})
		require.NoError(t, err)
		assert.True(t, cs.Empty())

		cs, err = f.svc.DetachRoles(ctx, f.sub, []authz.Ref{authz.ByName("role_b")}, authz.ByName("team_a"))
		require.NoError(t, err)
		assert.Len(t, cs.Detached, 1)
	})
}
