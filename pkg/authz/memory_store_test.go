package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ensure reuses existing rows", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()

		id1, err := store.EnsureRole(ctx, "admin")
		require.NoError(t, err)
		id2, err := store.EnsureRole(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		id3, err := store.EnsurePermission(ctx, "admin")
		require.NoError(t, err)
		assert.NotEqual(t, id1, id3, "kinds have separate namespaces")
	})

	t.Run("ensure rejects empty names", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()

		_, err := store.EnsureRole(ctx, "")
		assert.ErrorIs(t, err, authz.ErrInvalidArgument)
	})

	t.Run("find by name", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()

		id, err := store.EnsureTeam(ctx, "acme")
		require.NoError(t, err)

		got, err := store.FindIDByName(ctx, authz.KindTeam, "acme")
		require.NoError(t, err)
		assert.Equal(t, id, got)

		_, err = store.FindIDByName(ctx, authz.KindTeam, "ghost")
		assert.ErrorIs(t, err, authz.ErrNotFound)

		_, err = store.FindIDByName(ctx, "projects", "acme")
		assert.ErrorIs(t, err, authz.ErrInvalidArgument)
	})

	t.Run("attach rejects unknown targets", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		_, err := store.AttachRoles(ctx, sub, []int64{99}, nil)
		assert.ErrorIs(t, err, authz.ErrNotFound)
	})

	t.Run("same target under different teams is distinct", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		roleID, err := store.EnsureRole(ctx, "admin")
		require.NoError(t, err)
		teamID, err := store.EnsureTeam(ctx, "acme")
		require.NoError(t, err)

		cs, err := store.AttachRoles(ctx, sub, []int64{roleID}, nil)
		require.NoError(t, err)
		assert.Len(t, cs.Attached, 1)

		cs, err = store.AttachRoles(ctx, sub, []int64{roleID}, &teamID)
		require.NoError(t, err)
		assert.Len(t, cs.Attached, 1)

		// Re-attaching either triple is a no-op.
		cs, err = store.AttachRoles(ctx, sub, []int64{roleID}, &teamID)
		require.NoError(t, err)
		assert.True(t, cs.Empty())

		roles, err := store.SubjectRoles(ctx, sub)
		require.NoError(t, err)
		assert.Len(t, roles, 2)
	})

	t.Run("counts are over distinct names", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		roleID, err := store.EnsureRole(ctx, "admin")
		require.NoError(t, err)
		teamID, err := store.EnsureTeam(ctx, "acme")
		require.NoError(t, err)

		_, err = store.AttachRoles(ctx, sub, []int64{roleID}, nil)
		require.NoError(t, err)
		_, err = store.AttachRoles(ctx, sub, []int64{roleID}, &teamID)
		require.NoError(t, err)

		n, err := store.CountSubjectRoles(ctx, sub, []string{"admin"}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("team filter narrows counts", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		roleID, err := store.EnsureRole(ctx, "admin")
		require.NoError(t, err)
		teamID, err := store.EnsureTeam(ctx, "acme")
		require.NoError(t, err)
		_, err = store.AttachRoles(ctx, sub, []int64{roleID}, &teamID)
		require.NoError(t, err)

		// A filter with a nil team matches only teamless rows.
		n, err := store.CountSubjectRoles(ctx, sub, []string{"admin"}, &authz.TeamFilter{})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.CountSubjectRoles(ctx, sub, []string{"admin"}, &authz.TeamFilter{TeamID: &teamID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		// A nil filter applies no narrowing at all.
		n, err = store.CountSubjectRoles(ctx, sub, []string{"admin"}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("permission counts honor patterns", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		var ids []int64
		for _, name := range []string{"admin.posts", "admin.users", "reports.read"} {
			id, err := store.EnsurePermission(ctx, name)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		_, err := store.AttachPermissions(ctx, sub, ids, nil)
		require.NoError(t, err)

		n, err := store.CountSubjectPermissions(ctx, sub, nil, []string{"admin.*"}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = store.CountSubjectPermissions(ctx, sub, []string{"reports.read"}, []string{"admin.*"}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = store.CountSubjectPermissions(ctx, sub, nil, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("role derived counts follow the subject role link", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		roleID, err := store.EnsureRole(ctx, "editor")
		require.NoError(t, err)
		permID, err := store.EnsurePermission(ctx, "posts.write")
		require.NoError(t, err)
		teamID, err := store.EnsureTeam(ctx, "acme")
		require.NoError(t, err)

		_, err = store.AttachRolePermissions(ctx, roleID, []int64{permID})
		require.NoError(t, err)
		_, err = store.AttachRoles(ctx, sub, []int64{roleID}, &teamID)
		require.NoError(t, err)

		// The filter applies to the role assignment, not the permission.
		n, err := store.CountRoleDerivedPermissions(ctx, sub, []string{"posts.write"}, nil, &authz.TeamFilter{})
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.CountRoleDerivedPermissions(ctx, sub, []string{"posts.write"}, nil, &authz.TeamFilter{TeamID: &teamID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete permission reports affected roles and subjects", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()
		sub := authz.NewSubject("user", "1")

		roleID, err := store.EnsureRole(ctx, "editor")
		require.NoError(t, err)
		permID, err := store.EnsurePermission(ctx, "posts.write")
		require.NoError(t, err)
		_, err = store.AttachRolePermissions(ctx, roleID, []int64{permID})
		require.NoError(t, err)
		_, err = store.AttachPermissions(ctx, sub, []int64{permID}, nil)
		require.NoError(t, err)

		inv, err := store.DeletePermission(ctx, permID)
		require.NoError(t, err)
		assert.Equal(t, []int64{roleID}, inv.RoleIDs)
		assert.Equal(t, []authz.Subject{sub}, inv.Subjects)

		perms, err := store.RolePermissions(ctx, roleID)
		require.NoError(t, err)
		assert.Empty(t, perms)
	})

	t.Run("delete missing entity fails", func(t *testing.T) {
		t.Parallel()

		store := authz.NewMemoryStore()

		_, err := store.DeleteRole(ctx, 42)
		assert.ErrorIs(t, err, authz.ErrNotFound)
		_, err = store.DeletePermission(ctx, 42)
		assert.ErrorIs(t, err, authz.ErrNotFound)
		_, err = store.DeleteTeam(ctx, 42)
		assert.ErrorIs(t, err, authz.ErrNotFound)
	})
}
