package authz

import "context"

// Store is the read side of the assignment store. Implementations return
// assignment rows with their team scope attached; role-owned permissions
// are unscoped.
type Store interface {
	// FindIDByName resolves a unique name to its row id within the given
	// relationship kind. Returns ErrNotFound when no row matches.
	FindIDByName(ctx context.Context, kind Kind, name string) (int64, error)

	// SubjectRoles returns every role assigned to the subject, across all
	// teams.
	SubjectRoles(ctx context.Context, sub Subject) ([]RoleAssignment, error)

	// SubjectPermissions returns every permission assigned directly to the
	// subject, across all teams.
	SubjectPermissions(ctx context.Context, sub Subject) ([]PermissionAssignment, error)

	// RolePermissions returns the permission set owned by a role.
	RolePermissions(ctx context.Context, roleID int64) ([]PermissionAssignment, error)
}

// TeamFilter narrows assignment rows by team scope. A nil *TeamFilter
// applies no filtering; a filter with a nil TeamID matches only rows
// without a team.
type TeamFilter struct {
	TeamID *int64
}

// Matches reports whether an assignment's team id passes the filter.
// Meant for in-memory stores; SQL stores translate the filter into an
// equality predicate instead.
func (f *TeamFilter) Matches(teamID *int64) bool {
	if f == nil {
		return true
	}
	return teamIDEqual(teamID, f.TeamID)
}

// CountStore is the aggregate-query side of the store used by the query
// checker. Counts are over distinct matched names, so a role assigned under
// several teams still counts once.
//
// Exact names are matched by equality; patterns follow the wildcard rules
// of pkg/scopes (SQL stores translate "*" to "%").
type CountStore interface {
	CountSubjectRoles(ctx context.Context, sub Subject, names []string, team *TeamFilter) (int64, error)

	CountSubjectPermissions(ctx context.Context, sub Subject, exact, patterns []string, team *TeamFilter) (int64, error)

	// CountRoleDerivedPermissions counts permissions reachable through the
	// subject's roles; the team filter applies to the subject-role link.
	CountRoleDerivedPermissions(ctx context.Context, sub Subject, exact, patterns []string, team *TeamFilter) (int64, error)
}

// MutationStore is the write side of the store. Attach is idempotent per
// (subject, target, team) triple; sync replaces the target set within the
// given team scope. Entity deletion cascades to the assignment rows
// referencing the entity and reports what became stale.
type MutationStore interface {
	AttachRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error)
	DetachRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error)
	SyncRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error)

	AttachPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error)
	DetachPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error)
	SyncPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error)

	AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error)
	DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error)
	SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error)

	// EnsureRole and friends create the named row if absent and return its
	// id either way.
	EnsureRole(ctx context.Context, name string) (int64, error)
	EnsurePermission(ctx context.Context, name string) (int64, error)
	EnsureTeam(ctx context.Context, name string) (int64, error)

	DeleteRole(ctx context.Context, roleID int64) (Invalidations, error)
	DeletePermission(ctx context.Context, permissionID int64) (Invalidations, error)
	DeleteTeam(ctx context.Context, teamID int64) (Invalidations, error)

	// DeleteSubject removes every assignment held by the subject.
	DeleteSubject(ctx context.Context, sub Subject) error
}
