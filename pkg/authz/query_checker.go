package authz

import (
	"context"

	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// queryChecker pushes every check down to the store as count queries. It
// never reads full assignment rows into memory, never touches the cache,
// and therefore always observes the current store state.
type queryChecker struct {
	svc    *Service
	counts CountStore
}

func (c *queryChecker) hasRole(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error) {
	filter := c.svc.teamFilter(teamID)

	n, err := c.counts.CountSubjectRoles(ctx, sub, names, filter)
	if err != nil {
		return false, err
	}

	if requireAll {
		// Counts are over distinct role names, so equality with the number
		// of requested names means every one matched.
		return n == int64(len(names)), nil
	}
	return n > 0, nil
}

func (c *queryChecker) hasPermission(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error) {
	filter := c.svc.teamFilter(teamID)

	if !requireAll {
		return c.anyPermission(ctx, sub, names, filter)
	}

	// A wildcard pattern may match several stored permissions, so a
	// combined count cannot be compared against len(names). Each requested
	// name is verified on its own instead.
	for _, name := range names {
		ok, err := c.anyPermission(ctx, sub, []string{name}, filter)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// anyPermission reports whether the subject holds at least one permission
// matching the names, counting direct assignments first and role-derived
// permissions second.
func (c *queryChecker) anyPermission(ctx context.Context, sub Subject, names []string, filter *TeamFilter) (bool, error) {
	exact, patterns := scopes.SplitPatterns(names)

	direct, err := c.counts.CountSubjectPermissions(ctx, sub, exact, patterns, filter)
	if err != nil {
		return false, err
	}
	if direct > 0 {
		return true, nil
	}

	derived, err := c.counts.CountRoleDerivedPermissions(ctx, sub, exact, patterns, filter)
	if err != nil {
		return false, err
	}

	return direct+derived > 0, nil
}
