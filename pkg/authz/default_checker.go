package authz

import (
	"context"
	"encoding/json"

	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// defaultChecker evaluates checks against an in-memory snapshot of the
// subject's assignments, loaded through the cache. One snapshot serves
// every check within its TTL, so a request performing many checks hits the
// store at most once per subject.
type defaultChecker struct {
	svc *Service
}

func (c *defaultChecker) hasRole(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error) {
	snap, err := c.subjectSnapshot(ctx, sub)
	if err != nil {
		return false, err
	}

	for _, name := range names {
		ok := c.roleMatch(snap.Roles, name, teamID)
		if ok && !requireAll {
			return true, nil
		}
		if !ok && requireAll {
			return false, nil
		}
	}

	// The loop completing means all matched (requireAll) or none did.
	return requireAll, nil
}

func (c *defaultChecker) roleMatch(roles []RoleAssignment, name string, teamID *int64) bool {
	for _, r := range roles {
		if r.Name == name && c.svc.teamMatches(r.TeamID, teamID) {
			return true
		}
	}
	return false
}

func (c *defaultChecker) hasPermission(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error) {
	snap, err := c.subjectSnapshot(ctx, sub)
	if err != nil {
		return false, err
	}

	for _, name := range names {
		ok, err := c.permissionMatch(ctx, snap, name, teamID)
		if err != nil {
			return false, err
		}
		if ok && !requireAll {
			return true, nil
		}
		if !ok && requireAll {
			return false, nil
		}
	}

	return requireAll, nil
}

// permissionMatch checks direct assignments first and falls back to the
// permission sets of the subject's in-scope roles.
func (c *defaultChecker) permissionMatch(ctx context.Context, snap *subjectSnapshot, name string, teamID *int64) (bool, error) {
	for _, p := range snap.Permissions {
		if c.svc.teamMatches(p.TeamID, teamID) && scopes.Match(p.Name, name) {
			return true, nil
		}
	}

	for _, r := range snap.Roles {
		if !c.svc.teamMatches(r.TeamID, teamID) {
			continue
		}
		perms, err := c.rolePermissions(ctx, r.RoleID)
		if err != nil {
			return false, err
		}
		for _, p := range perms {
			if scopes.Match(p.Name, name) {
				return true, nil
			}
		}
	}

	return false, nil
}

// subjectSnapshot loads the subject's roles and direct permissions, through
// the cache when enabled. Concurrent misses may compute the snapshot twice;
// the idempotent overwrite is harmless.
func (c *defaultChecker) subjectSnapshot(ctx context.Context, sub Subject) (*subjectSnapshot, error) {
	if !c.svc.cfg.CacheEnabled {
		return c.loadSubjectSnapshot(ctx, sub)
	}

	key := subjectCacheKey(sub)

	if raw, ok, err := c.svc.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		var snap subjectSnapshot
		// An undecodable entry is treated as a miss and overwritten below.
		if err := json.Unmarshal(raw, &snap); err == nil {
			return &snap, nil
		}
	}

	snap, err := c.loadSubjectSnapshot(ctx, sub)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := c.svc.cache.Set(ctx, key, raw, c.svc.cfg.CacheTTL); err != nil {
		return nil, err
	}

	return snap, nil
}

func (c *defaultChecker) loadSubjectSnapshot(ctx context.Context, sub Subject) (*subjectSnapshot, error) {
	roles, err := c.svc.store.SubjectRoles(ctx, sub)
	if err != nil {
		return nil, err
	}
	perms, err := c.svc.store.SubjectPermissions(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &subjectSnapshot{Roles: roles, Permissions: perms}, nil
}

// rolePermissions loads a role's own permission set, cached per role id
// with the same TTL and invalidation contract as subject snapshots.
func (c *defaultChecker) rolePermissions(ctx context.Context, roleID int64) ([]PermissionAssignment, error) {
	if !c.svc.cfg.CacheEnabled {
		return c.svc.store.RolePermissions(ctx, roleID)
	}

	key := rolePermissionsCacheKey(roleID)

	if raw, ok, err := c.svc.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		var perms []PermissionAssignment
		if err := json.Unmarshal(raw, &perms); err == nil {
			return perms, nil
		}
	}

	perms, err := c.svc.store.RolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(perms)
	if err != nil {
		return nil, err
	}
	if err := c.svc.cache.Set(ctx, key, raw, c.svc.cfg.CacheTTL); err != nil {
		return nil, err
	}

	return perms, nil
}
