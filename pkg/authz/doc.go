// Package authz provides role/permission-based access control with optional
// team (tenant) scoping and cached evaluation.
//
// A Service answers three questions about a subject: does it hold a role,
// does it hold a permission, and does it pass a combined role+permission
// ability check. Assignments live in a Store; evaluation results are
// memoized per subject in a Cache so repeated checks within a request do not
// hit the store again.
//
// Two evaluation strategies are available, selected via Config.Checker:
//
//   - CheckerDefault loads the subject's role and permission assignments
//     once (through the cache) and evaluates matches in memory. Best when
//     many checks run against the same subject.
//   - CheckerQuery pushes every check down to the store as count queries.
//     Nothing is cached; results are always current. Best for very large
//     permission sets or when staleness is unacceptable.
//
// Both strategies return identical results for the same underlying data.
//
// Permission queries support wildcards: checking "admin.*" passes when the
// subject holds any permission under the "admin." prefix. Role names are
// always matched exactly.
//
// When team scoping is enabled, role and permission assignments may carry a
// team id, and checks may be narrowed to a team via InTeam. Without
// Config.StrictTeamCheck an unscoped check matches assignments from any
// team; with it, an unscoped check only matches assignments without a team.
//
// Basic usage:
//
//	store := authz.NewMemoryStore()
//	svc, err := authz.New(store, authz.WithConfig(authz.Config{
//	    TeamsEnabled: true,
//	    CacheEnabled: true,
//	}))
//
//	sub := authz.NewSubject("user", "42")
//	ok, err := svc.HasPermission(ctx, sub, []string{"users.read"})
//	ok, err = svc.HasRole(ctx, sub, []string{"admin", "owner"}, authz.RequireAll())
//	ok, err = svc.HasPermission(ctx, sub, []string{"billing.*"}, authz.InTeam(authz.ByName("acme")))
//
// Mutations go through the Service as well, which invalidates the affected
// cache entries after the store write and emits an Event to the optional
// hook:
//
//	_, err = svc.AttachRoles(ctx, sub, []authz.Ref{authz.ByName("admin")}, authz.Ref{})
package authz
