package authz

import (
	"context"
	"net/http"
)

// HTTP middleware translating evaluation results into responses: a subject
// missing from the request context yields 401, a negative check 403, and an
// evaluation error 500. The evaluation itself stays inside the Service;
// these wrappers are deliberately thin.

// RequireRole allows the request through only when the context subject
// holds the listed roles. Accepts the same options as Service.HasRole; a
// team stored in the request context is applied automatically unless the
// options already scope the check.
func RequireRole(svc *Service, names []string, opts ...CheckOption) func(http.Handler) http.Handler {
	return requireMiddleware(svc, opts, func(ctx context.Context, sub Subject, o []CheckOption) (bool, error) {
		return svc.HasRole(ctx, sub, names, o...)
	})
}

// RequirePermission allows the request through only when the context
// subject holds the listed permissions (wildcards included).
func RequirePermission(svc *Service, names []string, opts ...CheckOption) func(http.Handler) http.Handler {
	return requireMiddleware(svc, opts, func(ctx context.Context, sub Subject, o []CheckOption) (bool, error) {
		return svc.HasPermission(ctx, sub, names, o...)
	})
}

// RequireAbility allows the request through only when the context subject
// passes the combined role+permission check.
func RequireAbility(svc *Service, roles, permissions []string, opts ...CheckOption) func(http.Handler) http.Handler {
	return requireMiddleware(svc, opts, func(ctx context.Context, sub Subject, o []CheckOption) (bool, error) {
		res, err := svc.Ability(ctx, sub, roles, permissions, append(o, WithReturnType(ReturnBoolean))...)
		if err != nil {
			return false, err
		}
		return res.Ok, nil
	})
}

func requireMiddleware(svc *Service, opts []CheckOption, check func(context.Context, Subject, []CheckOption) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sub, ok := GetSubjectFromContext(ctx)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			callOpts := opts
			if team, ok := GetTeamFromContext(ctx); ok {
				callOpts = append([]CheckOption{InTeam(team)}, opts...)
			}

			allowed, err := check(ctx, sub, callOpts)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
