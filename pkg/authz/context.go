package authz

import "context"

type subjectCtxKey struct{}

type teamCtxKey struct{}

// SetSubjectToContext stores the authenticated subject in the context for
// downstream authorization checks.
func SetSubjectToContext(ctx context.Context, sub Subject) context.Context {
	return context.WithValue(ctx, subjectCtxKey{}, sub)
}

// GetSubjectFromContext retrieves the subject stored in the context.
func GetSubjectFromContext(ctx context.Context) (Subject, bool) {
	sub, ok := ctx.Value(subjectCtxKey{}).(Subject)
	return sub, ok
}

// SetTeamToContext stores the active team reference in the context; the
// middleware scopes its checks to it when present.
func SetTeamToContext(ctx context.Context, team Ref) context.Context {
	return context.WithValue(ctx, teamCtxKey{}, team)
}

// GetTeamFromContext retrieves the team reference stored in the context.
func GetTeamFromContext(ctx context.Context) (Ref, bool) {
	team, ok := ctx.Value(teamCtxKey{}).(Ref)
	return team, ok
}
