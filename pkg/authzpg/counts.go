package authzpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

// teamPredicate renders the team-scope condition for the given column.
// IS NOT DISTINCT FROM treats two NULLs as equal, which is exactly the
// "nil team equals nil team" rule of the checker. A nil filter applies
// no condition.
func teamPredicate(column string, team *authz.TeamFilter, args []any) (string, []any) {
	if team == nil {
		return "", args
	}
	args = append(args, team.TeamID)
	return fmt.Sprintf(" AND %s IS NOT DISTINCT FROM $%d", column, len(args)), args
}

// namePredicate renders the name-match condition for exact names and
// wildcard patterns. Either list may be empty; when both are, the
// predicate matches nothing.
func namePredicate(column string, exact, patterns []string, args []any) (string, []any) {
	switch {
	case len(exact) > 0 && len(patterns) > 0:
		args = append(args, exact, likePatterns(patterns))
		return fmt.Sprintf(" AND (%s = ANY($%d) OR %s LIKE ANY($%d))",
			column, len(args)-1, column, len(args)), args
	case len(exact) > 0:
		args = append(args, exact)
		return fmt.Sprintf(" AND %s = ANY($%d)", column, len(args)), args
	case len(patterns) > 0:
		args = append(args, likePatterns(patterns))
		return fmt.Sprintf(" AND %s LIKE ANY($%d)", column, len(args)), args
	default:
		return " AND FALSE", args
	}
}

func (s *Store) CountSubjectRoles(ctx context.Context, sub authz.Subject, names []string, team *authz.TeamFilter) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	query := `
		SELECT COUNT(DISTINCT r.name)
		FROM subject_roles sr
		JOIN roles r ON r.id = sr.role_id
		WHERE sr.subject_kind = $1 AND sr.subject_id = $2 AND r.name = ANY($3)`
	args := []any{sub.Kind, sub.ID, names}

	pred, args := teamPredicate("sr.team_id", team, args)
	query += pred

	return s.count(ctx, query, args)
}

func (s *Store) CountSubjectPermissions(ctx context.Context, sub authz.Subject, exact, patterns []string, team *authz.TeamFilter) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT p.name)
		FROM subject_permissions sp
		JOIN permissions p ON p.id = sp.permission_id
		WHERE sp.subject_kind = $1 AND sp.subject_id = $2`
	args := []any{sub.Kind, sub.ID}

	pred, args := namePredicate("p.name", exact, patterns, args)
	query += pred
	pred, args = teamPredicate("sp.team_id", team, args)
	query += pred

	return s.count(ctx, query, args)
}

func (s *Store) CountRoleDerivedPermissions(ctx context.Context, sub authz.Subject, exact, patterns []string, team *authz.TeamFilter) (int64, error) {
	// The team filter applies to the subject-role link; role-owned
	// permissions themselves are unscoped.
	query := `
		SELECT COUNT(DISTINCT p.name)
		FROM subject_roles sr
		JOIN role_permissions rp ON rp.role_id = sr.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE sr.subject_kind = $1 AND sr.subject_id = $2`
	args := []any{sub.Kind, sub.ID}

	pred, args := namePredicate("p.name", exact, patterns, args)
	query += pred
	pred, args = teamPredicate("sr.team_id", team, args)
	query += pred

	return s.count(ctx, query, args)
}

func (s *Store) count(ctx context.Context, query string, args []any) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return n, nil
}
