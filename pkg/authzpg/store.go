package authzpg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

var (
	ErrQueryFailed   = errors.New("failed to query assignment store")
	ErrInvalidKind   = errors.New("invalid relationship kind")
	ErrMutateFailed  = errors.New("failed to mutate assignment store")
	ErrTxBeginFailed = errors.New("failed to begin transaction")
)

// Store is a PostgreSQL-backed assignment store using pgx/v5. It
// implements authz.Store, authz.CountStore, and authz.MutationStore, so
// it serves both checker strategies and the write path.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on top of an established connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// tableFor maps a relationship kind to its backing table. Kind is a
// closed enum, so the returned name is safe to interpolate.
func tableFor(kind authz.Kind) (string, error) {
	switch kind {
	case authz.KindRole:
		return "roles", nil
	case authz.KindPermission:
		return "permissions", nil
	case authz.KindTeam:
		return "teams", nil
	default:
		return "", errors.Join(ErrInvalidKind, fmt.Errorf("kind %q", kind))
	}
}

func (s *Store) FindIDByName(ctx context.Context, kind authz.Kind, name string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, table),
		name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Join(authz.ErrNotFound, fmt.Errorf("%s %q", kind, name))
	}
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return id, nil
}

func (s *Store) SubjectRoles(ctx context.Context, sub authz.Subject) ([]authz.RoleAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, sr.team_id
		FROM subject_roles sr
		JOIN roles r ON r.id = sr.role_id
		WHERE sr.subject_kind = $1 AND sr.subject_id = $2
		ORDER BY r.id`,
		sub.Kind, sub.ID,
	)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []authz.RoleAssignment
	for rows.Next() {
		var a authz.RoleAssignment
		if err := rows.Scan(&a.RoleID, &a.Name, &a.TeamID); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SubjectPermissions(ctx context.Context, sub authz.Subject) ([]authz.PermissionAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, sp.team_id
		FROM subject_permissions sp
		JOIN permissions p ON p.id = sp.permission_id
		WHERE sp.subject_kind = $1 AND sp.subject_id = $2
		ORDER BY p.id`,
		sub.Kind, sub.ID,
	)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []authz.PermissionAssignment
	for rows.Next() {
		var a authz.PermissionAssignment
		if err := rows.Scan(&a.PermissionID, &a.Name, &a.TeamID); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) RolePermissions(ctx context.Context, roleID int64) ([]authz.PermissionAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.id`,
		roleID,
	)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []authz.PermissionAssignment
	for rows.Next() {
		var a authz.PermissionAssignment
		if err := rows.Scan(&a.PermissionID, &a.Name); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// likePattern converts a wildcard name into a LIKE pattern: "*" becomes
// "%" and the LIKE metacharacters in the literal parts are escaped with
// the default backslash escape.
func likePattern(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '*':
			b.WriteByte('%')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// likePatterns converts every wildcard name in ps.
func likePatterns(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = likePattern(p)
	}
	return out
}
