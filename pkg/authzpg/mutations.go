package authzpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/authzkit/pkg/authz"
	"github.com/dmitrymomot/authzkit/pkg/pg"
)

// subjectTable holds the column names that differ between the two
// subject assignment tables so the mutation helpers can be shared.
type subjectTable struct {
	name     string
	targetID string
	kind     authz.Kind
}

var (
	subjectRolesTable = subjectTable{name: "subject_roles", targetID: "role_id", kind: authz.KindRole}
	subjectPermsTable = subjectTable{name: "subject_permissions", targetID: "permission_id", kind: authz.KindPermission}
)

func (s *Store) AttachRoles(ctx context.Context, sub authz.Subject, roleIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.attachSubject(ctx, subjectRolesTable, sub, roleIDs, teamID)
}

func (s *Store) DetachRoles(ctx context.Context, sub authz.Subject, roleIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.detachSubject(ctx, subjectRolesTable, sub, roleIDs, teamID)
}

func (s *Store) SyncRoles(ctx context.Context, sub authz.Subject, roleIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.syncSubject(ctx, subjectRolesTable, sub, roleIDs, teamID)
}

func (s *Store) AttachPermissions(ctx context.Context, sub authz.Subject, permissionIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.attachSubject(ctx, subjectPermsTable, sub, permissionIDs, teamID)
}

func (s *Store) DetachPermissions(ctx context.Context, sub authz.Subject, permissionIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.detachSubject(ctx, subjectPermsTable, sub, permissionIDs, teamID)
}

func (s *Store) SyncPermissions(ctx context.Context, sub authz.Subject, permissionIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	return s.syncSubject(ctx, subjectPermsTable, sub, permissionIDs, teamID)
}

func (s *Store) attachSubject(ctx context.Context, t subjectTable, sub authz.Subject, targetIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (subject_kind, subject_id, %s, team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		t.name, t.targetID,
	)

	var cs authz.ChangeSet
	for _, id := range targetIDs {
		tag, err := s.pool.Exec(ctx, query, sub.Kind, sub.ID, id, teamID)
		if pg.IsForeignKeyViolationError(err) {
			return cs, errors.Join(authz.ErrNotFound, fmt.Errorf("no %s with id %d", t.kind, id))
		}
		if err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		if tag.RowsAffected() > 0 {
			cs.Attached = append(cs.Attached, id)
		}
	}
	return cs, nil
}

func (s *Store) detachSubject(ctx context.Context, t subjectTable, sub authz.Subject, targetIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE subject_kind = $1 AND subject_id = $2
		  AND %s = ANY($3)
		  AND team_id IS NOT DISTINCT FROM $4
		RETURNING %s`,
		t.name, t.targetID, t.targetID,
	), sub.Kind, sub.ID, targetIDs, teamID)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrMutateFailed, err)
	}
	defer rows.Close()

	var cs authz.ChangeSet
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		cs.Detached = append(cs.Detached, id)
	}
	return cs, rows.Err()
}

func (s *Store) syncSubject(ctx context.Context, t subjectTable, sub authz.Subject, targetIDs []int64, teamID *int64) (authz.ChangeSet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrTxBeginFailed, err)
	}
	defer tx.Rollback(ctx)

	// Only rows in the given team scope participate; assignments under
	// other teams are left alone.
	rows, err := tx.Query(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE subject_kind = $1 AND subject_id = $2
		  AND team_id IS NOT DISTINCT FROM $3
		  AND NOT (%s = ANY($4))
		RETURNING %s`,
		t.name, t.targetID, t.targetID,
	), sub.Kind, sub.ID, teamID, targetIDs)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrMutateFailed, err)
	}

	var cs authz.ChangeSet
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return cs, errors.Join(ErrMutateFailed, err)
		}
		cs.Detached = append(cs.Detached, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cs, errors.Join(ErrMutateFailed, err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (subject_kind, subject_id, %s, team_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		t.name, t.targetID,
	)
	for _, id := range targetIDs {
		tag, err := tx.Exec(ctx, insert, sub.Kind, sub.ID, id, teamID)
		if pg.IsForeignKeyViolationError(err) {
			return cs, errors.Join(authz.ErrNotFound, fmt.Errorf("no %s with id %d", t.kind, id))
		}
		if err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		if tag.RowsAffected() > 0 {
			cs.Attached = append(cs.Attached, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return cs, errors.Join(ErrMutateFailed, err)
	}
	return cs, nil
}

func (s *Store) AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (authz.ChangeSet, error) {
	var cs authz.ChangeSet
	for _, id := range permissionIDs {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			roleID, id,
		)
		if pg.IsForeignKeyViolationError(err) {
			return cs, errors.Join(authz.ErrNotFound, fmt.Errorf("role %d or permission %d missing", roleID, id))
		}
		if err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		if tag.RowsAffected() > 0 {
			cs.Attached = append(cs.Attached, id)
		}
	}
	return cs, nil
}

func (s *Store) DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (authz.ChangeSet, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_id = ANY($2)
		RETURNING permission_id`,
		roleID, permissionIDs,
	)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrMutateFailed, err)
	}
	defer rows.Close()

	var cs authz.ChangeSet
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		cs.Detached = append(cs.Detached, id)
	}
	return cs, rows.Err()
}

func (s *Store) SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (authz.ChangeSet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrTxBeginFailed, err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND NOT (permission_id = ANY($2))
		RETURNING permission_id`,
		roleID, permissionIDs,
	)
	if err != nil {
		return authz.ChangeSet{}, errors.Join(ErrMutateFailed, err)
	}

	var cs authz.ChangeSet
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return cs, errors.Join(ErrMutateFailed, err)
		}
		cs.Detached = append(cs.Detached, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cs, errors.Join(ErrMutateFailed, err)
	}

	for _, id := range permissionIDs {
		tag, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			roleID, id,
		)
		if pg.IsForeignKeyViolationError(err) {
			return cs, errors.Join(authz.ErrNotFound, fmt.Errorf("role %d or permission %d missing", roleID, id))
		}
		if err != nil {
			return cs, errors.Join(ErrMutateFailed, err)
		}
		if tag.RowsAffected() > 0 {
			cs.Attached = append(cs.Attached, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return cs, errors.Join(ErrMutateFailed, err)
	}
	return cs, nil
}

func (s *Store) EnsureRole(ctx context.Context, name string) (int64, error) {
	return s.ensure(ctx, "roles", name)
}

func (s *Store) EnsurePermission(ctx context.Context, name string) (int64, error) {
	return s.ensure(ctx, "permissions", name)
}

func (s *Store) EnsureTeam(ctx context.Context, name string) (int64, error) {
	return s.ensure(ctx, "teams", name)
}

func (s *Store) ensure(ctx context.Context, table, name string) (int64, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row's id on
	// conflict, so create-or-get is a single round trip.
	var id int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, table,
	), name).Scan(&id)
	if err != nil {
		return 0, errors.Join(ErrMutateFailed, err)
	}
	return id, nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID int64) (authz.Invalidations, error) {
	inv, err := s.collectSubjects(ctx, `
		SELECT DISTINCT subject_kind, subject_id
		FROM subject_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return authz.Invalidations{}, err
	}
	inv.RoleIDs = []int64{roleID}

	if err := s.deleteEntity(ctx, "roles", roleID); err != nil {
		return authz.Invalidations{}, err
	}
	return inv, nil
}

func (s *Store) DeletePermission(ctx context.Context, permissionID int64) (authz.Invalidations, error) {
	inv, err := s.collectSubjects(ctx, `
		SELECT DISTINCT subject_kind, subject_id
		FROM subject_permissions WHERE permission_id = $1`, permissionID)
	if err != nil {
		return authz.Invalidations{}, err
	}

	// Roles owning the permission serve it to their subjects through the
	// cached role permission set, so those entries go stale too.
	rows, err := s.pool.Query(ctx, `
		SELECT role_id FROM role_permissions WHERE permission_id = $1`,
		permissionID,
	)
	if err != nil {
		return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
		}
		inv.RoleIDs = append(inv.RoleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
	}

	if err := s.deleteEntity(ctx, "permissions", permissionID); err != nil {
		return authz.Invalidations{}, err
	}
	return inv, nil
}

func (s *Store) DeleteTeam(ctx context.Context, teamID int64) (authz.Invalidations, error) {
	inv, err := s.collectSubjects(ctx, `
		SELECT DISTINCT subject_kind, subject_id FROM subject_roles WHERE team_id = $1
		UNION
		SELECT DISTINCT subject_kind, subject_id FROM subject_permissions WHERE team_id = $1`,
		teamID)
	if err != nil {
		return authz.Invalidations{}, err
	}

	if err := s.deleteEntity(ctx, "teams", teamID); err != nil {
		return authz.Invalidations{}, err
	}
	return inv, nil
}

func (s *Store) DeleteSubject(ctx context.Context, sub authz.Subject) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Join(ErrTxBeginFailed, err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"subject_roles", "subject_permissions"} {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE subject_kind = $1 AND subject_id = $2`, table,
		), sub.Kind, sub.ID)
		if err != nil {
			return errors.Join(ErrMutateFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Join(ErrMutateFailed, err)
	}
	return nil
}

// deleteEntity removes an entity row; the ON DELETE CASCADE constraints
// take the dependent assignment rows with it. A missing row surfaces
// authz.ErrNotFound.
func (s *Store) deleteEntity(ctx context.Context, table string, id int64) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return errors.Join(ErrMutateFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(authz.ErrNotFound, fmt.Errorf("no %s row with id %d", table, id))
	}
	return nil
}

func (s *Store) collectSubjects(ctx context.Context, query string, args ...any) (authz.Invalidations, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var inv authz.Invalidations
	for rows.Next() {
		var sub authz.Subject
		if err := rows.Scan(&sub.Kind, &sub.ID); err != nil {
			return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
		}
		inv.Subjects = append(inv.Subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return authz.Invalidations{}, errors.Join(ErrQueryFailed, err)
	}
	return inv, nil
}
