package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// MemoryStore is a thread-safe in-memory assignment store implementing
// Store, CountStore, and MutationStore. It backs tests and small
// single-process deployments; production setups use the Postgres store.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	names map[Kind]map[string]int64
	ids   map[Kind]map[int64]string

	subjectRoles map[Subject][]memAssignment
	subjectPerms map[Subject][]memAssignment
	rolePerms    map[int64][]int64
}

type memAssignment struct {
	targetID int64
	teamID   *int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	names := make(map[Kind]map[string]int64, 3)
	ids := make(map[Kind]map[int64]string, 3)
	for _, k := range []Kind{KindRole, KindPermission, KindTeam} {
		names[k] = make(map[string]int64)
		ids[k] = make(map[int64]string)
	}

	return &MemoryStore{
		names:        names,
		ids:          ids,
		subjectRoles: make(map[Subject][]memAssignment),
		subjectPerms: make(map[Subject][]memAssignment),
		rolePerms:    make(map[int64][]int64),
	}
}

func (s *MemoryStore) FindIDByName(ctx context.Context, kind Kind, name string) (int64, error) {
	if !kind.valid() {
		return 0, errors.Join(ErrInvalidArgument, fmt.Errorf("unknown relationship kind %q", kind))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.names[kind][name]
	if !ok {
		return 0, errors.Join(ErrNotFound, fmt.Errorf("no %s named %q", kind, name))
	}
	return id, nil
}

func (s *MemoryStore) SubjectRoles(ctx context.Context, sub Subject) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.subjectRoles[sub]
	out := make([]RoleAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, RoleAssignment{
			RoleID: row.targetID,
			Name:   s.ids[KindRole][row.targetID],
			TeamID: copyTeamID(row.teamID),
		})
	}
	return out, nil
}

func (s *MemoryStore) SubjectPermissions(ctx context.Context, sub Subject) ([]PermissionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.subjectPerms[sub]
	out := make([]PermissionAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, PermissionAssignment{
			PermissionID: row.targetID,
			Name:         s.ids[KindPermission][row.targetID],
			TeamID:       copyTeamID(row.teamID),
		})
	}
	return out, nil
}

func (s *MemoryStore) RolePermissions(ctx context.Context, roleID int64) ([]PermissionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	permIDs := s.rolePerms[roleID]
	out := make([]PermissionAssignment, 0, len(permIDs))
	for _, id := range permIDs {
		out = append(out, PermissionAssignment{
			PermissionID: id,
			Name:         s.ids[KindPermission][id],
		})
	}
	return out, nil
}

func (s *MemoryStore) CountSubjectRoles(ctx context.Context, sub Subject, names []string, team *TeamFilter) (int64, error) {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]struct{})
	for _, row := range s.subjectRoles[sub] {
		if !team.Matches(row.teamID) {
			continue
		}
		name := s.ids[KindRole][row.targetID]
		if _, ok := wanted[name]; ok {
			matched[name] = struct{}{}
		}
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) CountSubjectPermissions(ctx context.Context, sub Subject, exact, patterns []string, team *TeamFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]struct{})
	for _, row := range s.subjectPerms[sub] {
		if !team.Matches(row.teamID) {
			continue
		}
		name := s.ids[KindPermission][row.targetID]
		if nameMatches(name, exact, patterns) {
			matched[name] = struct{}{}
		}
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) CountRoleDerivedPermissions(ctx context.Context, sub Subject, exact, patterns []string, team *TeamFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]struct{})
	for _, row := range s.subjectRoles[sub] {
		if !team.Matches(row.teamID) {
			continue
		}
		for _, permID := range s.rolePerms[row.targetID] {
			name := s.ids[KindPermission][permID]
			if nameMatches(name, exact, patterns) {
				matched[name] = struct{}{}
			}
		}
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) AttachRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.attachSubject(s.subjectRoles, KindRole, sub, roleIDs, teamID)
}

func (s *MemoryStore) DetachRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.detachSubject(s.subjectRoles, sub, roleIDs, teamID)
}

func (s *MemoryStore) SyncRoles(ctx context.Context, sub Subject, roleIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.syncSubject(s.subjectRoles, KindRole, sub, roleIDs, teamID)
}

func (s *MemoryStore) AttachPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.attachSubject(s.subjectPerms, KindPermission, sub, permissionIDs, teamID)
}

func (s *MemoryStore) DetachPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.detachSubject(s.subjectPerms, sub, permissionIDs, teamID)
}

func (s *MemoryStore) SyncPermissions(ctx context.Context, sub Subject, permissionIDs []int64, teamID *int64) (ChangeSet, error) {
	return s.syncSubject(s.subjectPerms, KindPermission, sub, permissionIDs, teamID)
}

func (s *MemoryStore) attachSubject(table map[Subject][]memAssignment, kind Kind, sub Subject, targetIDs []int64, teamID *int64) (ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cs ChangeSet
	for _, id := range targetIDs {
		if _, ok := s.ids[kind][id]; !ok {
			return cs, errors.Join(ErrNotFound, fmt.Errorf("no %s with id %d", kind, id))
		}
		if hasAssignment(table[sub], id, teamID) {
			continue
		}
		table[sub] = append(table[sub], memAssignment{targetID: id, teamID: copyTeamID(teamID)})
		cs.Attached = append(cs.Attached, id)
	}
	return cs, nil
}

func (s *MemoryStore) detachSubject(table map[Subject][]memAssignment, sub Subject, targetIDs []int64, teamID *int64) (ChangeSet, error) {
	wanted := make(map[int64]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cs ChangeSet
	kept := table[sub][:0]
	for _, row := range table[sub] {
		if _, ok := wanted[row.targetID]; ok && teamIDEqual(row.teamID, teamID) {
			cs.Detached = append(cs.Detached, row.targetID)
			continue
		}
		kept = append(kept, row)
	}
	table[sub] = kept
	return cs, nil
}

func (s *MemoryStore) syncSubject(table map[Subject][]memAssignment, kind Kind, sub Subject, targetIDs []int64, teamID *int64) (ChangeSet, error) {
	desired := make(map[int64]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		desired[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cs ChangeSet

	// Only rows in the given team scope participate; assignments under
	// other teams are left alone.
	present := make(map[int64]struct{})
	kept := table[sub][:0]
	for _, row := range table[sub] {
		if !teamIDEqual(row.teamID, teamID) {
			kept = append(kept, row)
			continue
		}
		if _, ok := desired[row.targetID]; !ok {
			cs.Detached = append(cs.Detached, row.targetID)
			continue
		}
		present[row.targetID] = struct{}{}
		kept = append(kept, row)
	}
	table[sub] = kept

	for _, id := range targetIDs {
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := s.ids[kind][id]; !ok {
			return cs, errors.Join(ErrNotFound, fmt.Errorf("no %s with id %d", kind, id))
		}
		table[sub] = append(table[sub], memAssignment{targetID: id, teamID: copyTeamID(teamID)})
		cs.Attached = append(cs.Attached, id)
	}

	return cs, nil
}

func (s *MemoryStore) AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[KindRole][roleID]; !ok {
		return ChangeSet{}, errors.Join(ErrNotFound, fmt.Errorf("no roles with id %d", roleID))
	}

	var cs ChangeSet
	for _, id := range permissionIDs {
		if _, ok := s.ids[KindPermission][id]; !ok {
			return cs, errors.Join(ErrNotFound, fmt.Errorf("no permissions with id %d", id))
		}
		if containsID(s.rolePerms[roleID], id) {
			continue
		}
		s.rolePerms[roleID] = append(s.rolePerms[roleID], id)
		cs.Attached = append(cs.Attached, id)
	}
	return cs, nil
}

func (s *MemoryStore) DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error) {
	wanted := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cs ChangeSet
	kept := s.rolePerms[roleID][:0]
	for _, id := range s.rolePerms[roleID] {
		if _, ok := wanted[id]; ok {
			cs.Detached = append(cs.Detached, id)
			continue
		}
		kept = append(kept, id)
	}
	s.rolePerms[roleID] = kept
	return cs, nil
}

func (s *MemoryStore) SyncRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (ChangeSet, error) {
	desired := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		desired[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[KindRole][roleID]; !ok {
		return ChangeSet{}, errors.Join(ErrNotFound, fmt.Errorf("no roles with id %d", roleID))
	}

	var cs ChangeSet
	present := make(map[int64]struct{})
	kept := s.rolePerms[roleID][:0]
	for _, id := range s.rolePerms[roleID] {
		if _, ok := desired[id]; !ok {
			cs.Detached = append(cs.Detached, id)
			continue
		}
		present[id] = struct{}{}
		kept = append(kept, id)
	}
	s.rolePerms[roleID] = kept

	for _, id := range permissionIDs {
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := s.ids[KindPermission][id]; !ok {
			return cs, errors.Join(ErrNotFound, fmt.Errorf("no permissions with id %d", id))
		}
		s.rolePerms[roleID] = append(s.rolePerms[roleID], id)
		cs.Attached = append(cs.Attached, id)
	}

	return cs, nil
}

func (s *MemoryStore) EnsureRole(ctx context.Context, name string) (int64, error) {
	return s.ensure(KindRole, name)
}

func (s *MemoryStore) EnsurePermission(ctx context.Context, name string) (int64, error) {
	return s.ensure(KindPermission, name)
}

func (s *MemoryStore) EnsureTeam(ctx context.Context, name string) (int64, error) {
	return s.ensure(KindTeam, name)
}

func (s *MemoryStore) ensure(kind Kind, name string) (int64, error) {
	if name == "" {
		return 0, errors.Join(ErrInvalidArgument, fmt.Errorf("empty %s name", kind))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.names[kind][name]; ok {
		return id, nil
	}

	s.nextID++
	id := s.nextID
	s.names[kind][name] = id
	s.ids[kind][id] = name
	return id, nil
}

func (s *MemoryStore) DeleteRole(ctx context.Context, roleID int64) (Invalidations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.ids[KindRole][roleID]
	if !ok {
		return Invalidations{}, errors.Join(ErrNotFound, fmt.Errorf("no roles with id %d", roleID))
	}

	delete(s.ids[KindRole], roleID)
	delete(s.names[KindRole], name)
	delete(s.rolePerms, roleID)

	inv := Invalidations{RoleIDs: []int64{roleID}}
	inv.Subjects = dropAssignments(s.subjectRoles, func(row memAssignment) bool {
		return row.targetID == roleID
	})

	return inv, nil
}

func (s *MemoryStore) DeletePermission(ctx context.Context, permissionID int64) (Invalidations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.ids[KindPermission][permissionID]
	if !ok {
		return Invalidations{}, errors.Join(ErrNotFound, fmt.Errorf("no permissions with id %d", permissionID))
	}

	delete(s.ids[KindPermission], permissionID)
	delete(s.names[KindPermission], name)

	var inv Invalidations
	for roleID, permIDs := range s.rolePerms {
		if containsID(permIDs, permissionID) {
			s.rolePerms[roleID] = removeID(permIDs, permissionID)
			inv.RoleIDs = append(inv.RoleIDs, roleID)
		}
	}
	inv.Subjects = dropAssignments(s.subjectPerms, func(row memAssignment) bool {
		return row.targetID == permissionID
	})

	return inv, nil
}

func (s *MemoryStore) DeleteTeam(ctx context.Context, teamID int64) (Invalidations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.ids[KindTeam][teamID]
	if !ok {
		return Invalidations{}, errors.Join(ErrNotFound, fmt.Errorf("no teams with id %d", teamID))
	}

	delete(s.ids[KindTeam], teamID)
	delete(s.names[KindTeam], name)

	inTeam := func(row memAssignment) bool {
		return row.teamID != nil && *row.teamID == teamID
	}

	var inv Invalidations
	inv.Subjects = dropAssignments(s.subjectRoles, inTeam)
	for _, sub := range dropAssignments(s.subjectPerms, inTeam) {
		if !containsSubject(inv.Subjects, sub) {
			inv.Subjects = append(inv.Subjects, sub)
		}
	}

	return inv, nil
}

func (s *MemoryStore) DeleteSubject(ctx context.Context, sub Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subjectRoles, sub)
	delete(s.subjectPerms, sub)
	return nil
}

// dropAssignments removes every row matching the predicate and returns the
// subjects that lost at least one row.
func dropAssignments(table map[Subject][]memAssignment, match func(memAssignment) bool) []Subject {
	var touched []Subject
	for sub, rows := range table {
		kept := rows[:0]
		dropped := false
		for _, row := range rows {
			if match(row) {
				dropped = true
				continue
			}
			kept = append(kept, row)
		}
		if dropped {
			table[sub] = kept
			touched = append(touched, sub)
		}
	}
	return touched
}

func hasAssignment(rows []memAssignment, targetID int64, teamID *int64) bool {
	for _, row := range rows {
		if row.targetID == targetID && teamIDEqual(row.teamID, teamID) {
			return true
		}
	}
	return false
}

func nameMatches(name string, exact, patterns []string) bool {
	for _, e := range exact {
		if name == e {
			return true
		}
	}
	return scopes.MatchAny(name, patterns)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	kept := ids[:0]
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}

func containsSubject(subs []Subject, sub Subject) bool {
	for _, s := range subs {
		if s == sub {
			return true
		}
	}
	return false
}

func copyTeamID(teamID *int64) *int64 {
	if teamID == nil {
		return nil
	}
	v := *teamID
	return &v
}
