package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Mutations decorate the store's write operations with the invalidate-on-
// write policy: the store write happens first, then the affected cache
// entries are dropped, then the event hook fires. A concurrent reader can
// therefore repopulate the cache only from post-write state.

func (s *Service) mutations() (MutationStore, error) {
	ms, ok := s.store.(MutationStore)
	if !ok {
		return nil, errors.Join(ErrStoreReadOnly, fmt.Errorf("store %T does not support mutations", s.store))
	}
	return ms, nil
}

// AttachRoles assigns roles to the subject, optionally under a team.
// Attaching an already-assigned role is a no-op. Targets referenced by name
// must exist (ErrNotFound otherwise).
func (s *Service) AttachRoles(ctx context.Context, sub Subject, roles []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectRoles(ctx, sub, roles, team, EventRolesAttached, MutationStore.AttachRoles)
}

// DetachRoles removes role assignments from the subject within the given
// team scope.
func (s *Service) DetachRoles(ctx context.Context, sub Subject, roles []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectRoles(ctx, sub, roles, team, EventRolesDetached, MutationStore.DetachRoles)
}

// SyncRoles replaces the subject's role set within the given team scope:
// missing roles are attached, listed-no-more roles are detached.
func (s *Service) SyncRoles(ctx context.Context, sub Subject, roles []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectRoles(ctx, sub, roles, team, EventRolesSynced, MutationStore.SyncRoles)
}

// AttachPermissions assigns permissions directly to the subject, optionally
// under a team. Idempotent per (subject, permission, team) triple.
func (s *Service) AttachPermissions(ctx context.Context, sub Subject, permissions []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectPermissions(ctx, sub, permissions, team, EventPermissionsAttached, MutationStore.AttachPermissions)
}

// DetachPermissions removes direct permission assignments from the subject
// within the given team scope.
func (s *Service) DetachPermissions(ctx context.Context, sub Subject, permissions []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectPermissions(ctx, sub, permissions, team, EventPermissionsDetached, MutationStore.DetachPermissions)
}

// SyncPermissions replaces the subject's direct permission set within the
// given team scope.
func (s *Service) SyncPermissions(ctx context.Context, sub Subject, permissions []Ref, team Ref) (ChangeSet, error) {
	return s.mutateSubjectPermissions(ctx, sub, permissions, team, EventPermissionsSynced, MutationStore.SyncPermissions)
}

type subjectMutation func(MutationStore, context.Context, Subject, []int64, *int64) (ChangeSet, error)

func (s *Service) mutateSubjectRoles(ctx context.Context, sub Subject, roles []Ref, team Ref, event EventType, op subjectMutation) (ChangeSet, error) {
	return s.mutateSubject(ctx, sub, roles, KindRole, team, event, op)
}

func (s *Service) mutateSubjectPermissions(ctx context.Context, sub Subject, permissions []Ref, team Ref, event EventType, op subjectMutation) (ChangeSet, error) {
	return s.mutateSubject(ctx, sub, permissions, KindPermission, team, event, op)
}

func (s *Service) mutateSubject(ctx context.Context, sub Subject, targets []Ref, kind Kind, team Ref, event EventType, op subjectMutation) (ChangeSet, error) {
	ms, err := s.mutations()
	if err != nil {
		return ChangeSet{}, err
	}

	ids, err := s.requireRefs(ctx, targets, kind)
	if err != nil {
		return ChangeSet{}, err
	}

	teamID, err := s.resolveTeam(ctx, team)
	if err != nil {
		return ChangeSet{}, err
	}

	cs, err := op(ms, ctx, sub, ids, teamID)
	if err != nil {
		return cs, err
	}

	if err := s.FlushSubject(ctx, sub); err != nil {
		return cs, err
	}

	s.log.DebugContext(ctx, "authz assignments mutated",
		slog.String("event", string(event)),
		slog.String("subject_kind", sub.Kind),
		slog.String("subject_id", sub.ID),
		slog.Int("attached", len(cs.Attached)),
		slog.Int("detached", len(cs.Detached)))

	s.emit(ctx, Event{Type: event, Subject: sub, TeamID: teamID, Changes: cs})

	return cs, nil
}

// AttachRolePermissions adds permissions to a role's own permission set.
func (s *Service) AttachRolePermissions(ctx context.Context, role Ref, permissions []Ref) (ChangeSet, error) {
	return s.mutateRolePermissions(ctx, role, permissions, EventRolePermissionsAttached, MutationStore.AttachRolePermissions)
}

// DetachRolePermissions removes permissions from a role's permission set.
func (s *Service) DetachRolePermissions(ctx context.Context, role Ref, permissions []Ref) (ChangeSet, error) {
	return s.mutateRolePermissions(ctx, role, permissions, EventRolePermissionsDetached, MutationStore.DetachRolePermissions)
}

// SyncRolePermissions replaces a role's permission set.
func (s *Service) SyncRolePermissions(ctx context.Context, role Ref, permissions []Ref) (ChangeSet, error) {
	return s.mutateRolePermissions(ctx, role, permissions, EventRolePermissionsSynced, MutationStore.SyncRolePermissions)
}

type roleMutation func(MutationStore, context.Context, int64, []int64) (ChangeSet, error)

func (s *Service) mutateRolePermissions(ctx context.Context, role Ref, permissions []Ref, event EventType, op roleMutation) (ChangeSet, error) {
	ms, err := s.mutations()
	if err != nil {
		return ChangeSet{}, err
	}

	roleID, err := s.requireRef(ctx, role, KindRole)
	if err != nil {
		return ChangeSet{}, err
	}

	permIDs, err := s.requireRefs(ctx, permissions, KindPermission)
	if err != nil {
		return ChangeSet{}, err
	}

	cs, err := op(ms, ctx, roleID, permIDs)
	if err != nil {
		return cs, err
	}

	if err := s.flushRole(ctx, roleID); err != nil {
		return cs, err
	}

	s.log.DebugContext(ctx, "authz role permissions mutated",
		slog.String("event", string(event)),
		slog.Int64("role_id", roleID),
		slog.Int("attached", len(cs.Attached)),
		slog.Int("detached", len(cs.Detached)))

	s.emit(ctx, Event{Type: event, RoleID: roleID, Changes: cs})

	return cs, nil
}

// DeleteRole removes a role and every assignment referencing it, then
// flushes the cache entry of each subject that held it.
func (s *Service) DeleteRole(ctx context.Context, role Ref) error {
	ms, err := s.mutations()
	if err != nil {
		return err
	}

	roleID, err := s.requireRef(ctx, role, KindRole)
	if err != nil {
		return err
	}

	inv, err := ms.DeleteRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.flushInvalidations(ctx, inv); err != nil {
		return err
	}

	s.emit(ctx, Event{Type: EventRoleDeleted, RoleID: roleID})
	return nil
}

// DeletePermission removes a permission from every role and subject holding
// it and flushes the affected cache entries.
func (s *Service) DeletePermission(ctx context.Context, permission Ref) error {
	ms, err := s.mutations()
	if err != nil {
		return err
	}

	permID, err := s.requireRef(ctx, permission, KindPermission)
	if err != nil {
		return err
	}

	inv, err := ms.DeletePermission(ctx, permID)
	if err != nil {
		return err
	}

	if err := s.flushInvalidations(ctx, inv); err != nil {
		return err
	}

	s.emit(ctx, Event{Type: EventPermissionDeleted})
	return nil
}

// DeleteTeam removes a team and every assignment scoped to it, flushing the
// cache entry of each affected subject.
func (s *Service) DeleteTeam(ctx context.Context, team Ref) error {
	ms, err := s.mutations()
	if err != nil {
		return err
	}

	teamID, err := s.requireRef(ctx, team, KindTeam)
	if err != nil {
		return err
	}

	inv, err := ms.DeleteTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if err := s.flushInvalidations(ctx, inv); err != nil {
		return err
	}

	s.emit(ctx, Event{Type: EventTeamDeleted, TeamID: &teamID})
	return nil
}

// DeleteSubject removes every assignment held by the subject (e.g. on user
// deletion) and flushes its cache entry.
func (s *Service) DeleteSubject(ctx context.Context, sub Subject) error {
	ms, err := s.mutations()
	if err != nil {
		return err
	}

	if err := ms.DeleteSubject(ctx, sub); err != nil {
		return err
	}

	if err := s.FlushSubject(ctx, sub); err != nil {
		return err
	}

	s.emit(ctx, Event{Type: EventSubjectDeleted, Subject: sub})
	return nil
}
