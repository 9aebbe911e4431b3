package authz

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a structural mutation.
type EventType string

const (
	EventRolesAttached EventType = "roles.attached"
	EventRolesDetached EventType = "roles.detached"
	EventRolesSynced   EventType = "roles.synced"

	EventPermissionsAttached EventType = "permissions.attached"
	EventPermissionsDetached EventType = "permissions.detached"
	EventPermissionsSynced   EventType = "permissions.synced"

	EventRolePermissionsAttached EventType = "role_permissions.attached"
	EventRolePermissionsDetached EventType = "role_permissions.detached"
	EventRolePermissionsSynced   EventType = "role_permissions.synced"

	EventRoleDeleted       EventType = "role.deleted"
	EventPermissionDeleted EventType = "permission.deleted"
	EventTeamDeleted       EventType = "team.deleted"
	EventSubjectDeleted    EventType = "subject.deleted"
)

// Event describes a completed assignment mutation. It is emitted after the
// store write and the cache invalidation, so a hook observing it already
// sees the new state.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	Subject    Subject   `json:"subject,omitempty"`
	RoleID     int64     `json:"role_id,omitempty"`
	TeamID     *int64    `json:"team_id,omitempty"`
	Changes    ChangeSet `json:"changes"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventHook receives mutation events. Hooks run synchronously on the
// mutating call; spawn a goroutine inside the hook for async handling.
type EventHook func(ctx context.Context, event Event)

func (s *Service) emit(ctx context.Context, event Event) {
	if s.hook == nil {
		return
	}
	event.ID = uuid.New()
	event.OccurredAt = time.Now()
	s.hook(ctx, event)
}
