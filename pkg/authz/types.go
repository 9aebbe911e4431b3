package authz

// Subject identifies the entity whose authorization is evaluated. Kind
// discriminates subject types sharing the same store (e.g. "user",
// "api_key") so their cache entries never collide.
type Subject struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// NewSubject builds a subject from a kind discriminator and an opaque id.
func NewSubject(kind, id string) Subject {
	return Subject{Kind: kind, ID: id}
}

// IsZero reports whether the subject is empty.
func (s Subject) IsZero() bool {
	return s.Kind == "" && s.ID == ""
}

// RoleAssignment is a role held by a subject, optionally scoped to a team.
// A nil TeamID means the assignment is global.
type RoleAssignment struct {
	RoleID int64  `json:"role_id"`
	Name   string `json:"name"`
	TeamID *int64 `json:"team_id,omitempty"`
}

// PermissionAssignment is a permission held directly by a subject or owned
// by a role. Role-owned permissions carry no team id; only subject-level
// assignments are team-scoped.
type PermissionAssignment struct {
	PermissionID int64  `json:"permission_id"`
	Name         string `json:"name"`
	TeamID       *int64 `json:"team_id,omitempty"`
}

// ChangeSet reports the effect of an attach, detach, or sync operation in
// terms of target entity ids.
type ChangeSet struct {
	Attached []int64 `json:"attached"`
	Detached []int64 `json:"detached"`
	Updated  []int64 `json:"updated"`
}

// Empty reports whether the operation changed nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Attached) == 0 && len(c.Detached) == 0 && len(c.Updated) == 0
}

// Invalidations lists the cache entries a structural mutation made stale:
// every subject whose assignments were touched and every role whose
// permission set changed.
type Invalidations struct {
	Subjects []Subject
	RoleIDs  []int64
}

// subjectSnapshot is the cached per-subject view of assignment rows used by
// the default checker. Roles and permissions are loaded and invalidated
// together.
type subjectSnapshot struct {
	Roles       []RoleAssignment       `json:"roles"`
	Permissions []PermissionAssignment `json:"permissions"`
}

// teamIDEqual compares two optional team ids; two nils are equal.
func teamIDEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
