package authz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Kind names a relationship table targeted by a reference lookup.
type Kind string

const (
	KindRole       Kind = "roles"
	KindPermission Kind = "permissions"
	KindTeam       Kind = "teams"
)

func (k Kind) valid() bool {
	switch k {
	case KindRole, KindPermission, KindTeam:
		return true
	}
	return false
}

// Entity is anything carrying its own numeric id, allowing full entity
// values to be passed where a reference is expected.
type Entity interface {
	EntityID() int64
}

type refShape int

const (
	refNil refShape = iota
	refID
	refName
	refMap
	refEntity
)

// Ref is a closed reference to a role, permission, or team. It carries one
// of: a numeric id, a name to look up, a map holding an "id" key, or a full
// Entity. The zero Ref means "no constraint" (e.g. no team scope).
type Ref struct {
	shape  refShape
	id     int64
	name   string
	fields map[string]any
	entity Entity
}

// ByID references a row by its numeric id.
func ByID(id int64) Ref {
	return Ref{shape: refID, id: id}
}

// ByName references a row by its unique name; resolution looks the name up
// in the store and fails with ErrNotFound when no row matches.
func ByName(name string) Ref {
	return Ref{shape: refName, name: name}
}

// ByMap references a row through a generic map holding an "id" key, as
// produced by decoded JSON payloads.
func ByMap(fields map[string]any) Ref {
	return Ref{shape: refMap, fields: fields}
}

// ByEntity references a row through a full entity value.
func ByEntity(e Entity) Ref {
	return Ref{shape: refEntity, entity: e}
}

// IsZero reports whether the reference carries no constraint.
func (r Ref) IsZero() bool {
	return r.shape == refNil
}

// resolveRef reduces a reference to a canonical id. A zero reference yields
// nil. Name lookups hit the store; a missing name surfaces ErrNotFound to
// the caller, never a silent false.
func (s *Service) resolveRef(ctx context.Context, r Ref, kind Kind) (*int64, error) {
	if !kind.valid() {
		return nil, errors.Join(ErrInvalidArgument, fmt.Errorf("unknown relationship kind %q", kind))
	}

	switch r.shape {
	case refNil:
		return nil, nil
	case refID:
		return &r.id, nil
	case refName:
		id, err := s.store.FindIDByName(ctx, kind, r.name)
		if err != nil {
			return nil, err
		}
		return &id, nil
	case refMap:
		v, ok := r.fields["id"]
		if !ok {
			return nil, errors.Join(ErrInvalidArgument, errors.New(`reference map has no "id" key`))
		}
		id, err := idFromAny(v)
		if err != nil {
			return nil, err
		}
		return &id, nil
	case refEntity:
		if r.entity == nil {
			return nil, errors.Join(ErrInvalidArgument, errors.New("nil entity reference"))
		}
		id := r.entity.EntityID()
		return &id, nil
	default:
		return nil, errors.Join(ErrInvalidArgument, fmt.Errorf("unsupported reference shape %d", r.shape))
	}
}

// requireRef is resolveRef for positions where "no constraint" is not an
// answer, such as mutation targets.
func (s *Service) requireRef(ctx context.Context, r Ref, kind Kind) (int64, error) {
	id, err := s.resolveRef(ctx, r, kind)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, errors.Join(ErrInvalidArgument, errors.New("empty reference"))
	}
	return *id, nil
}

func (s *Service) requireRefs(ctx context.Context, refs []Ref, kind Kind) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		id, err := s.requireRef(ctx, r, kind)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// idFromAny extracts a numeric id from the loosely typed values JSON
// decoding produces.
func idFromAny(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.Join(ErrInvalidArgument, fmt.Errorf("non-integer id %v", n))
		}
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Join(ErrInvalidArgument, fmt.Errorf("unparsable id %q", n))
		}
		return id, nil
	default:
		return 0, errors.Join(ErrInvalidArgument, fmt.Errorf("unsupported id type %T", v))
	}
}
