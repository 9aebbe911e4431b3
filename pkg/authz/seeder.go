package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// SeedDefinition is the YAML shape consumed by the Seeder:
//
//	teams:
//	  - acme
//	permissions:
//	  - reports.export
//	roles:
//	  admin:
//	    permissions:
//	      - users.read
//	      - users.write
//	  viewer:
//	    permissions:
//	      - users.read
//
// Standalone permissions exist without being owned by any role, so they can
// be attached to subjects directly.
type SeedDefinition struct {
	Teams       []string            `yaml:"teams"`
	Permissions []string            `yaml:"permissions"`
	Roles       map[string]SeedRole `yaml:"roles"`
}

// SeedRole declares the permission set a role owns after seeding.
type SeedRole struct {
	Permissions []string `yaml:"permissions"`
}

// Seeder creates roles, permissions, and teams from a declarative
// definition and syncs each role's permission set. Seeding is idempotent:
// existing rows are reused, and role permission sets are replaced to match
// the definition.
type Seeder struct {
	store MutationStore
	log   *slog.Logger
}

// NewSeeder creates a Seeder writing through the given store.
func NewSeeder(store MutationStore, log *slog.Logger) (*Seeder, error) {
	if store == nil {
		return nil, errors.Join(ErrInvalidArgument, errors.New("nil store"))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{store: store, log: log}, nil
}

// Apply reads a YAML seed definition and applies it to the store.
func (s *Seeder) Apply(ctx context.Context, r io.Reader) error {
	var def SeedDefinition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return errors.Join(ErrInvalidArgument, err)
	}
	return s.ApplyDefinition(ctx, def)
}

// ApplyDefinition applies an already-decoded seed definition.
func (s *Seeder) ApplyDefinition(ctx context.Context, def SeedDefinition) error {
	for _, name := range def.Teams {
		if _, err := s.store.EnsureTeam(ctx, name); err != nil {
			return err
		}
	}

	for _, name := range def.Permissions {
		if _, err := s.store.EnsurePermission(ctx, name); err != nil {
			return err
		}
	}

	for roleName, role := range def.Roles {
		roleID, err := s.store.EnsureRole(ctx, roleName)
		if err != nil {
			return err
		}

		permIDs := make([]int64, 0, len(role.Permissions))
		for _, permName := range role.Permissions {
			permID, err := s.store.EnsurePermission(ctx, permName)
			if err != nil {
				return err
			}
			permIDs = append(permIDs, permID)
		}

		cs, err := s.store.SyncRolePermissions(ctx, roleID, permIDs)
		if err != nil {
			return err
		}

		s.log.DebugContext(ctx, "role seeded",
			slog.String("role", roleName),
			slog.Int("attached", len(cs.Attached)),
			slog.Int("detached", len(cs.Detached)))
	}

	return nil
}
