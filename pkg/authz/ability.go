package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// AbilityResult is the outcome of a combined role+permission check. Ok is
// the aggregate verdict; Roles and Permissions map each requested name to
// its individual result and stay nil for ReturnBoolean.
type AbilityResult struct {
	Ok          bool            `json:"ok"`
	Roles       map[string]bool `json:"roles,omitempty"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// Ability evaluates a batch of role checks and a batch of permission checks
// as one authorization query.
//
// With ValidateAll(false) (the default) the subject passes when at least
// one of the combined role and permission checks passes; with
// ValidateAll(true) every listed role and every listed permission has to
// pass individually.
//
// The result shape follows the configured ReturnType (overridable via
// WithReturnType): ReturnBoolean computes only the aggregate and
// short-circuits; ReturnArray and ReturnBoth evaluate every name and fill
// the per-name maps. The aggregate is identical either way. An unknown
// return type fails with ErrInvalidArgument.
func (s *Service) Ability(ctx context.Context, sub Subject, roles, permissions []string, opts ...CheckOption) (AbilityResult, error) {
	o := newCheckOptions(opts)

	rt := o.returnType
	if rt == "" {
		rt = s.cfg.ReturnType
	}
	if !rt.valid() {
		return AbilityResult{}, errors.Join(ErrInvalidArgument, fmt.Errorf("unknown return type %q", rt))
	}

	validateAll := s.cfg.ValidateAll
	if o.validateAll != nil {
		validateAll = *o.validateAll
	}

	roles = scopes.Dedupe(roles)
	permissions = scopes.Dedupe(permissions)

	teamID, err := s.resolveTeam(ctx, o.team)
	if err != nil {
		return AbilityResult{}, err
	}

	if rt == ReturnBoolean {
		ok, err := s.abilityBoolean(ctx, sub, roles, permissions, teamID, validateAll)
		if err != nil {
			return AbilityResult{}, err
		}
		return AbilityResult{Ok: ok}, nil
	}

	res := AbilityResult{
		Roles:       make(map[string]bool, len(roles)),
		Permissions: make(map[string]bool, len(permissions)),
	}

	for _, name := range roles {
		ok, err := s.check.hasRole(ctx, sub, []string{name}, teamID, false)
		if err != nil {
			return AbilityResult{}, err
		}
		res.Roles[name] = ok
	}
	for _, name := range permissions {
		ok, err := s.check.hasPermission(ctx, sub, []string{name}, teamID, false)
		if err != nil {
			return AbilityResult{}, err
		}
		res.Permissions[name] = ok
	}

	res.Ok = aggregateAbility(validateAll, res.Roles, res.Permissions)

	return res, nil
}

// SplitAbilityList splits a delimited name list ("admin|owner") using the
// configured ability delimiter.
func (s *Service) SplitAbilityList(list string) []string {
	return scopes.ParseList(list, s.cfg.AbilityDelimiter)
}

// abilityBoolean computes the aggregate verdict via batch checks so a
// passing any-check or a failing all-check stops early. Empty lists
// contribute their fold identity (false for any, true for all), which keeps
// the aggregate identical to the one derived from the per-name maps.
func (s *Service) abilityBoolean(ctx context.Context, sub Subject, roles, permissions []string, teamID *int64, validateAll bool) (bool, error) {
	if validateAll {
		if len(roles) > 0 {
			ok, err := s.check.hasRole(ctx, sub, roles, teamID, true)
			if err != nil || !ok {
				return false, err
			}
		}
		if len(permissions) > 0 {
			ok, err := s.check.hasPermission(ctx, sub, permissions, teamID, true)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	if len(roles) > 0 {
		ok, err := s.check.hasRole(ctx, sub, roles, teamID, false)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if len(permissions) > 0 {
		ok, err := s.check.hasPermission(ctx, sub, permissions, teamID, false)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// aggregateAbility derives the aggregate verdict from per-name results:
// all-mode fails on any false entry, any-mode passes on any true entry.
func aggregateAbility(validateAll bool, roles, permissions map[string]bool) bool {
	if validateAll {
		for _, ok := range roles {
			if !ok {
				return false
			}
		}
		for _, ok := range permissions {
			if !ok {
				return false
			}
		}
		return true
	}

	for _, ok := range roles {
		if ok {
			return true
		}
	}
	for _, ok := range permissions {
		if ok {
			return true
		}
	}
	return false
}
