package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// CheckerKind selects the evaluation strategy.
type CheckerKind string

const (
	// CheckerDefault evaluates checks against a cached in-memory snapshot
	// of the subject's assignments.
	CheckerDefault CheckerKind = "default"

	// CheckerQuery evaluates checks as count queries against the store,
	// bypassing the cache entirely.
	CheckerQuery CheckerKind = "query"
)

// ReturnType controls the shape of an ability check result.
type ReturnType string

const (
	// ReturnBoolean yields only the aggregate boolean, allowing the
	// evaluation to short-circuit.
	ReturnBoolean ReturnType = "boolean"

	// ReturnArray yields per-name result maps for roles and permissions.
	ReturnArray ReturnType = "array"

	// ReturnBoth yields the aggregate boolean and the per-name maps.
	ReturnBoth ReturnType = "both"
)

// Config holds evaluation settings. The zero value is usable after defaults
// are applied by New; load it from the environment with pkg/config or
// NewFromEnv.
type Config struct {
	// TeamsEnabled turns team scoping on. When false, team arguments and
	// assignment team ids are ignored entirely.
	TeamsEnabled bool `env:"AUTHZ_TEAMS_ENABLED" envDefault:"false"`

	// StrictTeamCheck requires an exact team match even when a check
	// passes no team argument. When false, an unscoped check matches
	// assignments from any team.
	StrictTeamCheck bool `env:"AUTHZ_TEAMS_STRICT_CHECK" envDefault:"false"`

	// CacheEnabled controls snapshot memoization for the default checker.
	// When false the store is queried on every check and no cache entries
	// are written.
	CacheEnabled bool `env:"AUTHZ_CACHE_ENABLED" envDefault:"true"`

	// CacheTTL bounds the lifetime of cached snapshots.
	CacheTTL time.Duration `env:"AUTHZ_CACHE_TTL" envDefault:"1h"`

	// Checker selects the evaluation strategy.
	Checker CheckerKind `env:"AUTHZ_CHECKER" envDefault:"default"`

	// AbilityDelimiter separates names in delimited ability lists.
	AbilityDelimiter string `env:"AUTHZ_ABILITY_DELIMITER" envDefault:"|"`

	// ValidateAll is the default all-or-any policy for ability checks.
	ValidateAll bool `env:"AUTHZ_ABILITY_VALIDATE_ALL" envDefault:"false"`

	// ReturnType is the default result shape for ability checks.
	ReturnType ReturnType `env:"AUTHZ_ABILITY_RETURN_TYPE" envDefault:"boolean"`
}

// applyDefaults fills zero values with documented defaults.
func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.Checker == "" {
		c.Checker = CheckerDefault
	}
	if c.AbilityDelimiter == "" {
		c.AbilityDelimiter = scopes.DefaultDelimiter
	}
	if c.ReturnType == "" {
		c.ReturnType = ReturnBoolean
	}
}

func (c Config) validate() error {
	switch c.Checker {
	case CheckerDefault, CheckerQuery:
	default:
		return errors.Join(ErrInvalidArgument, fmt.Errorf("unknown checker %q", c.Checker))
	}

	if !c.ReturnType.valid() {
		return errors.Join(ErrInvalidArgument, fmt.Errorf("unknown return type %q", c.ReturnType))
	}

	return nil
}

func (rt ReturnType) valid() bool {
	switch rt {
	case ReturnBoolean, ReturnArray, ReturnBoth:
		return true
	}
	return false
}
