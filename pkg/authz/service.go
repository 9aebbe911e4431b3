package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/authzkit/pkg/config"
	"github.com/dmitrymomot/authzkit/pkg/scopes"
)

// checker is the internal evaluation contract shared by the default and
// query strategies. Names arrive deduplicated and non-empty; the team id is
// already resolved (nil = no team argument).
type checker interface {
	hasRole(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error)
	hasPermission(ctx context.Context, sub Subject, names []string, teamID *int64, requireAll bool) (bool, error)
}

// Service evaluates role, permission, and ability checks for subjects and
// coordinates cache invalidation around assignment mutations.
type Service struct {
	cfg   Config
	store Store
	cache Cache
	check checker
	log   *slog.Logger
	hook  EventHook
}

// Option configures a Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithCache sets a custom cache implementation. Without it, the service
// uses an in-memory cache (or a no-op cache when caching is disabled).
func WithCache(cache Cache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithLogger sets a structured logger for mutation and invalidation events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEventHook registers a hook receiving an Event after every
// assignment mutation.
func WithEventHook(hook EventHook) Option {
	return func(s *Service) { s.hook = hook }
}

// New creates a Service evaluating against the given store. Configuration
// problems (unknown checker, unknown return type, a query checker over a
// store without count support) fail here rather than at first use.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.Join(ErrInvalidArgument, errors.New("nil store"))
	}

	// Caching defaults to on; WithConfig replaces the whole struct, so an
	// explicit configuration keeps the caller's choice.
	s := &Service{store: store, cfg: Config{CacheEnabled: true}}
	for _, opt := range opts {
		opt(s)
	}

	s.cfg.applyDefaults()
	if err := s.cfg.validate(); err != nil {
		return nil, err
	}

	if s.cache == nil {
		if s.cfg.CacheEnabled {
			s.cache = NewMemoryCache()
		} else {
			s.cache = NewNoopCache()
		}
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	switch s.cfg.Checker {
	case CheckerDefault:
		s.check = &defaultChecker{svc: s}
	case CheckerQuery:
		counts, ok := store.(CountStore)
		if !ok {
			return nil, errors.Join(ErrUnsupportedChecker,
				fmt.Errorf("store %T does not support count queries", store))
		}
		s.check = &queryChecker{svc: s, counts: counts}
	}

	return s, nil
}

// NewFromEnv creates a Service with its Config loaded from environment
// variables (see Config field tags). Explicit options are applied on top.
func NewFromEnv(store Store, opts ...Option) (*Service, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return New(store, append([]Option{WithConfig(cfg)}, opts...)...)
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Close releases the cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

// checkOptions collects per-check arguments shared by HasRole,
// HasPermission, and Ability.
type checkOptions struct {
	team        Ref
	requireAll  bool
	validateAll *bool
	returnType  ReturnType
}

// CheckOption adjusts a single check call.
type CheckOption func(*checkOptions)

// InTeam scopes the check to a team. Ignored entirely when team scoping is
// disabled in the configuration.
func InTeam(team Ref) CheckOption {
	return func(o *checkOptions) { o.team = team }
}

// RequireAll makes HasRole/HasPermission demand that every listed name
// matches instead of at least one.
func RequireAll() CheckOption {
	return func(o *checkOptions) { o.requireAll = true }
}

// ValidateAll overrides the configured all-or-any policy for an ability
// check.
func ValidateAll(v bool) CheckOption {
	return func(o *checkOptions) { o.validateAll = &v }
}

// WithReturnType overrides the configured result shape for an ability
// check.
func WithReturnType(rt ReturnType) CheckOption {
	return func(o *checkOptions) { o.returnType = rt }
}

func newCheckOptions(opts []CheckOption) checkOptions {
	var o checkOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// HasRole reports whether the subject holds the listed roles. By default at
// least one role has to match; RequireAll demands all of them. An empty
// list is trivially true. Role names are matched exactly, never as
// patterns.
func (s *Service) HasRole(ctx context.Context, sub Subject, names []string, opts ...CheckOption) (bool, error) {
	o := newCheckOptions(opts)

	names = scopes.Dedupe(names)
	if len(names) == 0 {
		return true, nil
	}

	teamID, err := s.resolveTeam(ctx, o.team)
	if err != nil {
		return false, err
	}

	return s.check.hasRole(ctx, sub, names, teamID, o.requireAll)
}

// HasPermission reports whether the subject holds the listed permissions,
// directly or through a role. Names may be wildcard patterns ("admin.*").
// By default at least one has to match; RequireAll demands all of them. An
// empty list is trivially true.
func (s *Service) HasPermission(ctx context.Context, sub Subject, names []string, opts ...CheckOption) (bool, error) {
	o := newCheckOptions(opts)

	names = scopes.Dedupe(names)
	if len(names) == 0 {
		return true, nil
	}

	teamID, err := s.resolveTeam(ctx, o.team)
	if err != nil {
		return false, err
	}

	return s.check.hasPermission(ctx, sub, names, teamID, o.requireAll)
}

// resolveTeam reduces a team reference to an id. With team scoping disabled
// the reference is ignored and every check behaves as unscoped.
func (s *Service) resolveTeam(ctx context.Context, team Ref) (*int64, error) {
	if !s.cfg.TeamsEnabled || team.IsZero() {
		return nil, nil
	}
	return s.resolveRef(ctx, team, KindTeam)
}

// teamMatches is the scope predicate shared by both checkers: with teams
// disabled everything matches; without strict checking an unscoped query
// matches any assignment; otherwise the team ids have to be equal, nil
// included.
func (s *Service) teamMatches(assignmentTeam, queryTeam *int64) bool {
	if !s.cfg.TeamsEnabled {
		return true
	}
	if !s.cfg.StrictTeamCheck && queryTeam == nil {
		return true
	}
	return teamIDEqual(assignmentTeam, queryTeam)
}

// teamFilter translates the resolved query team into a store-side filter
// mirroring teamMatches: nil means "no filtering".
func (s *Service) teamFilter(queryTeam *int64) *TeamFilter {
	if !s.cfg.TeamsEnabled {
		return nil
	}
	if !s.cfg.StrictTeamCheck && queryTeam == nil {
		return nil
	}
	return &TeamFilter{TeamID: queryTeam}
}

// Cache keys are derived from the subject kind and id so distinct subject
// types sharing one cache never collide.
func subjectCacheKey(sub Subject) string {
	return fmt.Sprintf("authz:subject:%s:%s", sub.Kind, sub.ID)
}

func rolePermissionsCacheKey(roleID int64) string {
	return fmt.Sprintf("authz:role_permissions:%d", roleID)
}

// FlushSubject drops the subject's cached assignment snapshot so the next
// check recomputes it from the store.
func (s *Service) FlushSubject(ctx context.Context, sub Subject) error {
	if err := s.cache.Delete(ctx, subjectCacheKey(sub)); err != nil {
		return err
	}
	s.log.DebugContext(ctx, "authz cache flushed",
		slog.String("subject_kind", sub.Kind),
		slog.String("subject_id", sub.ID))
	return nil
}

func (s *Service) flushRole(ctx context.Context, roleID int64) error {
	return s.cache.Delete(ctx, rolePermissionsCacheKey(roleID))
}

func (s *Service) flushInvalidations(ctx context.Context, inv Invalidations) error {
	for _, sub := range inv.Subjects {
		if err := s.FlushSubject(ctx, sub); err != nil {
			return err
		}
	}
	for _, roleID := range inv.RoleIDs {
		if err := s.flushRole(ctx, roleID); err != nil {
			return err
		}
	}
	return nil
}
