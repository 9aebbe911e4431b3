package authz

import "errors"

// Domain errors for authorization operations.
var (
	// ErrNotFound is returned when a name-based lookup matches no row.
	ErrNotFound = errors.New("authz.not_found")

	// ErrInvalidArgument is returned for unsupported reference shapes,
	// unknown option values, and unknown relationship kinds.
	ErrInvalidArgument = errors.New("authz.invalid_argument")

	// ErrUnsupportedChecker is returned by New when the configured checker
	// cannot run against the provided store.
	ErrUnsupportedChecker = errors.New("authz.unsupported_checker")

	// ErrStoreReadOnly is returned when a mutation is requested against a
	// store that does not implement MutationStore.
	ErrStoreReadOnly = errors.New("authz.store_read_only")

	// ErrNoSubjectInContext is returned by the middleware when no subject
	// was stored in the request context.
	ErrNoSubjectInContext = errors.New("authz.no_subject_in_context")
)
