package scopes

import "strings"

const (
	// Wildcard matches any sequence of characters, including the empty one.
	Wildcard = "*"

	// DefaultDelimiter separates names in a delimited list (e.g. "users.read|users.write").
	DefaultDelimiter = "|"
)

// IsPattern reports whether name contains a wildcard and therefore has to be
// treated as a pattern rather than an exact permission name.
func IsPattern(name string) bool {
	return strings.Contains(name, Wildcard)
}

// Match reports whether name matches pattern.
//
// Matching is case-sensitive and covers the full string: "admin.*" matches
// "admin.posts" but not "admin" or "superadmin.posts". A pattern without
// wildcards only matches itself. Multiple wildcards are allowed ("*.read").
func Match(name, pattern string) bool {
	if pattern == name {
		return true
	}
	if !IsPattern(pattern) {
		return false
	}
	if pattern == Wildcard {
		return true
	}

	parts := strings.Split(pattern, Wildcard)

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	// Leftmost placement of each middle segment leaves the maximal remainder
	// for the segments that follow, so a failure here is a real mismatch.
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(name, part)
		if idx < 0 {
			return false
		}
		name = name[idx+len(part):]
	}

	return strings.HasSuffix(name, parts[len(parts)-1])
}

// MatchAny reports whether name matches at least one of the patterns.
func MatchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if Match(name, p) {
			return true
		}
	}
	return false
}

// ParseList splits a delimited list of names into a slice, trimming spaces and
// dropping empty entries. An empty delimiter falls back to DefaultDelimiter.
// Returns nil for empty input.
func ParseList(list, delimiter string) []string {
	if list == "" {
		return nil
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	parts := strings.Split(list, delimiter)
	names := make([]string, 0, len(parts))
	for i := range parts {
		if p := strings.TrimSpace(parts[i]); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// JoinList joins names back into a delimited list. An empty delimiter falls
// back to DefaultDelimiter.
func JoinList(names []string, delimiter string) string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return strings.Join(names, delimiter)
}

// Dedupe removes duplicate names preserving first-seen order.
// Returns nil for empty input.
func Dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SplitPatterns partitions names into exact names and wildcard patterns.
// Used by store implementations that translate wildcard matches into
// pattern queries while keeping exact names in a plain IN filter.
func SplitPatterns(names []string) (exact, patterns []string) {
	for _, n := range names {
		if IsPattern(n) {
			patterns = append(patterns, n)
		} else {
			exact = append(exact, n)
		}
	}
	return exact, patterns
}
