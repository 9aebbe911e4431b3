// Package scopes provides wildcard matching and list utilities for
// permission names.
//
// Permission names are dot-separated strings (e.g. "users.read"). A query
// name containing "*" is treated as a glob pattern matched against stored
// names: case-sensitive, full-string, with "*" matching any sequence of
// characters.
//
//	scopes.Match("admin.posts", "admin.*") // true
//	scopes.Match("config.things", "admin.*") // false
//	scopes.Match("users.read", "users.read") // true
//
// ParseList/JoinList handle delimited name lists used by combined
// role+permission checks ("admin|owner" with the "|" delimiter).
package scopes
