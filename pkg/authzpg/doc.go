// Package authzpg provides the PostgreSQL-backed assignment store for
// the authz service, built on pgx/v5.
//
// A single Store implements all three store interfaces (read, count,
// mutation), so it serves the cached checker, the query checker, and
// the write path with one connection pool:
//
//	pool, err := pg.Connect(ctx, pgCfg)
//	if err != nil { ... }
//	if err := authzpg.Migrate(ctx, pgCfg); err != nil { ... }
//
//	svc, err := authz.New(authzpg.New(pool))
//
// Team scoping maps onto a nullable team_id column compared with
// IS NOT DISTINCT FROM, so global assignments (NULL team) follow the
// same equality rule as scoped ones. Wildcard permission names are
// translated to SQL LIKE patterns, and counts are taken over distinct
// names to match the in-memory evaluation exactly.
//
// The schema ships as embedded goose migrations; see Migrate.
package authzpg
