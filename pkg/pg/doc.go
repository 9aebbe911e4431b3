// Package pg provides helpers for connecting to PostgreSQL and running
// schema migrations.
//
// Connections are established through pgxpool with automatic retry, pool
// sizing taken from Config (populated from environment variables via
// github.com/caarlos0/env), and a ping on every attempt so startup fails
// fast on bad credentials rather than on the first query.
//
// Migrations are applied with github.com/pressly/goose from any fs.FS,
// which lets callers embed their SQL files next to the store that uses
// them:
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	if err := pg.Migrate(ctx, cfg.ConnectionString, migrations, "migrations", cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// The error helpers (IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError) translate driver-level failures into the
// questions repositories actually ask.
package pg
