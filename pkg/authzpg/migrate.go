package authzpg

import (
	"context"
	"embed"

	"github.com/dmitrymomot/authzkit/pkg/authz"
	"github.com/dmitrymomot/authzkit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations for the assignment
// tables.
func Migrate(ctx context.Context, cfg pg.Config) error {
	return pg.Migrate(ctx, cfg.ConnectionString, migrations, "migrations", cfg)
}

var (
	_ authz.Store         = (*Store)(nil)
	_ authz.CountStore    = (*Store)(nil)
	_ authz.MutationStore = (*Store)(nil)
)
