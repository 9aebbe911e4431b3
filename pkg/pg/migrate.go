package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies all pending SQL migrations from fsys against the
// database the pool points at. The migrations filesystem is rooted at
// dir (".", or a subdirectory like "migrations").
//
// goose requires database/sql, so a standalone stdlib connection is
// opened for the duration of the run.
func Migrate(ctx context.Context, connString string, fsys fs.FS, dir string, cfg Config) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	return nil
}
