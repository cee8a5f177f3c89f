package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// Migrate applies every pending migration found at the root of fsys.
// goose runs over database/sql, so the pool is wrapped with pgx's stdlib adapter.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, table string, log *slog.Logger) error {
	if fsys == nil {
		return ErrMigrationsNotProvided
	}
	if table == "" {
		table = "schema_migrations"
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	store, err := database.NewStore(database.DialectPostgres, table)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	provider, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if log != nil {
		for _, r := range results {
			log.InfoContext(ctx, "migration applied",
				slog.String("source", r.Source.Path),
				slog.Int64("version", r.Source.Version),
				slog.Duration("duration", r.Duration),
			)
		}
	}
	return nil
}

// Version returns the current schema version recorded in table.
func Version(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, table string) (int64, error) {
	if fsys == nil {
		return 0, ErrMigrationsNotProvided
	}
	if table == "" {
		table = "schema_migrations"
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	store, err := database.NewStore(database.DialectPostgres, table)
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
	if err != nil {
		return 0, fmt.Errorf("init migration provider: %w", err)
	}
	return provider.GetDBVersion(ctx)
}
