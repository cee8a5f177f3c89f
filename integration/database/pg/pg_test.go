package pg_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/integration/database/pg"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.True(t, pg.IsTxClosedError(pgx.ErrTxClosed))
	assert.True(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, pg.IsForeignKeyViolationError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})))
	assert.True(t, pg.IsRetryableError(&pgconn.PgError{Code: "40001"}))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("23505")))
}

func TestConnectValidation(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestTxContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := pg.TxFromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, ctx, pg.WithTx(ctx, nil))
}

func TestConnectAndMigrate(t *testing.T) {
	url := os.Getenv("PG_CONN_URL")
	if url == "" {
		t.Skip("PG_CONN_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, RetryAttempts: 1, RetryInterval: time.Second})
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, pg.Healthcheck(pool)(ctx))

	table := fmt.Sprintf("pg_test_migrations_%d", time.Now().UnixNano())
	fsys := fstest.MapFS{
		"00001_probe.sql": {Data: []byte("-- +goose Up\nCREATE TABLE IF NOT EXISTS " + table + "_probe (id INT);\n-- +goose Down\nDROP TABLE IF EXISTS " + table + "_probe;\n")},
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table+"_probe")
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
	})

	require.NoError(t, pg.Migrate(ctx, pool, fsys, table, logger.NewNope()))
	version, err := pg.Version(ctx, pool, fsys, table)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	assert.ErrorIs(t, pg.Migrate(ctx, pool, nil, table, nil), pg.ErrMigrationsNotProvided)
}
