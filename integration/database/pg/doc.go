// Package pg provides PostgreSQL connection management for the durable event log.
//
// Connect builds a pgx pool from Config and verifies it with a ping, retrying
// with exponential backoff. Migrate applies goose migrations from any fs.FS,
// typically an embedded directory owned by the repository package:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// Healthcheck returns a func(context.Context) error suitable for readiness probes.
//
// WithTx and QuerierFromContext let repositories join a caller's transaction,
// so an application can write its own rows and publish an event atomically.
//
// Error classification helpers (IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError, IsTxClosedError, IsRetryableError) inspect pgx
// and PostgreSQL error codes.
package pg
