// Package pgstore is the durable PostgreSQL event log.
//
// It implements eventlog.Store over a single gateway_events table whose schema
// ships as embedded goose migrations (see Migrations). Claim runs inside a
// transaction holding a transaction-scoped advisory lock, so the per-channel
// ordering decision is made by one claimer at a time while Complete, Fail and
// Replay are single conditional UPDATE statements.
//
// Append joins a transaction carried by the context (pg.WithTx), which lets
// producers that share the database publish an event atomically with their own
// writes.
package pgstore
