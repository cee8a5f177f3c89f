// Package eventlog is the durable, ordered log of business events awaiting
// fan-out.
//
// Producers call Publisher.Publish, which validates the input, resolves the
// routing key to broker channels and appends a pending event. The dispatcher
// then drives each event through the status machine:
//
//	pending -> processing -> completed
//	                      -> pending (retry after backoff, RetryCount+1)
//	                      -> failed  (retries exhausted; operator Replay resets)
//
// Claim is the only pending -> processing transition and never hands the same
// event to two workers. It also holds back events that share a channel with an
// event already in processing, which keeps per-channel delivery order.
//
// MemoryStore implements Store for tests and single-node development; the
// Postgres store lives in integration/eventlog/pgstore. Reaper releases locks
// held past LockedUntil so a crashed worker never strands an event.
package eventlog
