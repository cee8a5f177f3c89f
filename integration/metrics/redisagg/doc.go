// Package redisagg is a Redis-backed metrics.Aggregator.
//
// Each bucket is a hash keyed by metric name, window start and dimension key;
// a per-metric sorted set indexes buckets by window so range queries read only
// the relevant hashes. Updates run as a single Lua script, which keeps counter
// increments atomic across gateway processes and rejects samples whose kind
// differs from the bucket's. Buckets and indexes expire after the configured
// retention once they stop receiving samples.
package redisagg
