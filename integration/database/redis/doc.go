// Package redis provides Redis client initialization and health checking.
//
// Connect validates the redis:// or rediss:// URL, creates a go-redis client
// and retries PING with exponential backoff until the server answers or
// ConnectTimeout elapses:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	agg := redisagg.New(client)
//
// Healthcheck returns a func(context.Context) error suitable for readiness probes.
//
// Errors: ErrEmptyConnectionURL, ErrFailedToParseRedisConnString,
// ErrRedisNotReady and ErrHealthcheckFailed wrap the underlying client error
// and are matched with errors.Is.
package redis
