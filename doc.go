// Package gateway assembles the realtime event gateway: a connection registry
// and channel broker for live WebSocket subscribers, a durable event log with
// a dispatcher that fans events out and runs side-effect handlers, a metrics
// aggregator fed by those handlers, a liveness monitor, and the HTTP API.
//
// Producers publish events over HTTP or through Gateway.Publish; the call
// returns once the event is in the log. The dispatcher claims pending events,
// multicasts them to the channels resolved at publish time, records metrics
// and retries failures with backoff until the retry budget runs out, at which
// point operators are alerted.
//
// A typical process loads configuration, picks backends and runs:
//
//	var cfg gateway.Config
//	config.MustLoad(&cfg)
//
//	gw, err := gateway.New(cfg,
//		gateway.WithLogger(log),
//		gateway.WithStore(store),
//		gateway.WithAggregator(agg),
//	)
//	if err != nil {
//		return err
//	}
//	return gw.Run(ctx)
//
// Run blocks until ctx is cancelled. Without WithStore and WithAggregator the
// gateway keeps everything in memory, which suits tests and local development.
package gateway
