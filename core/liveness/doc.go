// Package liveness evicts idle realtime connections and keeps live ones warm
// with heartbeat frames.
//
// Every Interval the Monitor disconnects connections whose last activity is
// older than Timeout, then multicasts a heartbeat frame on the broadcast
// channel. Heartbeats are not activity: a client that only receives heartbeats
// is still evicted once it goes quiet.
//
//	mon, err := liveness.NewFromConfig(cfg, registry, broker, liveness.WithLogger(log))
//	g.Go(mon.Run(ctx))
package liveness
