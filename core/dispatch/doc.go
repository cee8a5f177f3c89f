// Package dispatch moves events from the event log to subscribers.
//
// A Dispatcher owns a fixed pool of workers. Each worker claims a batch of
// pending events and, for every event in order:
//
//  1. runs the side-effect handlers registered for the event type (a panic is
//     recovered and reported as a HandlerError);
//  2. multicasts the event to each of its channels;
//  3. completes the event, or records the failure so the store retries it with
//     exponential backoff. Once retries are exhausted the event is failed and
//     the configured Alerter receives a RetryExhaustedError.
//
// Handler errors never stop delivery, so subscribers may see an event again
// after a retry. Delivery is at-least-once.
//
//	d, err := dispatch.NewFromConfig(cfg, store, broker,
//		dispatch.WithHandlers(metrics.OrderCompletedHandler(agg, window)),
//		dispatch.WithAlerter(dispatch.MultiAlerter(
//			dispatch.NewLogAlerter(log),
//			dispatch.NewChannelAlerter(broker, "system:alerts"),
//		)),
//	)
//
//	g.Go(d.Run(ctx))
package dispatch
