// Package metrics aggregates business metric samples into fixed time windows.
//
// A bucket is keyed by metric name, window start and dimension set. Counter
// samples accumulate; gauge samples replace the value in arrival order.
//
//	agg := metrics.NewMemoryAggregator(metrics.WithWindow(5 * time.Minute))
//	_ = agg.Record(ctx, metrics.Sample{Name: "revenue", Value: 500, Kind: metrics.Counter,
//		Dimensions: map[string]string{"vendor_id": "v1"}})
//
//	buckets, _ := agg.Query(ctx, metrics.Query{Name: "revenue", From: from, To: to})
//
// OrderCompletedHandler and SampleHandler plug the aggregator into the
// dispatcher so metrics are derived from the event stream. The Redis backend
// lives in integration/metrics/redisagg.
package metrics
