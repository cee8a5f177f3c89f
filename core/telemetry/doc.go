// Package telemetry exports gateway internals to Prometheus.
//
// Collector reads the Stats() snapshot of each attached component on every
// scrape. HTTPMetrics adds per-route request counters and latency histograms.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(telemetry.NewCollector(
//		telemetry.WithRegistry(registry),
//		telemetry.WithDispatcher(dispatcher),
//	))
//	mux.Handle("GET /metrics", telemetry.Handler(reg))
package telemetry
