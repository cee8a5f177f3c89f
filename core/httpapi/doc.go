// Package httpapi exposes the gateway over HTTP using the standard ServeMux
// method and wildcard patterns.
//
// Routes:
//
//	POST /v1/events                       publish an event (202 {"event_id"})
//	POST /v1/identities/{identity}/events publish to one identity's connections
//	GET  /v1/events                       list events (status, type, correlation_id, limit)
//	GET  /v1/events/{id}                  audit a single event
//	POST /v1/events/{id}/replay           re-queue a failed event
//	GET  /v1/metrics/{name}               query buckets (from, to, dim.<key>=<value>)
//	GET  /ws                              WebSocket subscription endpoint
//	GET  /health/live, /health/ready      probes
//	GET  /metrics                         Prometheus exposition
//
// Errors are JSON bodies of the form {"code":"...","message":"..."}.
package httpapi
