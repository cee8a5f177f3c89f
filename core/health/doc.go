// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: all dependencies and background workers are available
//   - NoContent: returns 204 for minimal overhead
//
// Dependency checks follow the func(context.Context) error signature used by
// every long-running component's Healthcheck method:
//
//	ready := health.Readiness(log, reaper.Healthcheck, dispatcher.Healthcheck, monitor.Healthcheck)
package health
