package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/response"
)

// Check reports whether a dependency is usable.
type Check func(context.Context) error

// Readiness verifies all service dependencies are functioning.
// Returns "READY" if all checks pass, 503 Service Unavailable if any fail.
// Every check runs so the log names all failing dependencies at once.
//
// Example:
//
//	ready := health.Readiness(log,
//		dispatcher.Healthcheck,
//		pg.Healthcheck(pool),
//	)
//	mux.Handle("GET /health/ready", handler.Adapt(ready, response.JSONErrorHandler))
func Readiness(log *slog.Logger, checks ...Check) handler.Func {
	return func(r *http.Request) handler.Response {
		ctx := r.Context()

		var errs []error
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if err := errors.Join(errs...); err != nil {
			if log != nil {
				log.ErrorContext(ctx, "Readiness check failed", logger.Error(err))
			}
			return response.Error(response.ErrServiceUnavailable)
		}

		return response.String("READY")
	}
}
