package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventgateway/core/handler"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	// Generator creates new request IDs (default: UUID v4).
	Generator func() string
	// HeaderName overrides RequestIDHeader.
	HeaderName string
	// UseExisting keeps a request ID sent by the client.
	UseExisting bool
}

// RequestID assigns a fresh UUID to every request.
func RequestID() handler.Middleware {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig stores the request ID in the context and echoes it in
// the response headers.
func RequestIDWithConfig(cfg RequestIDConfig) handler.Middleware {
	if cfg.HeaderName == "" {
		cfg.HeaderName = RequestIDHeader
	}
	if cfg.Generator == nil {
		cfg.Generator = func() string { return uuid.New().String() }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cfg.UseExisting {
				id = r.Header.Get(cfg.HeaderName)
			}
			if id == "" {
				id = cfg.Generator()
			}
			w.Header().Set(cfg.HeaderName, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// GetRequestID returns the request ID stored in ctx.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok
}

// RequestIDKey is the context key used by RequestID, for logger.WithContextValue.
func RequestIDKey() any { return requestIDContextKey{} }
