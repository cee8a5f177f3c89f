package wsconn

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Handler.
type Option func(*Handler)

func WithReadBuffer(size int) Option {
	return func(h *Handler) {
		h.upgrader.ReadBufferSize = size
	}
}

func WithWriteBuffer(size int) Option {
	return func(h *Handler) {
		h.upgrader.WriteBufferSize = size
	}
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		h.upgrader.HandshakeTimeout = timeout
	}
}

func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

func WithAllowAnyOrigin() Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// WithAllowedOrigins accepts only the listed Origin header values.
// An empty list allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		if len(origins) == 0 {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.ContainsFunc(allowed, func(o string) bool {
				return strings.EqualFold(o, origin)
			})
		}
	}
}

func WithSubprotocols(protocols ...string) Option {
	return func(h *Handler) {
		h.upgrader.Subprotocols = protocols
	}
}

// WithSendQueueSize sets the per-connection outbound queue capacity.
func WithSendQueueSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendQueue = n
		}
	}
}

func WithWriteWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// WithPongWait sets how long a peer may stay silent before the read fails.
// Pings are sent at 90% of this interval.
func WithPongWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

func WithMaxMessageSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessageSize = n
		}
	}
}

// WithRateLimit limits inbound control messages per connection.
// A non-positive limit disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Handler) {
		if perSecond <= 0 {
			h.limit = rate.Inf
		} else {
			h.limit = rate.Limit(perSecond)
		}
		h.burst = max(burst, 1)
	}
}

// WithIdentityFunc replaces the default identity extraction.
func WithIdentityFunc(fn func(r *http.Request) string) Option {
	return func(h *Handler) {
		if fn != nil {
			h.identity = fn
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
