package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/eventgateway/core/handler"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/pkg/clientip"
)

// LoggingConfig configures the access log middleware.
type LoggingConfig struct {
	// Skip bypasses logging for matching requests, e.g. health probes.
	Skip func(r *http.Request) bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// LogLevel for successful requests (default: info).
	LogLevel slog.Level
	// SlowRequestThreshold promotes slow requests to warn (default: 5s).
	SlowRequestThreshold time.Duration
	// Component name for structured logging (default: "http").
	Component string
}

// Logging logs one line per request with the given logger.
func Logging(log *slog.Logger) handler.Middleware {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig logs method, path, status and duration of every request.
// 5xx responses are logged at error level, 4xx and slow requests at warn.
func LoggingWithConfig(cfg LoggingConfig) handler.Middleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = slog.LevelInfo
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 5 * time.Second
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			ip, ok := GetClientIP(r.Context())
			if !ok {
				ip = clientip.GetIP(r)
			}
			attrs := []slog.Attr{
				logger.Component(cfg.Component),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.StatusCode(rw.statusCode),
				logger.Duration(duration),
				logger.ClientIP(ip),
				logger.UserAgent(r.UserAgent()),
				slog.Int("bytes_out", rw.size),
			}
			if id, ok := GetRequestID(r.Context()); ok {
				attrs = append(attrs, logger.RequestID(id))
			}

			level := cfg.LogLevel
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			case duration > cfg.SlowRequestThreshold:
				level = slog.LevelWarn
				attrs = append(attrs, slog.Bool("slow_request", true))
			}

			cfg.Logger.LogAttrs(r.Context(), level, "HTTP request completed", attrs...)
		})
	}
}

// responseWriter captures status and size. Hijack is forwarded so WebSocket
// upgrades pass through.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	size          int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = statusCode
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
