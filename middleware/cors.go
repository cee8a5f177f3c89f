package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/eventgateway/core/handler"
)

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows all.
	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	// AllowMethods defaults to GET, HEAD, POST.
	AllowMethods []string `env:"CORS_ALLOW_METHODS" envSeparator:","`
	// AllowHeaders defaults to the headers the gateway API reads.
	AllowHeaders []string `env:"CORS_ALLOW_HEADERS" envSeparator:","`
	// ExposeHeaders lists response headers readable by the browser.
	ExposeHeaders []string `env:"CORS_EXPOSE_HEADERS" envSeparator:","`
	// AllowCredentials is ignored for wildcard origins.
	AllowCredentials bool `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	// MaxAge caches preflight responses, in seconds.
	MaxAge int `env:"CORS_MAX_AGE" envDefault:"0"`
}

// CORS allows every origin with default methods and headers.
func CORS() handler.Middleware {
	return CORSWithConfig(CORSConfig{})
}

// CORSWithConfig answers preflight requests and decorates actual requests with
// Access-Control headers.
func CORSWithConfig(cfg CORSConfig) handler.Middleware {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{
			"Accept",
			"Content-Type",
			"Origin",
			"Authorization",
			RequestIDHeader,
			"X-Correlation-ID",
			"X-Identity",
		}
	}

	allowMethods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")

	origins := make(map[string]bool, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		origins[o] = true
	}

	resolve := func(origin string) (string, bool) {
		switch {
		case len(origins) == 0 || origins["*"]:
			return "*", true
		case origins[origin]:
			return origin, true
		default:
			return "", false
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowedOrigin, allowed := resolve(origin)
			headers := w.Header()

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed || !slices.Contains(cfg.AllowMethods, r.Header.Get("Access-Control-Request-Method")) {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				headers.Set("Access-Control-Allow-Origin", allowedOrigin)
				headers.Set("Access-Control-Allow-Methods", allowMethods)
				if r.Header.Get("Access-Control-Request-Headers") != "" {
					headers.Set("Access-Control-Allow-Headers", allowHeaders)
				}
				if cfg.AllowCredentials && allowedOrigin != "*" {
					headers.Set("Access-Control-Allow-Credentials", "true")
				}
				if cfg.MaxAge > 0 {
					headers.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				headers.Add("Vary", "Origin")
				headers.Add("Vary", "Access-Control-Request-Method")
				headers.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed {
				headers.Set("Access-Control-Allow-Origin", allowedOrigin)
				if exposeHeaders != "" {
					headers.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
				if cfg.AllowCredentials && allowedOrigin != "*" {
					headers.Set("Access-Control-Allow-Credentials", "true")
				}
				if allowedOrigin != "*" {
					headers.Add("Vary", "Origin")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
