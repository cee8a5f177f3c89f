package gateway

import (
	"github.com/dmitrymomot/eventgateway/core/dispatch"
	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/liveness"
	"github.com/dmitrymomot/eventgateway/core/metrics"
	"github.com/dmitrymomot/eventgateway/core/realtime"
	"github.com/dmitrymomot/eventgateway/core/server"
	"github.com/dmitrymomot/eventgateway/core/wsconn"
	"github.com/dmitrymomot/eventgateway/integration/alert/postmark"
	"github.com/dmitrymomot/eventgateway/middleware"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config aggregates every component's configuration. Backend connection
// settings (Postgres, Redis) are loaded separately by the caller only when the
// matching backend is selected.
type Config struct {
	Server    server.Config
	Realtime  realtime.Config
	EventLog  eventlog.Config
	Dispatch  dispatch.Config
	Liveness  liveness.Config
	Metrics   metrics.Config
	WebSocket wsconn.Config
	Alerts    postmark.Config
	CORS      middleware.CORSConfig

	AppName    string `env:"APP_NAME" envDefault:"eventgateway"`
	Env        string `env:"APP_ENV" envDefault:"development"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Store      string `env:"GATEWAY_STORE" envDefault:"memory"`
	Aggregator string `env:"GATEWAY_AGGREGATOR" envDefault:"memory"`
}

// DefaultConfig returns defaults for every component with in-memory backends.
func DefaultConfig() Config {
	return Config{
		Server:     server.DefaultConfig(),
		Realtime:   realtime.DefaultConfig(),
		EventLog:   eventlog.DefaultConfig(),
		Dispatch:   dispatch.DefaultConfig(),
		Liveness:   liveness.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		WebSocket:  wsconn.DefaultConfig(),
		AppName:    "eventgateway",
		Env:        "development",
		LogLevel:   "info",
		Store:      BackendMemory,
		Aggregator: BackendMemory,
	}
}
