package eventlog

import "time"

// Config holds publisher and lock reaper settings.
type Config struct {
	MaxRetries        int               `env:"EVENTLOG_MAX_RETRIES" envDefault:"5"`
	DefaultSource     string            `env:"EVENTLOG_DEFAULT_SOURCE" envDefault:"unknown"`
	LockCheckInterval time.Duration     `env:"EVENTLOG_LOCK_CHECK_INTERVAL" envDefault:"10s"`
	ShutdownTimeout   time.Duration     `env:"EVENTLOG_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Routes            map[string]string `env:"GATEWAY_ROUTES" envSeparator:"," envKeyValSeparator:":"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		DefaultSource:     "unknown",
		LockCheckInterval: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}
