package dispatch

import "time"

// Config holds dispatcher settings.
type Config struct {
	Workers         int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	BatchSize       int           `env:"DISPATCH_BATCH_SIZE" envDefault:"16"`
	PollInterval    time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"500ms"`
	LockTimeout     time.Duration `env:"DISPATCH_LOCK_TIMEOUT" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"DISPATCH_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BackoffBase     time.Duration `env:"DISPATCH_BACKOFF_BASE" envDefault:"1s"`
	BackoffMax      time.Duration `env:"DISPATCH_BACKOFF_MAX" envDefault:"5m"`
	AlertChannel    string        `env:"DISPATCH_ALERT_CHANNEL" envDefault:"system:alerts"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		BatchSize:       16,
		PollInterval:    500 * time.Millisecond,
		LockTimeout:     time.Minute,
		ShutdownTimeout: 30 * time.Second,
		BackoffBase:     time.Second,
		BackoffMax:      5 * time.Minute,
		AlertChannel:    "system:alerts",
	}
}
