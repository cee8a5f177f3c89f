package wsconn

import "time"

// Config holds WebSocket transport settings.
type Config struct {
	ReadBufferSize   int           `env:"WS_READ_BUFFER" envDefault:"1024"`
	WriteBufferSize  int           `env:"WS_WRITE_BUFFER" envDefault:"1024"`
	HandshakeTimeout time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	SendQueueSize    int           `env:"WS_SEND_QUEUE" envDefault:"256"`
	WriteWait        time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait         time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	MaxMessageSize   int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"4096"`
	RateLimit        float64       `env:"WS_RATE_LIMIT" envDefault:"20"`
	RateBurst        int           `env:"WS_RATE_BURST" envDefault:"40"`
	AllowedOrigins   []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		SendQueueSize:    256,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		MaxMessageSize:   4096,
		RateLimit:        20,
		RateBurst:        40,
	}
}
