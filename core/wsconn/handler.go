package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// IdentityHeader and IdentityParam carry the client identity on upgrade.
const (
	IdentityHeader = "X-Identity"
	IdentityParam  = "identity"
)

// Handler upgrades HTTP requests to WebSocket connections registered in the realtime registry.
type Handler struct {
	registry *realtime.Registry
	broker   *realtime.Broker
	upgrader websocket.Upgrader
	identity func(r *http.Request) string
	logger   *slog.Logger

	sendQueue      int
	writeWait      time.Duration
	pongWait       time.Duration
	maxMessageSize int64
	limit          rate.Limit
	burst          int
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *realtime.Registry, broker *realtime.Broker, opts ...Option) *Handler {
	cfg := DefaultConfig()
	h := &Handler{
		registry: registry,
		broker:   broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		identity:       identityFromRequest,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		sendQueue:      cfg.SendQueueSize,
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		maxMessageSize: cfg.MaxMessageSize,
		limit:          rate.Limit(cfg.RateLimit),
		burst:          cfg.RateBurst,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewHandlerFromConfig creates a handler from configuration.
func NewHandlerFromConfig(cfg Config, registry *realtime.Registry, broker *realtime.Broker, opts ...Option) *Handler {
	configOpts := []Option{
		WithReadBuffer(cfg.ReadBufferSize),
		WithWriteBuffer(cfg.WriteBufferSize),
		WithHandshakeTimeout(cfg.HandshakeTimeout),
		WithSendQueueSize(cfg.SendQueueSize),
		WithWriteWait(cfg.WriteWait),
		WithPongWait(cfg.PongWait),
		WithMaxMessageSize(cfg.MaxMessageSize),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		WithAllowedOrigins(cfg.AllowedOrigins...),
	}
	return NewHandler(registry, broker, append(configOpts, opts...)...)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.DebugContext(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	s := newSession(conn, h.sendQueue)
	c, err := h.registry.Connect(h.identity(r), requestMetadata(r), s)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to register connection", logger.Error(err))
		_ = conn.Close()
		return
	}

	log := h.logger.With(logger.ConnectionID(c.ID()), logger.Identity(c.Identity()))
	log.InfoContext(r.Context(), "websocket connected")

	go s.writePump(h.writeWait, h.pingPeriod())

	_ = s.Send(r.Context(), controlFrame(FrameConnected, "", ConnectedPayload{
		ConnectionID: c.ID(),
		Identity:     c.Identity(),
		Channels:     c.Channels(),
	}, time.Now()))

	h.readPump(r.Context(), c, s, log)

	if err := h.registry.Disconnect(c.ID()); err != nil && !errors.Is(err, realtime.ErrNotFound) {
		log.WarnContext(r.Context(), "disconnect failed", logger.Error(err))
	}
	_ = s.Close()
	log.InfoContext(r.Context(), "websocket disconnected")
}

func (h *Handler) pingPeriod() time.Duration { return h.pongWait * 9 / 10 }

func (h *Handler) readPump(ctx context.Context, c *realtime.Connection, s *session, log *slog.Logger) {
	conn := s.conn
	conn.SetReadLimit(h.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		_ = h.registry.Touch(c.ID())
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	limiter := rate.NewLimiter(h.limit, h.burst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.DebugContext(ctx, "websocket read failed", logger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		_ = h.registry.Touch(c.ID())

		if !limiter.Allow() {
			_ = s.Send(ctx, errorFrame(ControlMessage{}, CodeRateLimited, "too many messages", time.Now()))
			continue
		}

		reply := h.handleControl(c, data)
		if err := s.Send(ctx, reply); err != nil {
			log.DebugContext(ctx, "failed to queue reply", logger.Error(err))
		}

		select {
		case <-s.closed():
			return
		default:
		}
	}
}

func (h *Handler) handleControl(c *realtime.Connection, data []byte) realtime.Frame {
	now := time.Now()

	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorFrame(msg, CodeInvalidMessage, "malformed control message", now)
	}

	switch msg.Action {
	case ActionPing:
		return ackFrame(msg, now)
	case ActionSubscribe:
		if !h.mayJoin(c, msg.Channel) {
			return errorFrame(msg, CodeForbidden, "channel belongs to another identity", now)
		}
		if err := h.broker.Subscribe(c.ID(), msg.Channel); err != nil {
			return h.brokerError(msg, err, now)
		}
		return ackFrame(msg, now)
	case ActionUnsubscribe:
		if err := h.broker.Unsubscribe(c.ID(), msg.Channel); err != nil && !errors.Is(err, realtime.ErrNotFound) {
			return h.brokerError(msg, err, now)
		}
		return ackFrame(msg, now)
	default:
		return errorFrame(msg, CodeUnknownAction, "unknown action "+msg.Action, now)
	}
}

func (h *Handler) brokerError(msg ControlMessage, err error, now time.Time) realtime.Frame {
	if errors.Is(err, realtime.ErrInvalidChannel) {
		return errorFrame(msg, CodeInvalidChannel, err.Error(), now)
	}
	return errorFrame(msg, CodeInternal, "subscription failed", now)
}

// mayJoin rejects identity channels other than the connection's own.
func (h *Handler) mayJoin(c *realtime.Connection, channel string) bool {
	if !strings.HasPrefix(channel, h.registry.IdentityChannelPrefix()) {
		return true
	}
	return c.Identity() != "" && channel == h.registry.IdentityChannel(c.Identity())
}

func identityFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(IdentityHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get(IdentityParam))
}

func requestMetadata(r *http.Request) map[string]string {
	md := map[string]string{
		"transport":   "websocket",
		"remote_addr": r.RemoteAddr,
	}
	if ua := r.UserAgent(); ua != "" {
		md["user_agent"] = ua
	}
	if v := r.Header.Get("X-Client-Version"); v != "" {
		md["client_version"] = v
	}
	return md
}
