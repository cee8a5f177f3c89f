package wsconn

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/eventgateway/core/realtime"
)

// session is the realtime.Sender of one WebSocket connection.
// Frames are queued and written by writePump so Send never blocks on the peer.
type session struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, queue int) *session {
	return &session{
		conn: conn,
		send: make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

// Send enqueues the frame. A full queue fails with realtime.ErrSlowConsumer.
func (s *session) Send(ctx context.Context, f realtime.Frame) error {
	select {
	case <-s.done:
		return realtime.ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return realtime.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return realtime.ErrSlowConsumer
	}
}

// Close stops the write pump. Safe to call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *session) closed() <-chan struct{} { return s.done }

// writePump owns all writes to the socket.
func (s *session) writePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close()
				return
			}
		}
	}
}
