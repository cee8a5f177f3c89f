// Package wsconn is the WebSocket transport for the realtime registry.
//
// Each upgraded request becomes one realtime.Connection. Outbound frames go
// through a bounded per-connection queue drained by a dedicated writer; a full
// queue is reported as realtime.ErrSlowConsumer so the broker can evict the
// connection without stalling other subscribers.
//
// Clients control their subscriptions with JSON messages:
//
//	{"action":"subscribe","channel":"orders"}
//	{"action":"unsubscribe","channel":"orders"}
//	{"action":"ping"}
//
// Every control message is answered with an "ack" or "error" frame. Inbound
// messages are rate limited per connection with golang.org/x/time/rate.
//
// Identity is taken from the X-Identity header or the identity query parameter.
// A connection may only subscribe to its own identity channel.
package wsconn
