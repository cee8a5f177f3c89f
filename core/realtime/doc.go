// Package realtime holds live subscriber state: the connection Registry and the
// channel Broker that fans frames out to channel members.
//
// A connection is registered with a transport Sender and is automatically
// subscribed to the broadcast channel and, when an identity is present, to its
// identity channel:
//
//	reg := realtime.NewRegistry(realtime.WithLogger(log))
//	broker := realtime.NewBroker(reg)
//
//	conn, err := reg.Connect("user-42", map[string]string{"client": "web"}, sender)
//	if err != nil {
//		return err
//	}
//	_ = broker.Subscribe(conn.ID(), "orders")
//
//	n, err := broker.Multicast(ctx, "orders", realtime.Frame{Type: "order_completed", Payload: raw})
//
// Multicast never blocks on one subscriber and never fails because of one
// subscriber. A failed send produces a DeliveryError in the log and evicts the
// connection after the pass.
//
// Connection and identity maps are split into lock shards by fnv hash of the
// key. The channel index is sharded by channel name. Lock order is connection
// mutex, then channel shard.
package realtime
