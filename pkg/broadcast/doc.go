// Package broadcast fans typed messages out to subscribers of named channels.
//
// Two implementations share the Broadcaster interface: MemoryBroadcaster for a
// single process and tests, and RedisBroadcaster for delivery across processes
// over Redis pub/sub. Delivery is best-effort in both. A subscriber that does not
// drain its buffer misses messages rather than slowing the publisher down.
//
//	b := broadcast.NewRedisBroadcaster[Event](client)
//	defer b.Close()
//
//	sub, err := b.Subscribe(ctx, "user:abc")
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//
//	for msg := range sub.Receive() {
//		handle(msg.Channel, msg.Data)
//	}
//
// Subscriptions end when their context is cancelled, when Close is called on the
// subscriber, or when the broadcaster is closed. The Receive channel is closed in
// every case.
package broadcast
