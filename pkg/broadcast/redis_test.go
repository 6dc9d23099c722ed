package broadcast_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/pkg/broadcast"
)

type event struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisBroadcaster_PublishSubscribe(t *testing.T) {
	t.Parallel()

	_, client := newRedisClient(t)
	b := broadcast.NewRedisBroadcaster[event](client, broadcast.WithRedisBufferSize(8))
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "user:bob")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "user:carol")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "user:bob", event{Type: "tip", Amount: 5}))

	msg := receive(t, sub)
	assert.Equal(t, "user:bob", msg.Channel)
	assert.Equal(t, event{Type: "tip", Amount: 5}, msg.Data)
	assertNoMessage(t, other)
}

func TestRedisBroadcaster_UsesPrefix(t *testing.T) {
	t.Parallel()

	_, client := newRedisClient(t)
	b := broadcast.NewRedisBroadcaster[event](client, broadcast.WithRedisPrefix("test:"))
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	raw := client.Subscribe(ctx, "test:user:bob")
	t.Cleanup(func() { _ = raw.Close() })
	_, err := raw.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "user:bob", event{Type: "like"}))

	got, err := raw.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test:user:bob", got.Channel)
	assert.JSONEq(t, `{"channel":"user:bob","data":{"type":"like","amount":0}}`, got.Payload)
}

func TestRedisBroadcaster_SkipsUndecodablePayload(t *testing.T) {
	t.Parallel()

	_, client := newRedisClient(t)
	b := broadcast.NewRedisBroadcaster[event](client)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "ch")
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, broadcast.DefaultRedisPrefix+"ch", "not json").Err())
	require.NoError(t, b.Publish(ctx, "ch", event{Type: "follow"}))

	assert.Equal(t, "follow", receive(t, sub).Data.Type)
}

func TestRedisBroadcaster_Close(t *testing.T) {
	t.Parallel()

	_, client := newRedisClient(t)
	b := broadcast.NewRedisBroadcaster[event](client)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "ch")
	require.NoError(t, err)

	require.NoError(t, b.Close())

	_, ok := <-sub.Receive()
	assert.False(t, ok)

	_, err = b.Subscribe(ctx, "ch")
	assert.ErrorIs(t, err, broadcast.ErrClosed)
	assert.ErrorIs(t, b.Publish(ctx, "ch", event{}), broadcast.ErrClosed)
}

func TestRedisBroadcaster_PublishFailsWhenRedisDown(t *testing.T) {
	t.Parallel()

	mr, client := newRedisClient(t)
	b := broadcast.NewRedisBroadcaster[event](client)
	t.Cleanup(func() { _ = b.Close() })

	mr.Close()

	assert.Error(t, b.Publish(context.Background(), "ch", event{}))
}
