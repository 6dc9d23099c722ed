package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces pub/sub channels on a shared Redis.
const DefaultRedisPrefix = "realtime:"

// RedisOption configures a RedisBroadcaster.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	bufferSize int
	logger     *slog.Logger
}

// WithRedisPrefix sets the prefix prepended to every channel name.
func WithRedisPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisBufferSize sets the per-subscriber buffer.
func WithRedisBufferSize(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithRedisLogger sets the logger used for undecodable messages.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// RedisBroadcaster delivers messages across processes over Redis pub/sub.
// Messages are JSON encoded; publishing with no listeners is not an error.
type RedisBroadcaster[T any] struct {
	client redis.UniversalClient
	opts   redisOptions

	mu     sync.Mutex
	subs   map[*subscriber[T]]struct{}
	closed bool
}

// NewRedisBroadcaster creates a broadcaster on top of client.
// The client is owned by the caller and is not closed by Close.
func NewRedisBroadcaster[T any](client redis.UniversalClient, opts ...RedisOption) *RedisBroadcaster[T] {
	o := redisOptions{
		prefix:     DefaultRedisPrefix,
		bufferSize: 64,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &RedisBroadcaster[T]{
		client: client,
		opts:   o,
		subs:   make(map[*subscriber[T]]struct{}),
	}
}

func (b *RedisBroadcaster[T]) Subscribe(ctx context.Context, channels ...string) (Subscriber[T], error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = b.opts.prefix + ch
	}

	ps := b.client.Subscribe(ctx, names...)
	// Wait for every confirmation so that a Publish after Subscribe returns is seen.
	for range names {
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("broadcast: subscribe: %w", err)
		}
	}

	stop := make(chan struct{})
	var sub *subscriber[T]
	sub = newSubscriber[T](b.opts.bufferSize, func() {
		close(stop)
		_ = ps.Close()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Close()
		return nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go b.pump(ps.Channel(), sub)
	closeOnDone(ctx, sub, stop)

	return sub, nil
}

func (b *RedisBroadcaster[T]) pump(in <-chan *redis.Message, sub *subscriber[T]) {
	for raw := range in {
		var msg Message[T]
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			b.opts.logger.Warn("dropping undecodable broadcast message",
				slog.String("channel", raw.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		sub.deliver(msg)
	}
}

func (b *RedisBroadcaster[T]) Publish(ctx context.Context, channel string, data T) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(Message[T]{Channel: channel, Data: data})
	if err != nil {
		return fmt.Errorf("broadcast: encode message: %w", err)
	}

	if err := b.client.Publish(ctx, b.opts.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("broadcast: publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscriber[T], 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}
