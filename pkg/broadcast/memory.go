package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster delivers messages within one process.
type MemoryBroadcaster[T any] struct {
	mu         sync.RWMutex
	channels   map[string]map[*subscriber[T]]struct{}
	bufferSize int
	closed     bool
}

// NewMemoryBroadcaster creates a broadcaster whose subscribers buffer up to
// bufferSize messages (at least 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		channels:   make(map[string]map[*subscriber[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context, channels ...string) (Subscriber[T], error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	stop := make(chan struct{})
	var sub *subscriber[T]
	sub = newSubscriber[T](b.bufferSize, func() {
		close(stop)
		b.unsubscribe(sub, channels)
	})

	for _, ch := range channels {
		subs, ok := b.channels[ch]
		if !ok {
			subs = make(map[*subscriber[T]]struct{})
			b.channels[ch] = subs
		}
		subs[sub] = struct{}{}
	}

	closeOnDone(ctx, sub, stop)
	return sub, nil
}

func (b *MemoryBroadcaster[T]) Publish(_ context.Context, channel string, data T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	msg := Message[T]{Channel: channel, Data: data}
	for sub := range b.channels[channel] {
		sub.deliver(msg)
	}
	return nil
}

func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*subscriber[T]
	seen := make(map[*subscriber[T]]struct{})
	for _, set := range b.channels {
		for sub := range set {
			if _, ok := seen[sub]; !ok {
				seen[sub] = struct{}{}
				subs = append(subs, sub)
			}
		}
	}
	clear(b.channels)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

// SubscriberCount returns the number of subscribers of channel.
func (b *MemoryBroadcaster[T]) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T], channels []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range channels {
		if subs, ok := b.channels[ch]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.channels, ch)
			}
		}
	}
}
