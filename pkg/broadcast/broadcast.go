package broadcast

import (
	"context"
	"sync"
)

// Message is a value published on a named channel.
type Message[T any] struct {
	Channel string `json:"channel"`
	Data    T      `json:"data"`
}

// Subscriber receives messages for the channels it subscribed to.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed after Close or when
	// the subscription context ends.
	Receive() <-chan Message[T]

	// Close ends the subscription. Safe to call more than once.
	Close() error
}

// Broadcaster fans messages out to every subscriber of a channel.
// Delivery is best-effort: a subscriber whose buffer is full misses the message
// instead of blocking the publisher.
type Broadcaster[T any] interface {
	// Subscribe listens on channels until ctx ends or the subscriber is closed.
	Subscribe(ctx context.Context, channels ...string) (Subscriber[T], error)

	// Publish sends data to the current subscribers of channel.
	Publish(ctx context.Context, channel string, data T) error

	// Close ends every subscription. Later calls to Subscribe and Publish return ErrClosed.
	Close() error
}

type subscriber[T any] struct {
	ch      chan Message[T]
	mu      sync.RWMutex
	closed  bool
	onClose func()
	once    sync.Once
}

func newSubscriber[T any](bufferSize int, onClose func()) *subscriber[T] {
	return &subscriber[T]{
		ch:      make(chan Message[T], max(bufferSize, 1)),
		onClose: onClose,
	}
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

// deliver reports false when the message was dropped.
func (s *subscriber[T]) deliver(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// closeOnDone closes sub when ctx ends, unless sub was closed first.
func closeOnDone[T any](ctx context.Context, sub *subscriber[T], stop <-chan struct{}) {
	if ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-stop:
		}
	}()
}
