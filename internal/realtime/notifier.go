// Package realtime delivers domain events to realtime channels.
package realtime

import (
	"context"
	"log/slog"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/broadcast"
	"github.com/solshare/pipeline/pkg/logger"
)

// Publisher is the subset of broadcast.Broadcaster the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data domain.Event) error
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used for failed deliveries.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// Notifier publishes events on a broadcaster. Failures are logged, never returned.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewNotifier creates a notifier publishing on p.
func NewNotifier(p Publisher, opts ...Option) *Notifier {
	n := &Notifier{
		publisher: p,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("realtime"))
	return n
}

// Broadcast publishes ev on channel.
func (n *Notifier) Broadcast(ctx context.Context, channel string, ev domain.Event) {
	if err := n.publisher.Publish(ctx, channel, ev); err != nil {
		n.logger.WarnContext(ctx, "realtime broadcast failed",
			logger.Channel(channel),
			logger.EventType(string(ev.Type)),
			logger.Error(err),
		)
		return
	}

	n.logger.DebugContext(ctx, "realtime event published",
		logger.Channel(channel),
		logger.EventType(string(ev.Type)),
	)
}

var _ Publisher = (broadcast.Broadcaster[domain.Event])(nil)
