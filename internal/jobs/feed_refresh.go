package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/pkg/logger"
)

// FeedRefreshProcessor invalidates cached feed data. It never recomputes a
// feed; the next read rebuilds it.
type FeedRefreshProcessor struct {
	cache    FeedCache
	timeouts Timeouts
	logger   *slog.Logger
}

// NewFeedRefreshProcessor creates the feed-refresh processor.
func NewFeedRefreshProcessor(cache FeedCache, opts ...ProcessorOption) *FeedRefreshProcessor {
	o := newProcessorOptions(QueueFeedRefresh, opts)
	return &FeedRefreshProcessor{
		cache:    cache,
		timeouts: o.timeouts,
		logger:   o.logger,
	}
}

// Process drops the cached feed of the wallet, and its following list too
// when the refresh was caused by a new follow.
func (p *FeedRefreshProcessor) Process(ctx context.Context, job FeedRefreshPayload) Result {
	if job.Wallet == "" {
		return Skipped("wallet is required")
	}

	err := call(ctx, p.timeouts.Cache, func(ctx context.Context) error {
		return p.cache.InvalidateFeed(ctx, job.Wallet)
	})
	if err != nil {
		return Transient(fmt.Errorf("invalidate feed of %s: %w", job.Wallet, err))
	}

	if job.Reason == FeedRefreshNewFollow {
		err := call(ctx, p.timeouts.Cache, func(ctx context.Context) error {
			return p.cache.InvalidateFollowing(ctx, job.Wallet)
		})
		if err != nil {
			return Transient(fmt.Errorf("invalidate following of %s: %w", job.Wallet, err))
		}
	}

	p.logger.DebugContext(ctx, "feed cache invalidated",
		logger.Wallet(job.Wallet),
		slog.String("reason", string(job.Reason)))

	return Applied()
}
