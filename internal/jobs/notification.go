package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

// NotificationProcessor turns notification jobs into realtime events.
// A payload missing a field its type needs is skipped before any store read.
type NotificationProcessor struct {
	store    PostStore
	notifier Notifier
	timeouts Timeouts
	logger   *slog.Logger
}

// NewNotificationProcessor creates the notification processor.
func NewNotificationProcessor(store PostStore, notifier Notifier, opts ...ProcessorOption) *NotificationProcessor {
	o := newProcessorOptions(QueueNotification, opts)
	return &NotificationProcessor{
		store:    store,
		notifier: notifier,
		timeouts: o.timeouts,
		logger:   o.logger,
	}
}

// Process broadcasts one realtime event per notification. Unknown types and
// incomplete payloads are skipped.
func (p *NotificationProcessor) Process(ctx context.Context, n NotificationPayload) Result {
	p.logger.DebugContext(ctx, "processing notification",
		slog.String("type", string(n.Type)),
		logger.PostID(n.PostID))

	switch n.Type {
	case NotificationNewPost:
		return p.newPost(ctx, n)
	case NotificationLike:
		return p.like(ctx, n)
	case NotificationComment:
		return p.comment(ctx, n)
	case NotificationFollow:
		return p.follow(ctx, n)
	case NotificationTip:
		return p.tip(ctx, n)
	default:
		return Skipped(fmt.Sprintf("unknown notification type %q", n.Type))
	}
}

func (p *NotificationProcessor) newPost(ctx context.Context, n NotificationPayload) Result {
	if n.PostID == "" || n.CreatorWallet == "" {
		return Skipped("new_post requires postId and creatorWallet")
	}

	post, err := fetch(ctx, p.timeouts.Store, func(ctx context.Context) (*domain.Post, error) {
		return p.store.GetPost(ctx, n.PostID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return Skipped("post not found")
	}
	if err != nil {
		return Transient(fmt.Errorf("load post %s: %w", n.PostID, err))
	}

	p.broadcast(ctx, domain.FollowersChannel(n.CreatorWallet), domain.Event{
		Type: domain.EventPostNew,
		Data: post,
	})
	return Applied()
}

func (p *NotificationProcessor) like(ctx context.Context, n NotificationPayload) Result {
	if n.PostID == "" || n.TargetWallet == "" || n.FromWallet == "" {
		return Skipped("like requires postId, targetWallet and fromWallet")
	}

	p.broadcast(ctx, domain.UserChannel(n.TargetWallet), domain.Event{
		Type:         domain.EventPostLiked,
		Data:         domain.LikeData{PostID: n.PostID, LikerWallet: n.FromWallet},
		TargetWallet: n.TargetWallet,
	})
	return Applied()
}

func (p *NotificationProcessor) comment(ctx context.Context, n NotificationPayload) Result {
	if n.PostID == "" || n.TargetWallet == "" {
		return Skipped("comment requires postId and targetWallet")
	}

	comment, err := fetch(ctx, p.timeouts.Store, func(ctx context.Context) (*domain.Comment, error) {
		return p.store.GetLatestComment(ctx, n.PostID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return Skipped("post has no comments")
	}
	if err != nil {
		return Transient(fmt.Errorf("load latest comment of post %s: %w", n.PostID, err))
	}

	p.broadcast(ctx, domain.UserChannel(n.TargetWallet), domain.Event{
		Type:         domain.EventCommentNew,
		Data:         domain.CommentData{PostID: n.PostID, Comment: comment},
		TargetWallet: n.TargetWallet,
	})
	return Applied()
}

func (p *NotificationProcessor) follow(ctx context.Context, n NotificationPayload) Result {
	if n.TargetWallet == "" || n.FromWallet == "" {
		return Skipped("follow requires targetWallet and fromWallet")
	}

	p.broadcast(ctx, domain.UserChannel(n.TargetWallet), domain.Event{
		Type:         domain.EventFollowNew,
		Data:         domain.FollowData{FollowerWallet: n.FromWallet},
		TargetWallet: n.TargetWallet,
	})
	return Applied()
}

func (p *NotificationProcessor) tip(ctx context.Context, n NotificationPayload) Result {
	if n.TargetWallet == "" || n.FromWallet == "" || n.Amount == 0 {
		return Skipped("tip requires targetWallet, fromWallet and amount")
	}

	p.broadcast(ctx, domain.UserChannel(n.TargetWallet), domain.Event{
		Type:         domain.EventTipReceived,
		Data:         domain.TipData{FromWallet: n.FromWallet, Amount: n.Amount, PostID: n.PostID},
		TargetWallet: n.TargetWallet,
	})
	return Applied()
}

func (p *NotificationProcessor) broadcast(ctx context.Context, channel string, event domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Broadcast)
	defer cancel()
	p.notifier.Broadcast(ctx, channel, event)
}
