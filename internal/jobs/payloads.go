package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/solshare/pipeline/internal/domain"
)

// Payload is the closed set of job payloads. Each variant belongs to exactly one queue.
type Payload interface {
	queueName() QueueName
	validate() error
}

// AIAnalysisPayload asks for content analysis of a post.
type AIAnalysisPayload struct {
	PostID        string `json:"postId"`
	ContentURI    string `json:"contentUri"`
	Caption       string `json:"caption,omitempty"`
	CreatorWallet string `json:"creatorWallet,omitempty"`
}

func (AIAnalysisPayload) queueName() QueueName { return QueueAIAnalysis }
func (AIAnalysisPayload) validate() error { return nil }

// EmbeddingPayload carries a post vector into the search index.
type EmbeddingPayload struct {
	PostID    string                   `json:"postId"`
	Embedding []float64                `json:"embedding"`
	Metadata  domain.EmbeddingMetadata `json:"metadata"`
}

func (EmbeddingPayload) queueName() QueueName { return QueueEmbedding }
func (EmbeddingPayload) validate() error { return nil }

// NotificationType selects the notification branch.
type NotificationType string

const (
	NotificationNewPost NotificationType = "new_post"
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationTip     NotificationType = "tip"
)

// NotificationPayload fans out a realtime event. Which optional fields are
// required depends on Type; a missing one makes the job a no-op.
type NotificationPayload struct {
	Type          NotificationType `json:"type"`
	PostID        string           `json:"postId,omitempty"`
	CreatorWallet string           `json:"creatorWallet,omitempty"`
	TargetWallet  string           `json:"targetWallet,omitempty"`
	FromWallet    string           `json:"fromWallet,omitempty"`
	Amount        float64          `json:"amount,omitempty"`
}

func (NotificationPayload) queueName() QueueName { return QueueNotification }

func (p NotificationPayload) validate() error {
	switch p.Type {
	case NotificationNewPost, NotificationLike, NotificationComment, NotificationFollow, NotificationTip:
		return nil
	}
	return fmt.Errorf("%w: notification type %q", ErrInvalidPayload, p.Type)
}

// FeedRefreshReason explains why a feed is invalidated.
type FeedRefreshReason string

const (
	FeedRefreshNewFollow FeedRefreshReason = "new_follow"
	FeedRefreshNewPost   FeedRefreshReason = "new_post"
	FeedRefreshScheduled FeedRefreshReason = "scheduled"
)

// FeedRefreshPayload invalidates cached feed data for a wallet.
type FeedRefreshPayload struct {
	Wallet string            `json:"wallet"`
	Reason FeedRefreshReason `json:"reason"`
}

func (FeedRefreshPayload) queueName() QueueName { return QueueFeedRefresh }

func (p FeedRefreshPayload) validate() error {
	switch p.Reason {
	case FeedRefreshNewFollow, FeedRefreshNewPost, FeedRefreshScheduled:
		return nil
	}
	return fmt.Errorf("%w: feed refresh reason %q", ErrInvalidPayload, p.Reason)
}

// SyncType selects the chain reconciliation branch.
type SyncType string

const (
	SyncTransaction SyncType = "transaction"
	SyncProfile     SyncType = "profile"
	SyncPost        SyncType = "post"
)

// SyncChainPayload reconciles on-chain state with the store.
type SyncChainPayload struct {
	Type      SyncType `json:"type"`
	Signature string   `json:"signature,omitempty"`
	Wallet    string   `json:"wallet,omitempty"`
	PostID    string   `json:"postId,omitempty"`
}

func (SyncChainPayload) queueName() QueueName { return QueueSyncChain }

func (p SyncChainPayload) validate() error {
	switch p.Type {
	case SyncTransaction, SyncProfile, SyncPost:
		return nil
	}
	return fmt.Errorf("%w: sync type %q", ErrInvalidPayload, p.Type)
}

// DecodePayload parses raw JSON into the payload type of queue name.
func DecodePayload(name QueueName, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch name {
	case QueueAIAnalysis:
		p, err = decode[AIAnalysisPayload](raw)
	case QueueEmbedding:
		p, err = decode[EmbeddingPayload](raw)
	case QueueNotification:
		p, err = decode[NotificationPayload](raw)
	case QueueFeedRefresh:
		p, err = decode[FeedRefreshPayload](raw)
	case QueueSyncChain:
		p, err = decode[SyncChainPayload](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return p, nil
}

func decode[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
