package jobs

import (
	"context"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/queue"
)

type (
	// Analyzer is the content analysis service.
	Analyzer interface {
		AnalyzeContent(ctx context.Context, req domain.AnalyzeRequest) (*domain.Analysis, error)
	}

	// PostStore is the persistent store. Lookups return domain.ErrNotFound for missing records.
	PostStore interface {
		UpdatePostAnalysis(ctx context.Context, postID string, analysis domain.PostAnalysis) error
		GetPost(ctx context.Context, postID string) (*domain.Post, error)
		GetLatestComment(ctx context.Context, postID string) (*domain.Comment, error)
		UpdateTransactionStatus(ctx context.Context, signature, status string) error
	}

	// FeedCache invalidates cached feed data. Both calls succeed on missing keys.
	FeedCache interface {
		InvalidateFeed(ctx context.Context, wallet string) error
		InvalidateFollowing(ctx context.Context, wallet string) error
	}

	// Notifier publishes realtime events. Delivery is best-effort and never fails the job.
	Notifier interface {
		Broadcast(ctx context.Context, channel string, event domain.Event)
	}

	// VectorIndex stores post embeddings. Upsert overwrites by post id.
	VectorIndex interface {
		Upsert(ctx context.Context, postID string, vector []float64, meta domain.EmbeddingMetadata) error
	}

	// DeadLetterSink surfaces terminally failed jobs to operators.
	DeadLetterSink interface {
		Record(ctx context.Context, entry queue.TasksDlq) error
	}

	// Processor executes one job payload type.
	Processor[T Payload] interface {
		Process(ctx context.Context, payload T) Result
	}
)
