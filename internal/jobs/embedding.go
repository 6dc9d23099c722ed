package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/pkg/logger"
)

// EmbeddingProcessor writes post vectors into the vector index.
// The index is keyed by post id, so re-delivery overwrites instead of duplicating.
type EmbeddingProcessor struct {
	index    VectorIndex
	timeouts Timeouts
	logger   *slog.Logger
}

// NewEmbeddingProcessor creates the embedding processor.
func NewEmbeddingProcessor(index VectorIndex, opts ...ProcessorOption) *EmbeddingProcessor {
	o := newProcessorOptions(QueueEmbedding, opts)
	return &EmbeddingProcessor{
		index:    index,
		timeouts: o.timeouts,
		logger:   o.logger,
	}
}

// Process upserts the vector and its metadata into the index.
func (p *EmbeddingProcessor) Process(ctx context.Context, job EmbeddingPayload) Result {
	if job.PostID == "" || len(job.Embedding) == 0 {
		return Skipped("postId and embedding are required")
	}

	p.logger.InfoContext(ctx, "indexing post embedding",
		logger.PostID(job.PostID),
		slog.Int("dimensions", len(job.Embedding)),
		slog.Any("tags", job.Metadata.Tags))

	err := call(ctx, p.timeouts.Index, func(ctx context.Context) error {
		return p.index.Upsert(ctx, job.PostID, job.Embedding, job.Metadata)
	})
	if err != nil {
		return Transient(fmt.Errorf("index embedding of post %s: %w", job.PostID, err))
	}

	return Applied()
}
