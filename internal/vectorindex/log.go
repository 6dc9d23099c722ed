package vectorindex

import (
	"context"
	"log/slog"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

// Log records embeddings without storing them.
type Log struct {
	logger *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{logger: l.With(logger.Component("vectorindex"))}
}

func (l *Log) Upsert(ctx context.Context, postID string, vector []float64, meta domain.EmbeddingMetadata) error {
	l.logger.InfoContext(ctx, "embedding received, no vector store configured",
		logger.PostID(postID),
		slog.Int("dimensions", len(vector)),
		slog.Any("tags", meta.Tags),
		slog.String("scene_type", meta.SceneType),
	)
	return nil
}
