package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

// AIAnalysisProcessor analyzes post content, stores the descriptive fields
// and declares an embedding job when the service returns a vector.
type AIAnalysisProcessor struct {
	analyzer Analyzer
	store    PostStore
	timeouts Timeouts
	logger   *slog.Logger
}

// NewAIAnalysisProcessor creates the ai-analysis processor.
func NewAIAnalysisProcessor(analyzer Analyzer, store PostStore, opts ...ProcessorOption) *AIAnalysisProcessor {
	o := newProcessorOptions(QueueAIAnalysis, opts)
	return &AIAnalysisProcessor{
		analyzer: analyzer,
		store:    store,
		timeouts: o.timeouts,
		logger:   o.logger,
	}
}

// Process analyzes the content and stores the result on the post. When the
// service returns an embedding, the result carries a follow-up embedding job.
// A missing post skips the job; analyzer and store errors are transient.
func (p *AIAnalysisProcessor) Process(ctx context.Context, job AIAnalysisPayload) Result {
	if job.PostID == "" || job.ContentURI == "" {
		return Skipped("postId and contentUri are required")
	}

	wallet := job.CreatorWallet
	if wallet == "" {
		wallet = p.lookupCreator(ctx, job.PostID)
	}

	p.logger.InfoContext(ctx, "analyzing post content",
		logger.PostID(job.PostID),
		slog.String("content_uri", job.ContentURI))

	analysis, err := fetch(ctx, p.timeouts.Analysis, func(ctx context.Context) (*domain.Analysis, error) {
		return p.analyzer.AnalyzeContent(ctx, domain.AnalyzeRequest{
			ContentURI:    job.ContentURI,
			Caption:       job.Caption,
			PostID:        job.PostID,
			CreatorWallet: wallet,
		})
	})
	if err != nil {
		return Transient(fmt.Errorf("analyze post %s: %w", job.PostID, err))
	}
	if analysis == nil {
		return Transient(fmt.Errorf("analyze post %s: empty response", job.PostID))
	}

	err = call(ctx, p.timeouts.Store, func(ctx context.Context) error {
		return p.store.UpdatePostAnalysis(ctx, job.PostID, analysis.PostAnalysis())
	})
	if errors.Is(err, domain.ErrNotFound) {
		return Skipped("post no longer exists")
	}
	if err != nil {
		return Transient(fmt.Errorf("store analysis of post %s: %w", job.PostID, err))
	}

	p.logger.InfoContext(ctx, "ai analysis complete",
		logger.PostID(job.PostID),
		slog.Int("tags", len(analysis.Tags)))

	if len(analysis.Embedding) == 0 {
		return Applied()
	}

	return Applied(EmbeddingPayload{
		PostID:    job.PostID,
		Embedding: analysis.Embedding,
		Metadata: domain.EmbeddingMetadata{
			Description: analysis.Description,
			Caption:     job.Caption,
			Tags:        analysis.Tags,
			SceneType:   analysis.SceneType,
		},
	})
}

// lookupCreator resolves the post author for the analysis request.
// The wallet is optional context for the service, so lookup failures are ignored.
func (p *AIAnalysisProcessor) lookupCreator(ctx context.Context, postID string) string {
	post, err := fetch(ctx, p.timeouts.Store, func(ctx context.Context) (*domain.Post, error) {
		return p.store.GetPost(ctx, postID)
	})
	if err != nil || post == nil {
		p.logger.DebugContext(ctx, "creator wallet lookup failed",
			logger.PostID(postID),
			logger.Error(err))
		return ""
	}
	return post.CreatorWallet
}
