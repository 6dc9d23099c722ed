package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/internal/jobs"
)

func TestEmbeddingProcessor_Process(t *testing.T) {
	t.Parallel()

	meta := domain.EmbeddingMetadata{Description: "a cat", Tags: []string{"cat"}, SceneType: "indoor"}

	t.Run("upserts by post id", func(t *testing.T) {
		t.Parallel()

		index := &MockVectorIndex{}
		index.On("Upsert", anyCtx, "p1", []float64{0.1, 0.2}, meta).Return(nil).Twice()
		p := jobs.NewEmbeddingProcessor(index, jobs.WithProcessorLogger(discardLogger()))

		job := jobs.EmbeddingPayload{PostID: "p1", Embedding: []float64{0.1, 0.2}, Metadata: meta}
		assert.Equal(t, jobs.OutcomeApplied, p.Process(context.Background(), job).Outcome)
		assert.Equal(t, jobs.OutcomeApplied, p.Process(context.Background(), job).Outcome)
		index.AssertExpectations(t)
	})

	t.Run("empty vector is skipped", func(t *testing.T) {
		t.Parallel()

		index := &MockVectorIndex{}
		p := jobs.NewEmbeddingProcessor(index, jobs.WithProcessorLogger(discardLogger()))

		res := p.Process(context.Background(), jobs.EmbeddingPayload{PostID: "p1", Metadata: meta})

		assert.Equal(t, jobs.OutcomeNoOp, res.Outcome)
		index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("index failure is transient", func(t *testing.T) {
		t.Parallel()

		index := &MockVectorIndex{}
		index.On("Upsert", anyCtx, "p1", mock.Anything, mock.Anything).Return(errors.New("cluster red"))
		p := jobs.NewEmbeddingProcessor(index, jobs.WithProcessorLogger(discardLogger()))

		res := p.Process(context.Background(), jobs.EmbeddingPayload{PostID: "p1", Embedding: []float64{1}})

		assert.Equal(t, jobs.OutcomeTransient, res.Outcome)
	})
}
