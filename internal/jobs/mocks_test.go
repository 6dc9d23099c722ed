package jobs_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/queue"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeContent(ctx context.Context, req domain.AnalyzeRequest) (*domain.Analysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Analysis), args.Error(1)
}

type MockPostStore struct {
	mock.Mock
}

func (m *MockPostStore) UpdatePostAnalysis(ctx context.Context, postID string, analysis domain.PostAnalysis) error {
	args := m.Called(ctx, postID, analysis)
	return args.Error(0)
}

func (m *MockPostStore) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Post), args.Error(1)
}

func (m *MockPostStore) GetLatestComment(ctx context.Context, postID string) (*domain.Comment, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

func (m *MockPostStore) UpdateTransactionStatus(ctx context.Context, signature, status string) error {
	args := m.Called(ctx, signature, status)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Broadcast(ctx context.Context, channel string, event domain.Event) {
	m.Called(ctx, channel, event)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, postID string, vector []float64, meta domain.EmbeddingMetadata) error {
	args := m.Called(ctx, postID, vector, meta)
	return args.Error(0)
}

type MockDeadLetterSink struct {
	mock.Mock
}

func (m *MockDeadLetterSink) Record(ctx context.Context, entry queue.TasksDlq) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// fakeFeedCache keeps cached keys in a set so tests can compare cache state.
type fakeFeedCache struct {
	mu      sync.Mutex
	keys    map[string]bool
	deletes int
	err     error
}

func newFakeFeedCache(keys ...string) *fakeFeedCache {
	c := &fakeFeedCache{keys: make(map[string]bool)}
	for _, k := range keys {
		c.keys[k] = true
	}
	return c
}

func (c *fakeFeedCache) InvalidateFeed(_ context.Context, wallet string) error {
	return c.del("feed:" + wallet)
}

func (c *fakeFeedCache) InvalidateFollowing(_ context.Context, wallet string) error {
	return c.del("following:" + wallet)
}

func (c *fakeFeedCache) del(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.deletes++
	delete(c.keys, key)
	return nil
}

func (c *fakeFeedCache) snapshot() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.keys))
	for k, v := range c.keys {
		out[k] = v
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var anyCtx = mock.Anything
