package feedcache

import (
	"context"
	"slices"

	"github.com/solshare/pipeline/pkg/cache"
)

// DefaultMemoryCapacity bounds the number of cached entries per kind.
const DefaultMemoryCapacity = 10_000

// Memory is an in-process cache for single-node and local runs.
type Memory struct {
	feeds     *cache.LRUCache[string, []byte]
	following *cache.LRUCache[string, []string]
}

// NewMemory creates a cache holding up to capacity feeds and following lists.
// A non-positive capacity uses DefaultMemoryCapacity.
func NewMemory(capacity int, opts ...cache.Option) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		feeds:     cache.NewLRUCache[string, []byte](capacity, append([]cache.Option{cache.WithTTL(FeedTTL)}, opts...)...),
		following: cache.NewLRUCache[string, []string](capacity, append([]cache.Option{cache.WithTTL(FollowingTTL)}, opts...)...),
	}
}

func (m *Memory) InvalidateFeed(_ context.Context, wallet string) error {
	m.feeds.Remove(FeedKey(wallet))
	return nil
}

func (m *Memory) InvalidateFollowing(_ context.Context, wallet string) error {
	m.following.Remove(FollowingKey(wallet))
	return nil
}

func (m *Memory) SetFeed(_ context.Context, wallet string, feed []byte) error {
	m.feeds.Put(FeedKey(wallet), slices.Clone(feed))
	return nil
}

func (m *Memory) GetFeed(_ context.Context, wallet string) ([]byte, bool, error) {
	feed, ok := m.feeds.Get(FeedKey(wallet))
	return slices.Clone(feed), ok, nil
}

func (m *Memory) SetFollowing(_ context.Context, wallet string, following []string) error {
	m.following.Put(FollowingKey(wallet), slices.Clone(following))
	return nil
}

func (m *Memory) GetFollowing(_ context.Context, wallet string) ([]string, bool, error) {
	following, ok := m.following.Get(FollowingKey(wallet))
	return slices.Clone(following), ok, nil
}
