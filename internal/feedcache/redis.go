package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores feed data in Redis with SETEX semantics.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a feed cache on top of client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// InvalidateFeed deletes the cached feed. A missing key is not an error.
func (r *Redis) InvalidateFeed(ctx context.Context, wallet string) error {
	if err := r.client.Del(ctx, FeedKey(wallet)).Err(); err != nil {
		return fmt.Errorf("invalidate feed: %w", err)
	}
	return nil
}

// InvalidateFollowing deletes the cached following list. A missing key is not an error.
func (r *Redis) InvalidateFollowing(ctx context.Context, wallet string) error {
	if err := r.client.Del(ctx, FollowingKey(wallet)).Err(); err != nil {
		return fmt.Errorf("invalidate following: %w", err)
	}
	return nil
}

// SetFeed caches a rendered feed for FeedTTL.
func (r *Redis) SetFeed(ctx context.Context, wallet string, feed []byte) error {
	return r.client.Set(ctx, FeedKey(wallet), feed, FeedTTL).Err()
}

// GetFeed returns the cached feed, or false when there is none.
func (r *Redis) GetFeed(ctx context.Context, wallet string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, FeedKey(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetFollowing caches the wallets followed by wallet for FollowingTTL.
func (r *Redis) SetFollowing(ctx context.Context, wallet string, following []string) error {
	data, err := json.Marshal(following)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, FollowingKey(wallet), data, FollowingTTL).Err()
}

// GetFollowing returns the cached following list, or false when there is none.
func (r *Redis) GetFollowing(ctx context.Context, wallet string) ([]string, bool, error) {
	data, err := r.client.Get(ctx, FollowingKey(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var following []string
	if err := json.Unmarshal(data, &following); err != nil {
		return nil, false, fmt.Errorf("decode following list: %w", err)
	}
	return following, true, nil
}
