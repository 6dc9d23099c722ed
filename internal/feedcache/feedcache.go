// Package feedcache caches per-wallet feed data and invalidates it when the
// social graph or content changes. Keys are feed:{wallet} and following:{wallet}.
package feedcache

import "time"

// Default lifetimes of cached entries.
const (
	FeedTTL      = 5 * time.Minute
	FollowingTTL = 5 * time.Minute
)

// FeedKey is the cache key of a wallet's feed.
func FeedKey(wallet string) string { return "feed:" + wallet }

// FollowingKey is the cache key of the wallets a wallet follows.
func FollowingKey(wallet string) string { return "following:" + wallet }
