// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
//	feeds := cache.NewLRUCache[string, []byte](10_000, cache.WithTTL(5*time.Minute))
//	feeds.Put("feed:wallet", data)
//	data, ok := feeds.Get("feed:wallet")
//
// Entries past their TTL are treated as missing and dropped on the next access.
// When the cache is full, Put evicts the least recently used entry. An eviction
// callback set with SetEvictCallback runs for every removed entry, with the
// cache lock held, so it must not call back into the cache.
package cache
