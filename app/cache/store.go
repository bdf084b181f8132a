package cache

import (
	"context"
	"time"

	"github.com/esdeveniments/agenda-comb/app/feed"
)

const (
	// RetentionPeriod is how long a published item's hash is
	// remembered. After this the same item would be published again,
	// which is acceptable for an agenda that only looks forward.
	RetentionPeriod = 30 * 24 * time.Hour

	// FeedCacheTTL is the default validity of a cached feed payload.
	FeedCacheTTL = 3 * time.Hour

	// ExtendedFeedCacheTTL applies to sources that are expensive to
	// rebuild, such as scraper-backed feeds.
	ExtendedFeedCacheTTL = 24 * time.Hour
)

// Store persists per-town ingestion state between runs: which items
// were already published, and the last fetched feed payload.
// Timestamps are unix milliseconds.
type Store interface {
	GetProcessedItems(ctx context.Context, town string) (map[string]int64, error)
	SetProcessedItems(ctx context.Context, town string, items map[string]int64) error
	GetCachedFeed(ctx context.Context, town string, maxAge time.Duration) ([]feed.Item, bool, error)
	SetCachedFeed(ctx context.Context, town string, items []feed.Item) error
}

// Prune drops entries older than the retention period and returns how
// many were removed.
func Prune(items map[string]int64, now time.Time) int {
	cutoff := now.Add(-RetentionPeriod).UnixMilli()

	removed := 0
	for hash, timestamp := range items {
		if timestamp < cutoff {
			delete(items, hash)
			removed++
		}
	}

	return removed
}

// FilterNew returns the items whose guid has not been published yet.
// The guid is the feed's native one when present, the content hash
// otherwise.
func FilterNew(items []feed.Item, processed map[string]int64) []feed.Item {
	var fresh []feed.Item
	for _, item := range items {
		if _, seen := processed[item.GUID]; !seen {
			fresh = append(fresh, item)
		}
	}

	return fresh
}
