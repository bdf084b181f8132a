package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/esdeveniments/agenda-comb/app/feed"
)

const (
	processedItemsKey = "processedItems"
	rssFeedCacheKey   = "rssFeedCache"

	// Redis-side expiry of cached feed payloads. Validity windows are
	// enforced on read, this only bounds storage.
	feedCacheExpiry = 24 * time.Hour
)

// NewClient connects to Redis. A failed ping is logged but not fatal,
// the pipeline degrades to running without cache.
func NewClient(addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable, cache disabled until it recovers", "addr", addr, "error", err)
	}

	return client
}

// RedisStore keeps ingestion state in Redis under per-town keys
// prefixed with the deployment environment.
type RedisStore struct {
	client *redis.Client
	env    string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, env string) *RedisStore {
	return &RedisStore{
		client: client,
		env:    env,
		now:    time.Now,
	}
}

func (s *RedisStore) processedKey(town string) string {
	return fmt.Sprintf("%s_%s_%s", s.env, town, processedItemsKey)
}

func (s *RedisStore) feedKey(town string) string {
	return fmt.Sprintf("%s_%s_%s", s.env, town, rssFeedCacheKey)
}

func (s *RedisStore) GetProcessedItems(ctx context.Context, town string) (map[string]int64, error) {
	data, err := s.client.Get(ctx, s.processedKey(town)).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed items for %s: %w", town, err)
	}

	items, err := decodeProcessedItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode processed items for %s: %w", town, err)
	}

	return items, nil
}

func (s *RedisStore) SetProcessedItems(ctx context.Context, town string, items map[string]int64) error {
	data, err := encodeProcessedItems(items)
	if err != nil {
		return fmt.Errorf("failed to encode processed items for %s: %w", town, err)
	}

	if err := s.client.Set(ctx, s.processedKey(town), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set processed items for %s: %w", town, err)
	}

	return nil
}

type feedEnvelope struct {
	Timestamp int64       `json:"timestamp"`
	Data      []feed.Item `json:"data"`
}

func (s *RedisStore) GetCachedFeed(ctx context.Context, town string, maxAge time.Duration) ([]feed.Item, bool, error) {
	data, err := s.client.Get(ctx, s.feedKey(town)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached feed for %s: %w", town, err)
	}

	var envelope feedEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached feed for %s: %w", town, err)
	}

	age := s.now().UnixMilli() - envelope.Timestamp
	if age < 0 || age >= maxAge.Milliseconds() {
		return nil, false, nil
	}

	return envelope.Data, true, nil
}

func (s *RedisStore) SetCachedFeed(ctx context.Context, town string, items []feed.Item) error {
	data, err := json.Marshal(feedEnvelope{
		Timestamp: s.now().UnixMilli(),
		Data:      items,
	})
	if err != nil {
		return fmt.Errorf("failed to encode feed cache for %s: %w", town, err)
	}

	if err := s.client.Set(ctx, s.feedKey(town), data, feedCacheExpiry).Err(); err != nil {
		return fmt.Errorf("failed to set feed cache for %s: %w", town, err)
	}

	return nil
}

// decodeProcessedItems accepts both storage formats: the current pair
// list [["hash", ts], ...] and the legacy {"hash": ts} object.
func decodeProcessedItems(data []byte) (map[string]int64, error) {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err == nil {
		items := make(map[string]int64, len(pairs))
		for _, pair := range pairs {
			var hash string
			var timestamp int64
			if err := json.Unmarshal(pair[0], &hash); err != nil {
				return nil, err
			}
			if err := json.Unmarshal(pair[1], &timestamp); err != nil {
				return nil, err
			}
			items[hash] = timestamp
		}
		return items, nil
	}

	var legacy map[string]int64
	if err := json.Unmarshal(data, &legacy); err == nil {
		return legacy, nil
	}

	return nil, fmt.Errorf("unrecognized processed items format")
}

// encodeProcessedItems always writes the pair list format, sorted for
// stable output.
func encodeProcessedItems(items map[string]int64) ([]byte, error) {
	hashes := make([]string, 0, len(items))
	for hash := range items {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	pairs := make([][]any, 0, len(items))
	for _, hash := range hashes {
		pairs = append(pairs, []any{hash, items[hash]})
	}

	return json.Marshal(pairs)
}
