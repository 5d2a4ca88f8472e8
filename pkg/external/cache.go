package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trialmatch-engine/internal/domain"
)

// TrialSearchCache wraps Redis with caching for trial registry searches.
// Entries carry their own expiry metadata in addition to the Redis TTL so a
// stale or corrupted entry self-deletes on read.
type TrialSearchCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewTrialSearchCache creates a cache backed by the configured Redis
// instance and verifies connectivity.
func NewTrialSearchCache(config domain.CacheConfig) (*TrialSearchCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &TrialSearchCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedTrials is the stored representation of one search result set.
type cachedTrials struct {
	Trials    []domain.Trial `json:"trials"`
	CachedAt  time.Time      `json:"cached_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// GetTrials returns the cached result set for a search, with a hit flag.
func (c *TrialSearchCache) GetTrials(ctx context.Context, condition, region string, limit int) ([]domain.Trial, bool, error) {
	key := searchKey(condition, region, limit)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get trial cache: %w", err)
	}

	var cached cachedTrials
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Trials, true, nil
}

// SetTrials caches a search result set. A zero TTL uses the default.
func (c *TrialSearchCache) SetTrials(ctx context.Context, condition, region string, limit int, trials []domain.Trial, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	key := searchKey(condition, region, limit)

	cached := cachedTrials{
		Trials:    trials,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal trial cache data: %w", err)
	}

	return c.redis.Set(ctx, key, jsonData, ttl).Err()
}

// InvalidateCondition removes all cached searches for a condition.
func (c *TrialSearchCache) InvalidateCondition(ctx context.Context, condition string) error {
	pattern := fmt.Sprintf("trials:search:%s:*", condition)
	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for condition %s: %w", condition, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if the Redis connection is alive.
func (c *TrialSearchCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *TrialSearchCache) Close() error {
	return c.redis.Close()
}

// searchKey creates a stable cache key for one search shape. The hash keeps
// free-form condition text out of the key space.
func searchKey(condition, region string, limit int) string {
	data := fmt.Sprintf("%s:%s:%d", condition, region, limit)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("trials:search:%s:%x", condition, hash[:8])
}
