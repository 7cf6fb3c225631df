package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/trust-ledger/internal/errors"
)

// scoreKeyPrefix namespaces trust-score entries in Redis
const scoreKeyPrefix = "score:"

// ScoreCache fronts trust-score reads with a short-TTL Redis cache.
// Mutations that can change a score invalidate the affected user through
// the InvalidateScore method.
type ScoreCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewScoreCache creates a score cache with the given TTL
func NewScoreCache(redis *RedisCache, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	return &ScoreCache{redis: redis, ttl: ttl}
}

// Key returns the cache key for a user's score
func (c *ScoreCache) Key(user common.Address) string {
	return scoreKeyPrefix + strings.ToLower(user.Hex())
}

// GetScore returns the cached score and whether it was present
func (c *ScoreCache) GetScore(ctx context.Context, user common.Address) (uint64, bool, error) {
	value, err := c.redis.Client().Get(ctx, c.Key(user)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.NewCacheError("get score", err)
	}

	score, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		// Corrupt entry: drop it and treat as a miss
		_ = c.redis.Client().Del(ctx, c.Key(user)).Err()
		return 0, false, nil
	}
	return score, true, nil
}

// SetScore caches a freshly computed score
func (c *ScoreCache) SetScore(ctx context.Context, user common.Address, score uint64) error {
	if err := c.redis.Client().Set(ctx, c.Key(user), strconv.FormatUint(score, 10), c.ttl).Err(); err != nil {
		return errors.NewCacheError("set score", err)
	}
	return nil
}

// InvalidateScore evicts a user's cached score
func (c *ScoreCache) InvalidateScore(ctx context.Context, user common.Address) error {
	if err := c.redis.Client().Del(ctx, c.Key(user)).Err(); err != nil {
		return errors.NewCacheError("invalidate score", err)
	}
	return nil
}
