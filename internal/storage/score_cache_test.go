package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestScoreCache creates a ScoreCache backed by an in-process Redis
func setupTestScoreCache(t *testing.T, ttl time.Duration) (*ScoreCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewScoreCache(NewRedisCacheFromClient(client), ttl), mr
}

func TestScoreCacheSetGet(t *testing.T) {
	cache, _ := setupTestScoreCache(t, 20*time.Second)
	ctx := context.Background()
	user := common.HexToAddress("0x0000000000000000000000000000000000000A11")

	_, found, err := cache.GetScore(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.SetScore(ctx, user, 320))

	score, found, err := cache.GetScore(ctx, user)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(320), score)
}

func TestScoreCacheInvalidate(t *testing.T) {
	cache, _ := setupTestScoreCache(t, 20*time.Second)
	ctx := context.Background()
	user := common.HexToAddress("0x0000000000000000000000000000000000000A11")

	require.NoError(t, cache.SetScore(ctx, user, 100))
	require.NoError(t, cache.InvalidateScore(ctx, user))

	_, found, err := cache.GetScore(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)

	// Invalidating an absent key is fine
	require.NoError(t, cache.InvalidateScore(ctx, user))
}

func TestScoreCacheTTLExpiry(t *testing.T) {
	cache, mr := setupTestScoreCache(t, 20*time.Second)
	ctx := context.Background()
	user := common.HexToAddress("0x0000000000000000000000000000000000000A11")

	require.NoError(t, cache.SetScore(ctx, user, 100))

	mr.FastForward(21 * time.Second)

	_, found, err := cache.GetScore(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScoreCacheCorruptEntryIsAMiss(t *testing.T) {
	cache, mr := setupTestScoreCache(t, 20*time.Second)
	ctx := context.Background()
	user := common.HexToAddress("0x0000000000000000000000000000000000000A11")

	require.NoError(t, mr.Set(cache.Key(user), "not-a-number"))

	_, found, err := cache.GetScore(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)
}
