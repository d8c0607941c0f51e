package database_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
	"github.com/EgehanKilicarslan/tokenguard/internal/config"
	"github.com/EgehanKilicarslan/tokenguard/internal/database"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *database.RedisClient, *clock.MockClock) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{RedisTimeout: 500}
	clk := clock.NewMockClock(testNow)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	redisClient := database.NewRedisClientForTesting(client, cfg, clk, logger)

	t.Cleanup(func() {
		redisClient.Close()
		mr.Close()
	})

	return mr, redisClient, clk
}

func TestRedisClient_RevokeToken_TTL(t *testing.T) {
	mr, redisClient, _ := setupMiniRedis(t)
	ctx := context.Background()

	err := redisClient.RevokeToken(ctx, "jti-1", testNow.Add(10*time.Second))
	require.NoError(t, err)

	revoked, err := redisClient.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 10*time.Second, mr.TTL("revoked_tokens:jti-1"))

	// Still present before the token's natural expiry
	mr.FastForward(9 * time.Second)
	revoked, err = redisClient.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Gone after it
	mr.FastForward(2 * time.Second)
	revoked, err = redisClient.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisClient_RevokeToken_AlreadyExpired(t *testing.T) {
	mr, redisClient, _ := setupMiniRedis(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		expiresAt time.Time
	}{
		{"expires now", testNow},
		{"expired in the past", testNow.Add(-time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := redisClient.RevokeToken(ctx, "jti-expired", tt.expiresAt)
			assert.NoError(t, err)
			assert.False(t, mr.Exists("revoked_tokens:jti-expired"))
		})
	}
}

func TestRedisClient_IsTokenRevoked_Unknown(t *testing.T) {
	_, redisClient, _ := setupMiniRedis(t)

	revoked, err := redisClient.IsTokenRevoked(context.Background(), "never-revoked")

	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisClient_RevokeToken_Idempotent(t *testing.T) {
	mr, redisClient, clk := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, redisClient.RevokeToken(ctx, "jti-2", testNow.Add(time.Minute)))
	clk.Advance(30 * time.Second)
	require.NoError(t, redisClient.RevokeToken(ctx, "jti-2", testNow.Add(time.Minute)))

	assert.Equal(t, "revoked", mustGet(t, mr, "revoked_tokens:jti-2"))
	assert.Equal(t, 30*time.Second, mr.TTL("revoked_tokens:jti-2"))
}

func TestRedisClient_Unavailable(t *testing.T) {
	mr, redisClient, _ := setupMiniRedis(t)
	ctx := context.Background()
	mr.Close()

	revoked, err := redisClient.IsTokenRevoked(ctx, "jti-3")
	assert.ErrorIs(t, err, database.ErrRevocationStoreUnavailable)
	assert.False(t, revoked)

	err = redisClient.RevokeToken(ctx, "jti-3", testNow.Add(time.Minute))
	assert.ErrorIs(t, err, database.ErrRevocationStoreUnavailable)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	value, err := mr.Get(key)
	require.NoError(t, err)
	return value
}
