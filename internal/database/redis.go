package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
	"github.com/EgehanKilicarslan/tokenguard/internal/config"
)

const (
	revokedTokenPrefix = "revoked_tokens:"
	revokedSentinel    = "revoked"
)

// ErrRevocationStoreUnavailable wraps every failed call to Redis
var ErrRevocationStoreUnavailable = errors.New("revocation store unavailable")

// RedisClient wraps the redis client as the token revocation store
type RedisClient struct {
	client  *redis.Client
	logger  *slog.Logger
	clock   clock.Clock
	timeout time.Duration
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*RedisClient, error) {
	logger.Info("🔌 [Redis] Connecting to Redis...",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
		"db", cfg.RedisDatabase,
	)

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           int(cfg.RedisDatabase),
		ReadTimeout:  cfg.RedisCallTimeout(),
		WriteTimeout: cfg.RedisCallTimeout(),
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [Redis] Redis connection established")

	return NewRedisClientForTesting(client, cfg, clk, logger), nil
}

// NewRedisClientForTesting creates a Redis client with a provided redis.Client (for testing)
func NewRedisClientForTesting(client *redis.Client, cfg *config.Config, clk clock.Clock, logger *slog.Logger) *RedisClient {
	return &RedisClient{
		client:  client,
		logger:  logger,
		clock:   clk,
		timeout: cfg.RedisCallTimeout(),
	}
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func revokedKey(jti string) string {
	return revokedTokenPrefix + jti
}

// RevokeToken blacklists jti for the rest of the token's lifetime. A token
// that has already expired needs no entry and is treated as revoked.
func (r *RedisClient) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		r.logger.Debug("⏭️ [Redis] Token already expired, not blacklisted", "jti", jti)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, revokedKey(jti), revokedSentinel, ttl).Err(); err != nil {
		r.logger.Error("❌ [Redis] Failed to revoke token",
			"jti", jti,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrRevocationStoreUnavailable, err)
	}

	r.logger.Debug("🚫 [Redis] Token revoked",
		"jti", jti,
		"ttl", ttl,
	)

	return nil
}

// IsTokenRevoked reports whether jti is blacklisted. The caller decides how
// to treat an unavailable store.
func (r *RedisClient) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		r.logger.Error("❌ [Redis] Failed to check token revocation",
			"jti", jti,
			"error", err,
		)
		return false, fmt.Errorf("%w: %v", ErrRevocationStoreUnavailable, err)
	}

	return n > 0, nil
}

