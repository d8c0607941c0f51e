package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/models"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/repository"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// setupTestDB creates a new in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A second connection would open a different in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.User{}, &models.RefreshToken{})
	require.NoError(t, err)

	return db
}

func setupLedger(t *testing.T) (repository.RefreshTokenRepository, *clock.MockClock) {
	clk := clock.NewMockClock(testNow)
	return repository.NewRefreshTokenRepository(setupTestDB(t), clk, 5*time.Second), clk
}

func newRecord(userID, family uuid.UUID, hash string, ttl time.Duration) *models.RefreshToken {
	return &models.RefreshToken{
		TokenHash: hash,
		UserID:    userID,
		Family:    family,
		ExpiresAt: testNow.Add(ttl),
	}
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	userID, family := uuid.New(), uuid.New()

	stored, err := ledger.Create(ctx, newRecord(userID, family, "hash-1", time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.False(t, stored.IsRevoked)
	assert.Equal(t, family, stored.Family)

	found, err := ledger.FindByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)
}

func TestRefreshTokenRepository_Create_IdempotentRetry(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	userID, family := uuid.New(), uuid.New()

	first, err := ledger.Create(ctx, newRecord(userID, family, "hash-1", time.Hour))
	require.NoError(t, err)

	retry, err := ledger.Create(ctx, newRecord(userID, family, "hash-1", 2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)
	assert.True(t, retry.ExpiresAt.Equal(testNow.Add(2*time.Hour)))

	found, err := ledger.FindByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, found.ExpiresAt.Equal(testNow.Add(2*time.Hour)))
}

func TestRefreshTokenRepository_Create_Conflicts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, ledger repository.RefreshTokenRepository, owner uuid.UUID)
		actor func(owner uuid.UUID) uuid.UUID
	}{
		{
			name:  "hash owned by another user",
			setup: func(t *testing.T, ledger repository.RefreshTokenRepository, owner uuid.UUID) {},
			actor: func(owner uuid.UUID) uuid.UUID { return uuid.New() },
		},
		{
			name: "hash already revoked",
			setup: func(t *testing.T, ledger repository.RefreshTokenRepository, owner uuid.UUID) {
				_, err := ledger.RevokeByHash(context.Background(), "hash-1")
				require.NoError(t, err)
			},
			actor: func(owner uuid.UUID) uuid.UUID { return owner },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _ := setupLedger(t)
			ctx := context.Background()
			owner := uuid.New()

			original, err := ledger.Create(ctx, newRecord(owner, uuid.New(), "hash-1", time.Hour))
			require.NoError(t, err)
			tt.setup(t, ledger, owner)

			_, err = ledger.Create(ctx, newRecord(tt.actor(owner), uuid.New(), "hash-1", 2*time.Hour))
			assert.ErrorIs(t, err, repository.ErrHashConflict)

			// The original row is never overwritten
			found, err := ledger.FindByHash(ctx, "hash-1")
			require.NoError(t, err)
			assert.Equal(t, original.ID, found.ID)
			assert.Equal(t, owner, found.UserID)
			assert.True(t, found.ExpiresAt.Equal(testNow.Add(time.Hour)))
		})
	}
}

func TestRefreshTokenRepository_FindActiveByHash(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := ledger.Create(ctx, newRecord(userID, uuid.New(), "active", time.Hour))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, uuid.New(), "revoked", time.Hour))
	require.NoError(t, err)
	_, err = ledger.RevokeByHash(ctx, "revoked")
	require.NoError(t, err)

	found, err := ledger.FindActiveByHash(ctx, "active", userID)
	require.NoError(t, err)
	assert.Equal(t, "active", found.TokenHash)

	_, err = ledger.FindActiveByHash(ctx, "active", uuid.New())
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	_, err = ledger.FindActiveByHash(ctx, "revoked", userID)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	_, err = ledger.FindActiveByHash(ctx, "missing", userID)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	clk.Advance(time.Hour)
	_, err = ledger.FindActiveByHash(ctx, "active", userID)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestRefreshTokenRepository_RevokeByID_SingleTransition(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	stored, err := ledger.Create(ctx, newRecord(uuid.New(), uuid.New(), "hash-1", time.Hour))
	require.NoError(t, err)

	revoked, err := ledger.RevokeByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = ledger.RevokeByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	found, err := ledger.FindByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, found.IsRevoked)
}

func TestRefreshTokenRepository_RevokeByHash(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.Create(ctx, newRecord(uuid.New(), uuid.New(), "hash-1", time.Hour))
	require.NoError(t, err)

	revoked, err := ledger.RevokeByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = ledger.RevokeByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = ledger.RevokeByHash(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()
	userID, otherUser := uuid.New(), uuid.New()

	for _, hash := range []string{"a", "b", "keep"} {
		_, err := ledger.Create(ctx, newRecord(userID, uuid.New(), hash, time.Hour))
		require.NoError(t, err)
	}
	_, err := ledger.Create(ctx, newRecord(userID, uuid.New(), "short-lived", time.Minute))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(otherUser, uuid.New(), "other", time.Hour))
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	count, err := ledger.RevokeAllForUser(ctx, userID, "keep")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = ledger.FindActiveByHash(ctx, "keep", userID)
	assert.NoError(t, err)
	_, err = ledger.FindActiveByHash(ctx, "other", otherUser)
	assert.NoError(t, err)

	// Expired records are not active and are left to the sweep
	expired, err := ledger.FindByHash(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, expired.IsRevoked)

	count, err = ledger.RevokeAllForUser(ctx, userID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = ledger.RevokeAllForUser(ctx, userID, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRefreshTokenRepository_RevokeFamily(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()
	userID := uuid.New()
	family, otherFamily := uuid.New(), uuid.New()

	_, err := ledger.Create(ctx, newRecord(userID, family, "expired-member", time.Minute))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, family, "live-member", time.Hour))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, family, "spared", time.Hour))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, otherFamily, "other-family", time.Hour))
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	count, err := ledger.RevokeFamily(ctx, userID, family, "spared")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	expiredMember, err := ledger.FindByHash(ctx, "expired-member")
	require.NoError(t, err)
	assert.True(t, expiredMember.IsRevoked)

	_, err = ledger.FindActiveByHash(ctx, "spared", userID)
	assert.NoError(t, err)
	_, err = ledger.FindActiveByHash(ctx, "other-family", userID)
	assert.NoError(t, err)

	// A different user cannot revoke the family
	count, err = ledger.RevokeFamily(ctx, uuid.New(), family, "")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = ledger.RevokeFamily(ctx, userID, uuid.Nil, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRefreshTokenRepository_SweepExpired(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := ledger.Create(ctx, newRecord(userID, uuid.New(), "expired", time.Minute))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, uuid.New(), "expired-revoked", time.Minute))
	require.NoError(t, err)
	_, err = ledger.RevokeByHash(ctx, "expired-revoked")
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, uuid.New(), "live", time.Hour))
	require.NoError(t, err)

	clk.Advance(time.Minute)

	count, err := ledger.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = ledger.FindByHash(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
	_, err = ledger.FindByHash(ctx, "live")
	assert.NoError(t, err)
}

func TestRefreshTokenRepository_ListActiveForUser(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := ledger.Create(ctx, newRecord(userID, uuid.New(), "one", time.Hour))
	require.NoError(t, err)
	_, err = ledger.Create(ctx, newRecord(userID, uuid.New(), "two", time.Hour))
	require.NoError(t, err)
	_, err = ledger.RevokeByHash(ctx, "two")
	require.NoError(t, err)

	tokens, err := ledger.ListActiveForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "one", tokens[0].TokenHash)
}
