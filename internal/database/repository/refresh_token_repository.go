package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/models"
)

// RefreshTokenRepository is the ledger of issued refresh tokens. Every
// mutation is a single statement or a transaction; callers never lock.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	FindActiveByHash(ctx context.Context, tokenHash string, userID uuid.UUID) (*models.RefreshToken, error)
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
	RevokeByID(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, exceptHash string) (int64, error)
	RevokeFamily(ctx context.Context, userID, family uuid.UUID, exceptHash string) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type refreshTokenRepository struct {
	db      *gorm.DB
	clock   clock.Clock
	timeout time.Duration
}

// NewRefreshTokenRepository creates a new refresh token repository instance
func NewRefreshTokenRepository(db *gorm.DB, clk clock.Clock, timeout time.Duration) RefreshTokenRepository {
	return &refreshTokenRepository{db: db, clock: clk, timeout: timeout}
}

func (r *refreshTokenRepository) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// Create stores a new record. Re-submitting the same hash for the same user
// while it is still unrevoked only extends its expiry; any other hash reuse
// is a conflict and never overwrites the existing row.
func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var stored *models.RefreshToken
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.RefreshToken
		err := tx.Where("token_hash = ?", token.TokenHash).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != token.UserID || existing.IsRevoked {
				return ErrHashConflict
			}
			now := r.clock.Now()
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"expires_at": token.ExpiresAt,
				"updated_at": now,
			}).Error; err != nil {
				return err
			}
			existing.ExpiresAt = token.ExpiresAt
			existing.UpdatedAt = now
			stored = &existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		now := r.clock.Now()
		token.IsRevoked = false
		token.CreatedAt = now
		token.UpdatedAt = now
		if err := tx.Omit(clause.Associations).Create(token).Error; err != nil {
			return err
		}
		stored = token
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrHashConflict
		}
		return nil, err
	}

	return stored, nil
}

func (r *refreshTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string, userID uuid.UUID) (*models.RefreshToken, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var refreshToken models.RefreshToken
	err := db.Where("token_hash = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?",
		tokenHash, userID, false, r.clock.Now()).
		First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var refreshToken models.RefreshToken
	err := db.Where("token_hash = ?", tokenHash).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	var tokens []models.RefreshToken
	err := db.Where("user_id = ? AND is_revoked = ? AND expires_at > ?", userID, false, r.clock.Now()).
		Order("created_at DESC").
		Find(&tokens).Error

	return tokens, err
}

// RevokeByID flips a single record to revoked. It reports true only for the
// caller that performed the transition, which makes it the arbiter between
// concurrent rotations of the same token.
func (r *refreshTokenRepository) RevokeByID(ctx context.Context, id uuid.UUID) (bool, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Model(&models.RefreshToken{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Updates(map[string]interface{}{
			"is_revoked": true,
			"updated_at": r.clock.Now(),
		})

	return result.RowsAffected == 1, result.Error
}

func (r *refreshTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND is_revoked = ?", tokenHash, false).
		Updates(map[string]interface{}{
			"is_revoked": true,
			"updated_at": r.clock.Now(),
		})

	return result.RowsAffected == 1, result.Error
}

// RevokeAllForUser revokes every active record of the user, except the one
// matching exceptHash when it is non-empty.
func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, exceptHash string) (int64, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.clock.Now()
	query := db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ? AND expires_at > ?", userID, false, now)
	if exceptHash != "" {
		query = query.Where("token_hash <> ?", exceptHash)
	}

	result := query.Updates(map[string]interface{}{
		"is_revoked": true,
		"updated_at": now,
	})

	return result.RowsAffected, result.Error
}

// RevokeFamily revokes every unrevoked record of the lineage, expired ones
// included.
func (r *refreshTokenRepository) RevokeFamily(ctx context.Context, userID, family uuid.UUID, exceptHash string) (int64, error) {
	if family == uuid.Nil {
		return 0, nil
	}

	db, cancel := r.withTimeout(ctx)
	defer cancel()

	query := db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND family = ? AND is_revoked = ?", userID, family, false)
	if exceptHash != "" {
		query = query.Where("token_hash <> ?", exceptHash)
	}

	result := query.Updates(map[string]interface{}{
		"is_revoked": true,
		"updated_at": r.clock.Now(),
	})

	return result.RowsAffected, result.Error
}

// SweepExpired hard-deletes every record past its expiry, revoked or not.
func (r *refreshTokenRepository) SweepExpired(ctx context.Context) (int64, error) {
	db, cancel := r.withTimeout(ctx)
	defer cancel()

	result := db.Where("expires_at <= ?", r.clock.Now()).
		Delete(&models.RefreshToken{})

	return result.RowsAffected, result.Error
}

// Repository errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrHashConflict  = errors.New("refresh token hash conflict")
)
