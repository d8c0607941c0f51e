package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/EgehanKilicarslan/tokenguard/internal/config"
	"github.com/EgehanKilicarslan/tokenguard/internal/database"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/models"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/repository"
	"github.com/EgehanKilicarslan/tokenguard/internal/metrics"
	"github.com/EgehanKilicarslan/tokenguard/internal/token"
)

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Register(ctx context.Context, username, email, fullName, password string, meta ClientMeta) (*models.User, *TokenPair, error)
	Login(ctx context.Context, email, password string, meta ClientMeta) (*models.User, *TokenPair, error)
	Issue(ctx context.Context, userID uuid.UUID, meta ClientMeta) (*TokenPair, error)
	Rotate(ctx context.Context, rawRefreshToken string, meta ClientMeta) (*TokenPair, error)
	RevokeOnLogout(ctx context.Context, userID uuid.UUID, accessClaims *token.Claims, rawRefreshToken string) error
	VerifyAccess(ctx context.Context, rawAccessToken string) (*token.Claims, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
	SweepExpiredTokens(ctx context.Context) (int64, error)
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// ClientMeta is the request context stored alongside a refresh record
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type authService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	revocations      database.RevocationStore
	codec            *token.Codec
	cfg              *config.Config
	logger           *slog.Logger
}

// NewAuthService creates a new authentication service instance
func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	revocations database.RevocationStore,
	codec *token.Codec,
	cfg *config.Config,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		revocations:      revocations,
		codec:            codec,
		cfg:              cfg,
		logger:           logger,
	}
}

func (s *authService) Register(ctx context.Context, username, email, fullName, password string, meta ClientMeta) (*models.User, *TokenPair, error) {
	s.logger.Info("📝 [AuthService] Registration attempt", "email", email, "username", username)

	// Check if email already exists
	_, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Warn("⚠️ [AuthService] Email already registered", "email", email)
		return nil, nil, ErrEmailAlreadyExists
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, nil, s.storeFailure("find user by email", err)
	}

	// Check if username already exists
	_, err = s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		s.logger.Warn("⚠️ [AuthService] Username already taken", "username", username)
		return nil, nil, ErrUsernameTaken
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, nil, s.storeFailure("find user by username", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to hash password", "error", err)
		return nil, nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: string(hashedPassword),
		IsActive: true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			s.logger.Warn("⚠️ [AuthService] User created concurrently", "email", email)
			return nil, nil, ErrEmailAlreadyExists
		}
		return nil, nil, s.storeFailure("create user", err)
	}

	tokens, err := s.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("✅ [AuthService] User registered successfully", "user_id", user.ID)
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, email, password string, meta ClientMeta) (*models.User, *TokenPair, error) {
	s.logger.Info("🔐 [AuthService] Login attempt", "email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("⚠️ [AuthService] User not found", "email", email)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, s.storeFailure("find user by email", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn("⚠️ [AuthService] Invalid password", "email", email)
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logger.Warn("⚠️ [AuthService] Inactive user attempted login", "user_id", user.ID)
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("✅ [AuthService] User logged in successfully", "user_id", user.ID)
	return user, tokens, nil
}

// Issue starts a new token family for userID.
func (s *authService) Issue(ctx context.Context, userID uuid.UUID, meta ClientMeta) (*TokenPair, error) {
	accessToken, _, err := s.codec.Mint(userID.String(), token.TypeAccess)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to mint access token", "error", err)
		return nil, err
	}

	refreshToken, err := s.storeRefreshToken(ctx, userID, uuid.New(), meta)
	if err != nil {
		return nil, err
	}

	metrics.AccessTokensIssued.Inc()
	s.logger.Debug("🎫 [AuthService] Token pair issued", "user_id", userID)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.cfg.AccessTokenExpiration,
	}, nil
}

// Rotate exchanges a refresh token for a new pair in the same family. A
// token that is presented twice revokes its whole family.
func (s *authService) Rotate(ctx context.Context, rawRefreshToken string, meta ClientMeta) (*TokenPair, error) {
	s.logger.Info("🔄 [AuthService] Token refresh attempt")

	tokens, err := s.rotate(ctx, rawRefreshToken, meta)

	outcome := "success"
	if err != nil {
		outcome = "error"
		if reason, ok := ReasonOf(err); ok {
			outcome = string(reason)
		}
	}
	metrics.RefreshRotations.WithLabelValues(outcome).Inc()

	return tokens, err
}

func (s *authService) rotate(ctx context.Context, rawRefreshToken string, meta ClientMeta) (*TokenPair, error) {
	claims, err := s.codec.Verify(rawRefreshToken, token.TypeRefresh)
	if err != nil {
		return nil, s.reject(codecReason(err), err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, s.reject(ReasonMalformedToken, err)
	}

	revoked, err := s.revocations.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		metrics.RevocationStoreErrors.WithLabelValues("check").Inc()
		return nil, s.reject(ReasonStoreUnavailable, err)
	}

	tokenHash := HashRefreshToken(rawRefreshToken)
	if revoked {
		s.respondToReuse(ctx, userID, tokenHash, claims)
		return nil, s.reject(ReasonTokenRevoked, nil)
	}

	record, err := s.refreshTokenRepo.FindActiveByHash(ctx, tokenHash, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrTokenNotFound) {
			return nil, s.storeFailure("find refresh token", err)
		}
		s.respondToReuse(ctx, userID, tokenHash, claims)
		return nil, s.reject(ReasonTokenReuseDetected, err)
	}

	user, err := s.userRepo.FindByID(ctx, record.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.storeFailure("find user", err)
		}
		return nil, s.reject(ReasonUserNotFoundOrInactive, err)
	}
	if !user.IsActive {
		return nil, s.reject(ReasonUserNotFoundOrInactive, nil)
	}

	accessToken, _, err := s.codec.Mint(user.ID.String(), token.TypeAccess)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to mint access token", "error", err)
		return nil, err
	}

	// Only one caller can flip the record; everyone else presented a spent token
	transitioned, err := s.refreshTokenRepo.RevokeByID(ctx, record.ID)
	if err != nil {
		return nil, s.storeFailure("revoke refresh token", err)
	}
	if !transitioned {
		s.respondToReuse(ctx, userID, tokenHash, claims)
		return nil, s.reject(ReasonTokenReuseDetected, nil)
	}
	metrics.RefreshTokensRevoked.Inc()

	if err := s.revocations.RevokeToken(ctx, claims.ID, claims.Expiry()); err != nil {
		metrics.RevocationStoreErrors.WithLabelValues("revoke").Inc()
		s.logger.Warn("⚠️ [AuthService] Failed to blacklist rotated refresh token",
			"user_id", userID,
			"error", err,
		)
	}

	refreshToken, err := s.storeRefreshToken(ctx, user.ID, record.Family, meta)
	if err != nil {
		return nil, err
	}

	metrics.AccessTokensIssued.Inc()
	s.logger.Info("✅ [AuthService] Token refreshed successfully", "user_id", user.ID)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.cfg.AccessTokenExpiration,
	}, nil
}

// respondToReuse revokes the lineage of a refresh token that was presented
// after it had been spent. When the lineage cannot be recovered every active
// session of the user is revoked instead. Failures are logged only.
func (s *authService) respondToReuse(ctx context.Context, userID uuid.UUID, tokenHash string, claims *token.Claims) {
	// The fan-out must finish even if the client has gone away
	ctx = context.WithoutCancel(ctx)

	metrics.RefreshTokenReuseDetected.Inc()
	s.logger.Warn("🚨 [AuthService] Refresh token reuse detected", "user_id", userID)

	var (
		count int64
		err   error
	)
	record, findErr := s.refreshTokenRepo.FindByHash(ctx, tokenHash)
	switch {
	case findErr == nil && record.UserID == userID:
		count, err = s.refreshTokenRepo.RevokeFamily(ctx, userID, record.Family, "")
	default:
		if findErr != nil && !errors.Is(findErr, repository.ErrTokenNotFound) {
			s.logger.Error("❌ [AuthService] Failed to recover token family", "user_id", userID, "error", findErr)
		}
		count, err = s.refreshTokenRepo.RevokeAllForUser(ctx, userID, "")
	}
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to revoke compromised sessions", "user_id", userID, "error", err)
	} else {
		metrics.RefreshTokensRevoked.Add(float64(count))
		s.logger.Warn("🔒 [AuthService] Compromised sessions revoked", "user_id", userID, "count", count)
	}

	if err := s.revocations.RevokeToken(ctx, claims.ID, claims.Expiry()); err != nil {
		metrics.RevocationStoreErrors.WithLabelValues("revoke").Inc()
		s.logger.Warn("⚠️ [AuthService] Failed to blacklist reused refresh token", "user_id", userID, "error", err)
	}
}

// RevokeOnLogout ends every session of userID. Calling it again is harmless.
func (s *authService) RevokeOnLogout(ctx context.Context, userID uuid.UUID, accessClaims *token.Claims, rawRefreshToken string) error {
	s.logger.Info("👋 [AuthService] Logout attempt", "user_id", userID)

	count, err := s.refreshTokenRepo.RevokeAllForUser(ctx, userID, "")
	if err != nil {
		return s.storeFailure("revoke user sessions", err)
	}
	metrics.RefreshTokensRevoked.Add(float64(count))

	if accessClaims != nil {
		if err := s.revocations.RevokeToken(ctx, accessClaims.ID, accessClaims.Expiry()); err != nil {
			metrics.RevocationStoreErrors.WithLabelValues("revoke").Inc()
			return s.storeFailure("blacklist access token", err)
		}
	}

	if rawRefreshToken != "" {
		claims, err := s.codec.Verify(rawRefreshToken, token.TypeRefresh)
		switch {
		case err != nil:
			s.logger.Debug("🔍 [AuthService] Ignoring unverifiable refresh token on logout", "error", err)
		case claims.Subject != userID.String():
			s.logger.Warn("⚠️ [AuthService] Refresh token on logout belongs to another user", "user_id", userID)
		default:
			if err := s.revocations.RevokeToken(ctx, claims.ID, claims.Expiry()); err != nil {
				metrics.RevocationStoreErrors.WithLabelValues("revoke").Inc()
				s.logger.Warn("⚠️ [AuthService] Failed to blacklist refresh token on logout", "error", err)
			}
		}
	}

	s.logger.Info("✅ [AuthService] User logged out successfully", "user_id", userID, "revoked", count)
	return nil
}

// VerifyAccess checks an access token and refuses it when the revocation
// store cannot be consulted.
func (s *authService) VerifyAccess(ctx context.Context, rawAccessToken string) (*token.Claims, error) {
	claims, err := s.codec.Verify(rawAccessToken, token.TypeAccess)
	if err == nil {
		var revoked bool
		revoked, err = s.revocations.IsTokenRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			metrics.RevocationStoreErrors.WithLabelValues("check").Inc()
			err = s.reject(ReasonStoreUnavailable, err)
		case revoked:
			err = s.reject(ReasonTokenRevoked, nil)
		}
	} else {
		err = s.reject(codecReason(err), err)
	}

	if err != nil {
		reason, _ := ReasonOf(err)
		metrics.AccessValidations.WithLabelValues(string(reason)).Inc()
		return nil, err
	}

	metrics.AccessValidations.WithLabelValues("valid").Inc()
	return claims, nil
}

func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, s.storeFailure("find user", err)
	}
	return user, nil
}

func (s *authService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	sessions, err := s.refreshTokenRepo.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, s.storeFailure("list sessions", err)
	}
	return sessions, nil
}

// SweepExpiredTokens deletes ledger records past their expiry
func (s *authService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	count, err := s.refreshTokenRepo.SweepExpired(ctx)
	if err != nil {
		return 0, s.storeFailure("sweep expired tokens", err)
	}

	metrics.RefreshTokensCleanupDeleted.Add(float64(count))
	if count > 0 {
		s.logger.Info("🧹 [AuthService] Expired refresh tokens deleted", "count", count)
	}
	return count, nil
}

// storeRefreshToken mints a refresh token in family and records it in the
// ledger. A hash collision is retried once with a fresh token.
func (s *authService) storeRefreshToken(ctx context.Context, userID, family uuid.UUID, meta ClientMeta) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, claims, err := s.codec.Mint(userID.String(), token.TypeRefresh)
		if err != nil {
			s.logger.Error("❌ [AuthService] Failed to mint refresh token", "error", err)
			return "", err
		}

		record := &models.RefreshToken{
			TokenHash: HashRefreshToken(raw),
			UserID:    userID,
			Family:    family,
			ExpiresAt: claims.Expiry(),
			IPAddress: optional(meta.IPAddress),
			UserAgent: optional(meta.UserAgent),
		}

		_, err = s.refreshTokenRepo.Create(ctx, record)
		if err == nil {
			metrics.RefreshTokensIssued.Inc()
			return raw, nil
		}
		if !errors.Is(err, repository.ErrHashConflict) {
			return "", s.storeFailure("create refresh token", err)
		}

		s.logger.Warn("⚠️ [AuthService] Refresh token hash conflict, reminting",
			"user_id", userID,
			"reason", ReasonHashConflict,
		)
		lastErr = err
	}

	return "", s.storeFailure("create refresh token", lastErr)
}

func (s *authService) reject(reason Reason, err error) error {
	s.logger.Warn("⛔ [AuthService] Token rejected", "reason", reason, "error", err)
	return &AuthError{Reason: reason, Err: err}
}

func (s *authService) storeFailure(op string, err error) error {
	s.logger.Error("❌ [AuthService] Store operation failed", "operation", op, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// HashRefreshToken returns the ledger key of a raw refresh token
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
