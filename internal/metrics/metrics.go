package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)

	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		},
	)

	RefreshRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_token_rotations_total",
			Help: "Total number of refresh token rotation attempts by outcome",
		},
		[]string{"outcome"},
	)

	RefreshTokenReuseDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_token_reuse_detected_total",
			Help: "Total number of refresh token reuse detections",
		},
	)

	RefreshTokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_revoked_total",
			Help: "Total number of refresh token records revoked in the ledger",
		},
	)

	AccessValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_token_validations_total",
			Help: "Total number of access token validations by outcome",
		},
		[]string{"outcome"},
	)

	RevocationStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revocation_store_errors_total",
			Help: "Total number of failed revocation store calls",
		},
		[]string{"operation"},
	)

	RefreshTokensCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_cleanup_deleted_total",
			Help: "Total number of expired refresh tokens deleted during cleanup",
		},
	)
)
