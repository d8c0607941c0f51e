package database

import (
	"context"
	"time"
)

// RevocationStore records revoked token identifiers until their natural expiry
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}
