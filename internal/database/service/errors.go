package service

import (
	"errors"
	"fmt"

	"github.com/EgehanKilicarslan/tokenguard/internal/token"
)

// Reason records why an authentication attempt was rejected. It is kept
// for logs and metrics only and never shown to clients.
type Reason string

const (
	ReasonMalformedToken         Reason = "malformed_token"
	ReasonSignatureInvalid       Reason = "signature_invalid"
	ReasonWrongTokenType         Reason = "wrong_token_type"
	ReasonTokenRevoked           Reason = "token_revoked"
	ReasonTokenExpired           Reason = "token_expired"
	ReasonTokenReuseDetected     Reason = "token_reuse_detected"
	ReasonUserNotFoundOrInactive Reason = "user_not_found_or_inactive"
	ReasonStoreUnavailable       Reason = "store_unavailable"
	ReasonHashConflict           Reason = "hash_conflict"
)

// AuthError is the single failure shape of the authentication path. Every
// AuthError matches ErrUnauthorized.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return fmt.Sprintf("unauthorized: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ReasonOf extracts the rejection reason from err, if it carries one
func ReasonOf(err error) (Reason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}

func codecReason(err error) Reason {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, token.ErrSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, token.ErrWrongTokenType):
		return ReasonWrongTokenType
	default:
		return ReasonMalformedToken
	}
}

// Service errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
