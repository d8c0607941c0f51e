package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
)

// Type distinguishes access tokens from refresh tokens
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the payload carried by every signed token
type Claims struct {
	Type Type `json:"type"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim as a time, zero when absent
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Config holds the signing material; it is read once at startup and never mutated
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec mints and verifies HS256 tokens, keying the secret by token type
type Codec struct {
	cfg    Config
	clock  clock.Clock
	parser *jwt.Parser
}

// NewCodec validates the key material and returns a codec
func NewCodec(cfg Config, clk clock.Clock) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	)

	return &Codec{cfg: cfg, clock: clk, parser: parser}, nil
}

// Mint signs a fresh token for subject; jti and exp differ on every call.
func (c *Codec) Mint(subject string, typ Type) (string, *Claims, error) {
	secret, ttl, err := c.keyFor(typ)
	if err != nil {
		return "", nil, err
	}

	now := c.clock.Now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}

	return signed, claims, nil
}

// Verify checks signature, expiry, required claims and type. It never
// consults the revocation store or the ledger.
func (c *Codec) Verify(signed string, expected Type) (*Claims, error) {
	secret, _, err := c.keyFor(expected)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = c.parser.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.ID == "" || claims.Type == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

func (c *Codec) keyFor(typ Type) ([]byte, time.Duration, error) {
	switch typ {
	case TypeAccess:
		return c.cfg.AccessSecret, c.cfg.AccessTTL, nil
	case TypeRefresh:
		return c.cfg.RefreshSecret, c.cfg.RefreshTTL, nil
	default:
		return nil, 0, ErrWrongTokenType
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return ErrMalformedToken
	}
}

// Codec errors
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrWrongTokenType   = errors.New("wrong token type")
	ErrTokenExpired     = errors.New("token expired")
)
