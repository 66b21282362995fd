package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenClaims is the bearer token payload. OrganizationID is present only
// when the module runs with multitenancy enabled.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID         string  `json:"user_id"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// UserUUID parses the embedded user id.
func (c *TokenClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// OrganizationUUID parses the embedded organization id, when present.
func (c *TokenClaims) OrganizationUUID() (*uuid.UUID, error) {
	if c.OrganizationID == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*c.OrganizationID)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// IssuedAtTime returns the issue instant, zero when absent.
func (c *TokenClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ExpiresAtTime returns the expiry instant, zero when absent.
func (c *TokenClaims) ExpiresAtTime() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// TokenCodec produces and consumes signed, time bounded bearer tokens.
type TokenCodec struct {
	signingKey  []byte
	lifetime    time.Duration
	multitenant bool
	logger      Logger
}

// NewTokenCodec creates a codec from the module configuration.
func NewTokenCodec(cfg Config) *TokenCodec {
	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	return &TokenCodec{
		signingKey:  []byte(cfg.SigningSecret),
		lifetime:    lifetime,
		multitenant: cfg.Multitenancy,
		logger:      defLogger{},
	}
}

func (tc *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		tc.logger = logger
	}
	return tc
}

// Lifetime exposes the configured validity window.
func (tc *TokenCodec) Lifetime() time.Duration {
	return tc.lifetime
}

// Encode builds and signs a token for the given user. The organization id
// is embedded only when multitenancy is configured; expiry is always
// issue time plus the configured lifetime.
func (tc *TokenCodec) Encode(userID uuid.UUID, organizationID *uuid.UUID) (string, error) {
	now := time.Now()

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.lifetime)),
		},
		UserID: userID.String(),
	}

	if tc.multitenant && organizationID != nil {
		oid := organizationID.String()
		claims.OrganizationID = &oid
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Reissue mints a fresh token carrying the same principal references as
// the given claims, rolling the expiry window forward from now.
func (tc *TokenCodec) Reissue(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return "", errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	organizationID, err := claims.OrganizationUUID()
	if err != nil {
		return "", errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return tc.Encode(userID, organizationID)
}

// Decode parses and validates a raw token string. The signature is
// verified before any other check; expired tokens fail with
// ErrTokenExpired, everything else with ErrTokenMalformed.
func (tc *TokenCodec) Decode(raw string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("token decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		tc.logger.Error("token decode could not recover claims")
		return nil, ErrTokenMalformed
	}

	if claims.UserID == "" {
		return nil, ErrTokenMalformed
	}

	if _, err := claims.UserUUID(); err != nil {
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims, nil
}
