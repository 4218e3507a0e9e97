package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrMissingSecret    = errors.New("auth: jwt secret is not configured")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingOperator  = errors.New("missing operator in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

const (
	// DefaultTokenTTL applies when neither the config nor the caller sets one
	DefaultTokenTTL = 12 * time.Hour
	// MaxTokenTTL caps tokens minted from the CLI
	MaxTokenTTL = 30 * 24 * time.Hour
)

// OperatorClaims identifies the person triggering manual syncs and resets
type OperatorClaims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// IssuedToken is a signed operator token
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"` // Bearer
	Operator  string    `json:"operator"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OperatorTokens issues and validates HS256 operator tokens
type OperatorTokens struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked Revocations
	now     func() time.Time
}

// Option configures OperatorTokens
type Option func(*OperatorTokens)

// WithRevocations enables token revocation checks
func WithRevocations(r Revocations) Option {
	return func(t *OperatorTokens) {
		t.revoked = r
	}
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(t *OperatorTokens) {
		t.now = now
	}
}

// NewOperatorTokens creates the token service from config
func NewOperatorTokens(cfg config.AuthConfig, opts ...Option) (*OperatorTokens, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "attendance-sync"
	}

	t := &OperatorTokens{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for operator. A zero ttl uses the configured one.
func (t *OperatorTokens) Issue(operator string, ttl time.Duration) (*IssuedToken, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, ErrMissingOperator
	}
	if ttl <= 0 {
		ttl = t.ttl
	}
	if ttl > MaxTokenTTL {
		return nil, fmt.Errorf("token ttl %s exceeds the maximum of %s", ttl, MaxTokenTTL)
	}

	now := t.now()
	expiresAt := now.Add(ttl)
	claims := &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   operator,
			Audience:  jwt.ClaimStrings{t.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Operator: operator,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{
		Token:     signed,
		TokenType: "Bearer",
		Operator:  operator,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses tokenString and returns its claims. Revoked tokens fail
// with ErrTokenRevoked.
func (t *OperatorTokens) Validate(ctx context.Context, tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Operator == "" {
		return nil, ErrMissingOperator
	}

	if t.revoked != nil && claims.ID != "" {
		revoked, err := t.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates the token behind claims until it would have expired
func (t *OperatorTokens) Revoke(ctx context.Context, claims *OperatorClaims) error {
	if t.revoked == nil {
		return errors.New("auth: token revocation is not enabled")
	}
	if claims == nil || claims.ID == "" {
		return ErrInvalidClaims
	}
	ttl := claims.RemainingTTL(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.revoked.Revoke(ctx, claims.ID, ttl)
}

// RemainingTTL returns how long the token stays valid after now
func (c *OperatorClaims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if remaining := c.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// TTL returns the default token lifetime
func (t *OperatorTokens) TTL() time.Duration {
	return t.ttl
}
