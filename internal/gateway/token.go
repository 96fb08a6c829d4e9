package gateway

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource mints short-lived HS256 bearer tokens for backend calls.
type TokenSource struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenSource returns nil when no secret is configured.
func NewTokenSource(secret, subject string, ttl time.Duration) *TokenSource {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenSource{secret: []byte(secret), subject: subject, ttl: ttl, now: time.Now}
}

// Token signs a fresh token.
func (s *TokenSource) Token() (string, error) {
	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
