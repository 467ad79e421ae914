package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authstack/authstack/internal/core/domain"
)

// TokenIssuer signs time-bounded HS256 access tokens. The signing key is
// process-wide configuration, loaded once at startup and never rotated at
// runtime.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue builds the claim set from the principal and signs it. Deterministic
// given identical claims, key, and timestamp.
func (t *TokenIssuer) Issue(principal *domain.Principal) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      principal.ID,
		"username": principal.Username,
		"email":    principal.Email,
		"iat":      now.Unix(),
		"exp":      now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}
