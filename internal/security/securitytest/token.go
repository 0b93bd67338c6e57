// Package securitytest mints backend-shaped tokens for tests.
package securitytest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"submita/internal/security"
)

const Secret = "test-secret"

type Options struct {
	UserID     string
	Role       string
	FirstLogin bool
	ExpiresAt  time.Time
	Secret     string
}

func Token(t testing.TB, opts Options) string {
	t.Helper()

	secret := opts.Secret
	if secret == "" {
		secret = Secret
	}
	expires := opts.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(time.Hour)
	}

	claims := security.Claims{
		UserID:     opts.UserID,
		Role:       opts.Role,
		FirstLogin: opts.FirstLogin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   opts.UserID,
			IssuedAt:  jwt.NewNumericDate(expires.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
