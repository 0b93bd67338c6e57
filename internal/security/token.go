package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUndecodable covers every token that cannot be read or trusted. Callers
// treat it exactly like an expired token.
var ErrUndecodable = errors.New("token undecodable")

// Claims is the payload the Submita backend puts in its bearer tokens.
type Claims struct {
	UserID     string `json:"userId,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	FirstLogin bool   `json:"isFirstLogin,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID prefers the explicit user id claim and falls back to sub.
func (c Claims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Expiry returns the zero time when the token carries no exp claim.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Inspect decodes the payload without checking the signature. The result is
// only good enough for navigation hints.
func Inspect(tokenStr string) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Claims{}, ErrUndecodable
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return claims, nil
}

// Verifier checks token signatures. Expiry is deliberately left to the
// authorization decision so both gate runs classify expired tokens the same way.
type Verifier struct {
	key     any
	methods []string
	issuer  string
}

func NewVerifier(secret, publicKeyPEM, issuer string) (*Verifier, error) {
	if publicKeyPEM != "" {
		key, err := ParseRSAPublicKey(publicKeyPEM)
		if err != nil {
			return nil, err
		}
		return &Verifier{
			key:     key,
			methods: []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg()},
			issuer:  issuer,
		}, nil
	}
	if secret == "" {
		return nil, errors.New("jwt secret or public key is required")
	}
	return &Verifier{
		key:     []byte(secret),
		methods: []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()},
		issuer:  issuer,
	}, nil
}

func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Claims{}, ErrUndecodable
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.methods),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return Claims{}, fmt.Errorf("%w: unexpected issuer %q", ErrUndecodable, claims.Issuer)
	}
	return claims, nil
}

func ParseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid_public_key")
	}
	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		publicKey, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("invalid_public_key_type")
		}
		return publicKey, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, errors.New("invalid_public_key")
	}
}
