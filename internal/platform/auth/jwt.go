package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued for storefront sessions.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens and extracts their claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

// JWTVerifier verifies HS256-signed session tokens.
type JWTVerifier struct {
	key    []byte
	issuer string
	clock  func() time.Time
}

// JWTOption customises JWTVerifier behaviour.
type JWTOption func(*JWTVerifier)

// WithJWTClock overrides the time source used for expiry checks.
func WithJWTClock(clock func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewJWTVerifier constructs a verifier for tokens signed with the shared key.
func NewJWTVerifier(signingKey, issuer string, opts ...JWTOption) (*JWTVerifier, error) {
	signingKey = strings.TrimSpace(signingKey)
	if signingKey == "" {
		return nil, errors.New("auth: signing key is required")
	}
	v := &JWTVerifier{
		key:    []byte(signingKey),
		issuer: strings.TrimSpace(issuer),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// VerifyToken parses and validates the token, returning its claims on success.
func (v *JWTVerifier) VerifyToken(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	// Time-based claims are checked below against the injected clock, so the
	// parser only verifies the signature and algorithm.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	now := v.clock()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, fmt.Errorf("%w: expired at %v", ErrTokenExpired, claims.ExpiresAt)
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, fmt.Errorf("%w: not valid yet", ErrTokenInvalid)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// IssueToken mints a signed session token for the given principal. Exposed for
// local development tooling and tests.
func (v *JWTVerifier) IssueToken(identity Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", errors.New("auth: user id is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := v.clock()
	claims := Claims{
		Role:  strings.ToLower(strings.TrimSpace(identity.Role)),
		Email: identity.Email,
		Name:  identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}
