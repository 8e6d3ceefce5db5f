package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	verifier, err := NewJWTVerifier("test-signing-key", "harvestfield")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := verifier.IssueToken(Identity{
		UserID: "consumer-1",
		Email:  "jane@example.com",
		Name:   "Jane Doe",
		Role:   RoleConsumer,
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := verifier.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != "consumer-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Role != RoleConsumer {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.Email != "jane@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestJWTVerifierRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	issuer, err := NewJWTVerifier("test-signing-key", "harvestfield", WithJWTClock(func() time.Time { return issuedAt }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueToken(Identity{UserID: "consumer-1", Role: RoleConsumer}, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	later := issuedAt.Add(2 * time.Minute)
	verifier, err := NewJWTVerifier("test-signing-key", "harvestfield", WithJWTClock(func() time.Time { return later }))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := verifier.VerifyToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTVerifierRequiresExpiryClaim(t *testing.T) {
	verifier, err := NewJWTVerifier("test-signing-key", "harvestfield")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	claims := Claims{Role: RoleConsumer}
	claims.Subject = "consumer-1"
	claims.Issuer = "harvestfield"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := verifier.VerifyToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTVerifierRejectsWrongKeyAndIssuer(t *testing.T) {
	issuer, err := NewJWTVerifier("key-one", "harvestfield")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueToken(Identity{UserID: "consumer-1", Role: RoleConsumer}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	wrongKey, err := NewJWTVerifier("key-two", "harvestfield")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := wrongKey.VerifyToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong key, got %v", err)
	}

	wrongIssuer, err := NewJWTVerifier("key-one", "other-service")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := wrongIssuer.VerifyToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong issuer, got %v", err)
	}
}

func TestNewJWTVerifierRequiresKey(t *testing.T) {
	if _, err := NewJWTVerifier("  ", "harvestfield"); err == nil {
		t.Fatal("expected error for empty signing key")
	}
}
