package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubVerifier struct {
	claims *Claims
	err    error
}

func (s *stubVerifier) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func identityClaims(userID, role string) *Claims {
	claims := &Claims{Role: role}
	claims.Subject = userID
	return claims
}

func performRequest(t *testing.T, middleware func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var captured *Identity
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			captured = identity
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{claims: identityClaims("consumer-1", RoleConsumer)})

	rec, identity := performRequest(t, authn.RequireAuth(), "Bearer token")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if identity == nil || identity.UserID != "consumer-1" || identity.Role != RoleConsumer {
		t.Fatalf("identity not propagated: %+v", identity)
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{claims: identityClaims("consumer-1", RoleConsumer)})

	rec, _ := performRequest(t, authn.RequireAuth(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec, _ = performRequest(t, authn.RequireAuth(), "Basic abc")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for non-bearer scheme", rec.Code)
	}
}

func TestRequireAuthRejectsVerifierFailure(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: ErrTokenExpired})

	rec, _ := performRequest(t, authn.RequireAuth(), "Bearer token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthEnforcesRoles(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{claims: identityClaims("consumer-1", RoleConsumer)})

	rec, _ := performRequest(t, authn.RequireAuth(RoleAdmin), "Bearer token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	rec, _ = performRequest(t, authn.RequireAuth(RoleConsumer, RoleAdmin), "Bearer token")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestRequireAuthAppliesFallbackRole(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{claims: identityClaims("consumer-1", "")}, WithFallbackRole(RoleConsumer))

	rec, identity := performRequest(t, authn.RequireAuth(RoleConsumer), "Bearer token")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if identity == nil || identity.Role != RoleConsumer {
		t.Fatalf("fallback role not applied: %+v", identity)
	}
}
