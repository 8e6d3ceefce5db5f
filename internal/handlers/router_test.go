package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harvestfield/api/internal/platform/auth"
)

func TestRouterServesProbesAtRoot(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRouterUnknownRouteIsJSON404(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	payload := decodeJSON(t, rec)
	if payload["error"] != "not_found" {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestRouterWrongMethodIsJSON405(t *testing.T) {
	router := NewRouter()

	req := authedRequest(t, http.MethodPatch, "/api/v1/cart", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouterEnforcesBearerAuthWhenConfigured(t *testing.T) {
	verifier, err := auth.NewJWTVerifier("test-signing-key", "harvestfield")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	router := NewRouter(
		WithAuthenticator(auth.NewAuthenticator(verifier)),
		WithCartHandlers(NewCartHandlers(&stubCartService{})),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	token, err := verifier.IssueToken(auth.Identity{
		UserID: "consumer-1",
		Role:   auth.RoleConsumer,
	}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d (body %s)", rec.Code, rec.Body.String())
	}
}

func TestRouterIdempotencyGuardWrapsWrites(t *testing.T) {
	var guarded int
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guarded++
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(
		WithCartHandlers(NewCartHandlers(&stubCartService{})),
		WithPaymentHandlers(NewPaymentHandlers(&stubPaymentService{})),
		WithIdempotencyMiddleware(guard),
	)

	req := authedRequest(t, http.MethodPost, "/api/v1/payments/simulate", `{"orderId": "ord_0001", "paymentMethod": "card"}`, consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if guarded != 1 {
		t.Fatalf("guard invoked %d times, want 1", guarded)
	}

	req = authedRequest(t, http.MethodGet, "/api/v1/cart", "", consumerIdentity())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if guarded != 1 {
		t.Fatalf("guard must not wrap reads: invoked %d times", guarded)
	}
}
