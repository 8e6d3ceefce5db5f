package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/services"
)

func newCartRouter(cart *stubCartService) http.Handler {
	return NewRouter(WithCartHandlers(NewCartHandlers(cart)))
}

func testCart(t *testing.T) domain.Cart {
	t.Helper()
	return domain.Cart{
		UserID: "consumer-1",
		Items: []domain.CartItem{
			{
				ProductID:   "prod-1",
				ProductName: "Tomatoes",
				FarmerID:    "farmer-1",
				Quantity:    2,
				UnitPrice:   testPrice(t, "10.00"),
				AddedAt:     time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
			},
		},
		UpdatedAt: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestGetCartReturnsPricedPayload(t *testing.T) {
	cart := &stubCartService{cart: testCart(t)}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodGet, "/api/v1/cart", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	payload := decodeJSON(t, rec)
	if payload["subtotal"] != "20.00" || payload["tax"] != "2.00" || payload["total"] != "22.00" {
		t.Fatalf("totals = %v/%v/%v", payload["subtotal"], payload["tax"], payload["total"])
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v", payload["items"])
	}
}

func TestReplaceCartForwardsParsedItems(t *testing.T) {
	cart := &stubCartService{cart: testCart(t)}
	router := newCartRouter(cart)

	body := `{"items": [{"productId": "prod-2", "quantity": 3, "unitPrice": "5.00", "farmerId": "farmer-2"}]}`
	req := authedRequest(t, http.MethodPut, "/api/v1/cart", body, consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(cart.replaced) != 1 {
		t.Fatalf("replaced = %v", cart.replaced)
	}
	if cart.replaced[0].ProductID != "prod-2" || cart.replaced[0].Quantity != 3 {
		t.Fatalf("replaced item = %+v", cart.replaced[0])
	}
	if !cart.replaced[0].UnitPrice.Equal(testPrice(t, "5.00")) {
		t.Fatalf("unit price = %s", cart.replaced[0].UnitPrice)
	}
}

func TestReplaceCartRejectsBadAmount(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	body := `{"items": [{"productId": "prod-2", "quantity": 1, "unitPrice": "five"}]}`
	req := authedRequest(t, http.MethodPut, "/api/v1/cart", body, consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAddCartItemForwardsCommand(t *testing.T) {
	cart := &stubCartService{cart: testCart(t)}
	router := newCartRouter(cart)

	body := `{"productId": "prod-3", "productName": "Spinach", "quantity": 2, "unitPrice": "4.50", "farmerId": "farmer-1"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/cart/items", body, consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if cart.upsertCmd == nil {
		t.Fatal("service was not invoked")
	}
	if cart.upsertCmd.UserID != "consumer-1" || cart.upsertCmd.ProductID != "prod-3" {
		t.Fatalf("cmd = %+v", cart.upsertCmd)
	}
	if !cart.upsertCmd.UnitPrice.Equal(testPrice(t, "4.50")) {
		t.Fatalf("unit price = %s", cart.upsertCmd.UnitPrice)
	}
}

func TestAddCartItemMapsValidationError(t *testing.T) {
	cart := &stubCartService{err: services.ErrCartInvalidInput}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodPost, "/api/v1/cart/items", `{"productId": "", "quantity": 0}`, consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRemoveCartItemUsesPathParam(t *testing.T) {
	cart := &stubCartService{cart: testCart(t)}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodDelete, "/api/v1/cart/items/prod-1", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if cart.removeCmd == nil || cart.removeCmd.ProductID != "prod-1" {
		t.Fatalf("remove cmd = %+v", cart.removeCmd)
	}
}

func TestRemoveMissingCartItemIsNotFound(t *testing.T) {
	cart := &stubCartService{err: services.ErrCartItemNotFound}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodDelete, "/api/v1/cart/items/prod-9", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCartEstimateReturnsTotals(t *testing.T) {
	cart := &stubCartService{
		totals: domain.Totals{
			Subtotal: testPrice(t, "25.00"),
			Tax:      testPrice(t, "2.50"),
			Total:    testPrice(t, "27.50"),
		},
	}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodGet, "/api/v1/cart/estimate", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	payload := decodeJSON(t, rec)
	if payload["total"] != "27.50" {
		t.Fatalf("total = %v", payload["total"])
	}
}

func TestClearCartReturnsNoContent(t *testing.T) {
	cart := &stubCartService{}
	router := newCartRouter(cart)

	req := authedRequest(t, http.MethodDelete, "/api/v1/cart", "", consumerIdentity())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if !cart.cleared || cart.clearedFor != "consumer-1" {
		t.Fatalf("cleared = %v for %q", cart.cleared, cart.clearedFor)
	}
}

func TestCartWithoutIdentityIsUnauthorized(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := authedRequest(t, http.MethodGet, "/api/v1/cart", "", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
