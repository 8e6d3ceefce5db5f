package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/harvestfield/api/internal/domain"
)

type stubCartRepository struct {
	mu    sync.Mutex
	carts map[string]domain.Cart

	clearCalls int
}

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{carts: map[string]domain.Cart{}}
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		return domain.Cart{UserID: userID}, nil
	}
	return cart, nil
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = cart
	return cart, nil
}

func (s *stubCartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.carts[userID]
	cart.UserID = userID
	cart.Items = items
	s.carts[userID] = cart
	return cart, nil
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	delete(s.carts, userID)
	return nil
}

func newTestCartService(t *testing.T) (CartService, *stubCartRepository) {
	t.Helper()
	repo := newStubCartRepository()
	svc, err := NewCartService(CartServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc, repo
}

func TestCartServiceAddAndUpdateItem(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()

	cart, err := svc.AddOrUpdateItem(ctx, UpsertCartItemCommand{
		UserID:      "consumer-1",
		ProductID:   "prod-1",
		ProductName: "Tomatoes",
		Unit:        "kg",
		FarmerID:    "farmer-1",
		Quantity:    2,
		UnitPrice:   price(t, "10.00"),
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart after add: %+v", cart.Items)
	}

	// Same product again replaces quantity and price instead of appending.
	cart, err = svc.AddOrUpdateItem(ctx, UpsertCartItemCommand{
		UserID:    "consumer-1",
		ProductID: "prod-1",
		Quantity:  5,
		UnitPrice: price(t, "9.50"),
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("update must not append, got %d items", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 || !cart.Items[0].UnitPrice.Equal(price(t, "9.50")) {
		t.Fatalf("item not updated: %+v", cart.Items[0])
	}
}

func TestCartServiceValidatesInput(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()

	cases := []UpsertCartItemCommand{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: price(t, "1.00")},
		{UserID: "consumer-1", Quantity: 1, UnitPrice: price(t, "1.00")},
		{UserID: "consumer-1", ProductID: "prod-1", Quantity: 0, UnitPrice: price(t, "1.00")},
		{UserID: "consumer-1", ProductID: "prod-1", Quantity: 1, UnitPrice: price(t, "-1.00")},
	}
	for i, cmd := range cases {
		if _, err := svc.AddOrUpdateItem(ctx, cmd); !errors.Is(err, ErrCartInvalidInput) {
			t.Fatalf("case %d: expected ErrCartInvalidInput, got %v", i, err)
		}
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()

	for _, item := range []struct {
		id    string
		price string
	}{
		{"prod-1", "10.00"},
		{"prod-2", "5.00"},
	} {
		if _, err := svc.AddOrUpdateItem(ctx, UpsertCartItemCommand{
			UserID:    "consumer-1",
			ProductID: item.id,
			Quantity:  1,
			UnitPrice: price(t, item.price),
		}); err != nil {
			t.Fatalf("seed %s: %v", item.id, err)
		}
	}

	cart, err := svc.RemoveItem(ctx, RemoveCartItemCommand{UserID: "consumer-1", ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "prod-2" {
		t.Fatalf("unexpected cart after remove: %+v", cart.Items)
	}

	if _, err := svc.RemoveItem(ctx, RemoveCartItemCommand{UserID: "consumer-1", ProductID: "prod-404"}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceEstimate(t *testing.T) {
	svc, _ := newTestCartService(t)
	ctx := context.Background()

	for _, item := range []struct {
		id    string
		qty   int
		price string
	}{
		{"prod-1", 2, "10.00"},
		{"prod-2", 1, "5.00"},
	} {
		if _, err := svc.AddOrUpdateItem(ctx, UpsertCartItemCommand{
			UserID:    "consumer-1",
			ProductID: item.id,
			Quantity:  item.qty,
			UnitPrice: price(t, item.price),
		}); err != nil {
			t.Fatalf("seed %s: %v", item.id, err)
		}
	}

	totals, err := svc.Estimate(ctx, "consumer-1")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if !totals.Subtotal.Equal(price(t, "25.00")) || !totals.Tax.Equal(price(t, "2.50")) || !totals.Total.Equal(price(t, "27.50")) {
		t.Fatalf("totals = %s/%s/%s, want 25.00/2.50/27.50", totals.Subtotal, totals.Tax, totals.Total)
	}

	// An empty cart estimates to zero rather than failing.
	totals, err = svc.Estimate(ctx, "consumer-empty")
	if err != nil {
		t.Fatalf("estimate empty: %v", err)
	}
	if !totals.Total.IsZero() {
		t.Fatalf("empty cart total = %s, want 0", totals.Total)
	}
}

func TestCartServiceClear(t *testing.T) {
	svc, repo := newTestCartService(t)
	ctx := context.Background()

	if _, err := svc.AddOrUpdateItem(ctx, UpsertCartItemCommand{
		UserID:    "consumer-1",
		ProductID: "prod-1",
		Quantity:  1,
		UnitPrice: price(t, "10.00"),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.ClearCart(ctx, "consumer-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if repo.clearCalls != 1 {
		t.Fatalf("clear calls = %d, want 1", repo.clearCalls)
	}

	cart, err := svc.GetOrCreateCart(ctx, "consumer-1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("cart not empty after clear: %+v", cart.Items)
	}

	if err := svc.ClearCart(ctx, ""); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}
