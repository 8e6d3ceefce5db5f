package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the product is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	repo   repositories.CartRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.repo.GetCart(ctx, userID)
}

func (s *cartService) AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (domain.Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}
	if cmd.UnitPrice.Sign() < 0 {
		return domain.Cart{}, fmt.Errorf("%w: unit price cannot be negative", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.UserID = userID

	now := s.clock()
	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = cmd.Quantity
			cart.Items[i].UnitPrice = cmd.UnitPrice
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:   productID,
			ProductName: strings.TrimSpace(cmd.ProductName),
			Unit:        strings.TrimSpace(cmd.Unit),
			ImageURL:    strings.TrimSpace(cmd.ImageURL),
			FarmerID:    strings.TrimSpace(cmd.FarmerID),
			FarmerName:  strings.TrimSpace(cmd.FarmerName),
			FarmName:    strings.TrimSpace(cmd.FarmName),
			Quantity:    cmd.Quantity,
			UnitPrice:   cmd.UnitPrice,
			AddedAt:     now,
		})
	}
	cart.UpdatedAt = now

	return s.repo.UpsertCart(ctx, cart)
}

// ReplaceItems swaps the entire cart contents in one write.
func (s *cartService) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	now := s.clock()
	seen := make(map[string]struct{}, len(items))
	cleaned := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
		}
		if _, dup := seen[productID]; dup {
			return domain.Cart{}, fmt.Errorf("%w: duplicate product %s", ErrCartInvalidInput, productID)
		}
		seen[productID] = struct{}{}
		if item.Quantity <= 0 {
			return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
		}
		if item.UnitPrice.Sign() < 0 {
			return domain.Cart{}, fmt.Errorf("%w: unit price cannot be negative", ErrCartInvalidInput)
		}
		item.ProductID = productID
		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
		cleaned = append(cleaned, item)
	}

	return s.repo.ReplaceItems(ctx, userID, cleaned)
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (domain.Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return domain.Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	kept := cart.Items[:0]
	removed := false
	for _, item := range cart.Items {
		if item.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return domain.Cart{}, fmt.Errorf("%w: product %s", ErrCartItemNotFound, productID)
	}

	return s.repo.ReplaceItems(ctx, userID, kept)
}

// Estimate prices the current cart contents without creating an order.
func (s *cartService) Estimate(ctx context.Context, userID string) (domain.Totals, error) {
	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.PriceCart(cart), nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.repo.Clear(ctx, userID); err != nil {
		return err
	}
	s.logger(ctx, "cart.cleared", map[string]any{"userId": userID})
	return nil
}
