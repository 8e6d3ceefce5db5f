package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/harvestfield/api/internal/domain"
	pfirestore "github.com/harvestfield/api/internal/platform/firestore"
	"github.com/harvestfield/api/internal/repositories"
)

const (
	cartCollection = "carts"
)

// CartRepository persists cart documents within Firestore. The user ID doubles
// as the document identifier so each account owns exactly one cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// UpsertCart persists the full cart document.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	updatedAt := cart.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = now
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	doc := cartDocument{
		Items:     encodeCartItems(cart.Items),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved, err := decodeCartDocument(userID, doc)
	if err != nil {
		return domain.Cart{}, err
	}
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// GetCart fetches the cart for the user. A missing document is returned as an
// empty cart rather than an error; carts are created lazily on first write.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: userID}, nil
		}
		return domain.Cart{}, err
	}
	return decodeCartDocument(userID, doc.Data)
}

// ReplaceItems swaps the item set while keeping the cart header intact.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	existing, err := r.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	existing.UserID = userID
	existing.Items = items
	existing.UpdatedAt = time.Now().UTC()
	return r.UpsertCart(ctx, existing)
}

// Clear removes every item from the cart, leaving the header in place.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.ReplaceItems(ctx, userID, nil)
	return err
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID   string    `firestore:"productId"`
	ProductName string    `firestore:"productName,omitempty"`
	Unit        string    `firestore:"unit,omitempty"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	FarmerID    string    `firestore:"farmerId,omitempty"`
	FarmerName  string    `firestore:"farmerName,omitempty"`
	FarmName    string    `firestore:"farmName,omitempty"`
	Quantity    int       `firestore:"quantity"`
	UnitPrice   string    `firestore:"unitPrice"`
	AddedAt     time.Time `firestore:"addedAt,omitempty"`
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			ImageURL:    item.ImageURL,
			FarmerID:    item.FarmerID,
			FarmerName:  item.FarmerName,
			FarmName:    item.FarmName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
			AddedAt:     item.AddedAt,
		})
	}
	return docs
}

func decodeCartDocument(userID string, doc cartDocument) (domain.Cart, error) {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		unitPrice, err := parseMoney(item.UnitPrice)
		if err != nil {
			return domain.Cart{}, err
		}
		items = append(items, domain.CartItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			ImageURL:    item.ImageURL,
			FarmerID:    item.FarmerID,
			FarmerName:  item.FarmerName,
			FarmName:    item.FarmName,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			AddedAt:     item.AddedAt,
		})
	}
	return domain.Cart{
		UserID:    userID,
		Items:     items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
