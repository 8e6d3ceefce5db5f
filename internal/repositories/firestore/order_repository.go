package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
	pfirestore "github.com/harvestfield/api/internal/platform/firestore"
	"github.com/harvestfield/api/internal/platform/pagination"
	"github.com/harvestfield/api/internal/repositories"
)

const (
	orderCollection = "orders"
)

// OrderRepository persists order documents within Firestore.
//
// Documents written by older storefront builds carry a flat deliveryAddress
// block instead of shippingAddress, and may omit status fields entirely.
// Decoding therefore targets domain.RawOrder; callers normalise before use.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		if err := tx.Create(ref, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the stored document with the canonical shape of the order.
// Legacy fields are dropped on rewrite so every update migrates the record.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		if err := tx.Set(ref, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		return nil
	}
	if _, err := ref.Set(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches the raw persisted order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.RawOrder, error) {
	if r == nil || r.base == nil {
		return domain.RawOrder{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.RawOrder{}, errors.New("order repository: order id is required")
	}

	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return domain.RawOrder{}, err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return domain.RawOrder{}, pfirestore.WrapError("orders.get", err)
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.RawOrder{}, fmt.Errorf("order repository: decode %s: %w", orderID, err)
		}
		return decodeOrderDocument(snapshot.Ref.ID, doc)
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.RawOrder{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data)
}

// List returns orders matching the filter ordered by most recent creation.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.RawOrder], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.RawOrder]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.RawOrder]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	consumerID := strings.TrimSpace(filter.ConsumerID)
	farmerID := strings.TrimSpace(filter.FarmerID)
	statusFilters := normaliseOrderStatuses(filter.Status)

	var createdFrom, createdTo *time.Time
	if filter.DateRange.From != nil {
		value := filter.DateRange.From.UTC()
		if !value.IsZero() {
			createdFrom = &value
		}
	}
	if filter.DateRange.To != nil {
		value := filter.DateRange.To.UTC()
		if !value.IsZero() {
			createdTo = &value
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if consumerID != "" {
			q = q.Where("consumerId", "==", consumerID)
		}
		if farmerID != "" {
			q = q.Where("farmerIds", "array-contains", farmerID)
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if createdFrom != nil {
			q = q.Where("createdAt", ">=", *createdFrom)
		}
		if createdTo != nil {
			q = q.Where("createdAt", "<", *createdTo)
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.RawOrder]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.RawOrder, 0, len(valueDocs))
	for _, doc := range valueDocs {
		raw, err := decodeOrderDocument(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.RawOrder]{}, fmt.Errorf("order repository: decode %s: %w", doc.ID, err)
		}
		items = append(items, raw)
	}

	return domain.CursorPage[domain.RawOrder]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	OrderNumber          string                  `firestore:"orderNumber"`
	ConsumerID           string                  `firestore:"consumerId"`
	ConsumerName         string                  `firestore:"consumerName,omitempty"`
	Items                []orderItemDocument     `firestore:"items"`
	FarmerIDs            []string                `firestore:"farmerIds"`
	Subtotal             string                  `firestore:"subtotal"`
	TaxAmount            string                  `firestore:"taxAmount"`
	TotalAmount          string                  `firestore:"totalAmount"`
	ShippingAddress      *addressDocument        `firestore:"shippingAddress,omitempty"`
	DeliveryAddress      *legacyAddressDocument  `firestore:"deliveryAddress,omitempty"`
	PaymentMethod        string                  `firestore:"paymentMethod"`
	Status               string                  `firestore:"status,omitempty"`
	PaymentStatus        string                  `firestore:"paymentStatus,omitempty"`
	TransactionID        *string                 `firestore:"transactionId,omitempty"`
	DeliveryInstructions string                  `firestore:"deliveryInstructions,omitempty"`
	ConsumerNotes        string                  `firestore:"consumerNotes,omitempty"`
	CancelReason         *string                 `firestore:"cancelReason,omitempty"`
	CreatedAt            time.Time               `firestore:"createdAt"`
	UpdatedAt            time.Time               `firestore:"updatedAt"`
	PaidAt               *time.Time              `firestore:"paidAt,omitempty"`
	DeliveredAt          *time.Time              `firestore:"deliveredAt,omitempty"`
	CancelledAt          *time.Time              `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId,omitempty"`
	ProductName string `firestore:"productName,omitempty"`
	Unit        string `firestore:"unit,omitempty"`
	ImageURL    string `firestore:"imageUrl,omitempty"`
	FarmerID    string `firestore:"farmerId,omitempty"`
	FarmerName  string `firestore:"farmerName,omitempty"`
	FarmName    string `firestore:"farmName,omitempty"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   string `firestore:"unitPrice"`
}

type addressDocument struct {
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Line1     string `firestore:"line1"`
	Line2     string `firestore:"line2,omitempty"`
	City      string `firestore:"city"`
	State     string `firestore:"state"`
	ZipCode   string `firestore:"zipCode"`
	Country   string `firestore:"country"`
	Phone     string `firestore:"phone,omitempty"`
}

type legacyAddressDocument struct {
	Address string `firestore:"address"`
	City    string `firestore:"city"`
	State   string `firestore:"state"`
	ZipCode string `firestore:"zipCode"`
	Country string `firestore:"country,omitempty"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
			Unit:        item.Product.Unit,
			ImageURL:    item.Product.ImageURL,
			FarmerID:    item.Farmer.ID,
			FarmerName:  item.Farmer.Name,
			FarmName:    item.Farmer.FarmName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
		})
	}

	doc := orderDocument{
		OrderNumber:          order.OrderNumber,
		ConsumerID:           order.ConsumerID,
		ConsumerName:         order.ConsumerName,
		Items:                items,
		FarmerIDs:            order.FarmerIDs(),
		Subtotal:             order.Subtotal.String(),
		TaxAmount:            order.TaxAmount.String(),
		TotalAmount:          order.TotalAmount.String(),
		PaymentMethod:        string(order.PaymentMethod),
		Status:               string(order.Status),
		PaymentStatus:        string(order.PaymentStatus),
		TransactionID:        cloneStringPtr(order.TransactionID),
		DeliveryInstructions: order.DeliveryInstructions,
		ConsumerNotes:        order.ConsumerNotes,
		CancelReason:         cloneStringPtr(order.CancelReason),
		CreatedAt:            order.CreatedAt.UTC(),
		UpdatedAt:            order.UpdatedAt.UTC(),
		PaidAt:               cloneTimePtr(order.PaidAt),
		DeliveredAt:          cloneTimePtr(order.DeliveredAt),
		CancelledAt:          cloneTimePtr(order.CancelledAt),
	}

	if order.ShippingAddress != nil {
		addr := *order.ShippingAddress
		doc.ShippingAddress = &addressDocument{
			FirstName: addr.FirstName,
			LastName:  addr.LastName,
			Line1:     addr.Line1,
			Line2:     stringFromPtr(addr.Line2),
			City:      addr.City,
			State:     addr.State,
			ZipCode:   addr.ZipCode,
			Country:   addr.Country,
			Phone:     stringFromPtr(addr.Phone),
		}
	}

	return doc
}

func decodeOrderDocument(id string, doc orderDocument) (domain.RawOrder, error) {
	subtotal, err := parseMoney(doc.Subtotal)
	if err != nil {
		return domain.RawOrder{}, fmt.Errorf("subtotal: %w", err)
	}
	tax, err := parseMoney(doc.TaxAmount)
	if err != nil {
		return domain.RawOrder{}, fmt.Errorf("taxAmount: %w", err)
	}
	total, err := parseMoney(doc.TotalAmount)
	if err != nil {
		return domain.RawOrder{}, fmt.Errorf("totalAmount: %w", err)
	}

	items := make([]domain.RawLineItem, 0, len(doc.Items))
	for i, item := range doc.Items {
		unitPrice, err := parseMoney(item.UnitPrice)
		if err != nil {
			return domain.RawOrder{}, fmt.Errorf("items[%d].unitPrice: %w", i, err)
		}
		raw := domain.RawLineItem{
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		}
		if item.ProductID != "" || item.ProductName != "" {
			raw.Product = &domain.ProductRef{
				ID:       item.ProductID,
				Name:     item.ProductName,
				Unit:     item.Unit,
				ImageURL: item.ImageURL,
			}
		}
		if item.FarmerID != "" || item.FarmerName != "" {
			raw.Farmer = &domain.FarmerRef{
				ID:       item.FarmerID,
				Name:     item.FarmerName,
				FarmName: item.FarmName,
			}
		}
		items = append(items, raw)
	}

	raw := domain.RawOrder{
		ID:                   id,
		OrderNumber:          doc.OrderNumber,
		ConsumerID:           doc.ConsumerID,
		ConsumerName:         doc.ConsumerName,
		Items:                items,
		Subtotal:             subtotal,
		TaxAmount:            tax,
		TotalAmount:          total,
		PaymentMethod:        domain.PaymentMethod(doc.PaymentMethod),
		Status:               domain.OrderStatus(doc.Status),
		PaymentStatus:        domain.PaymentStatus(doc.PaymentStatus),
		TransactionID:        cloneStringPtr(doc.TransactionID),
		DeliveryInstructions: doc.DeliveryInstructions,
		ConsumerNotes:        doc.ConsumerNotes,
		CancelReason:         cloneStringPtr(doc.CancelReason),
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
		PaidAt:               cloneTimePtr(doc.PaidAt),
		DeliveredAt:          cloneTimePtr(doc.DeliveredAt),
		CancelledAt:          cloneTimePtr(doc.CancelledAt),
	}

	if doc.ShippingAddress != nil {
		addr := *doc.ShippingAddress
		raw.ShippingAddress = &domain.Address{
			FirstName: addr.FirstName,
			LastName:  addr.LastName,
			Line1:     addr.Line1,
			Line2:     ptrFromString(addr.Line2),
			City:      addr.City,
			State:     addr.State,
			ZipCode:   addr.ZipCode,
			Country:   addr.Country,
			Phone:     ptrFromString(addr.Phone),
		}
	}
	if doc.DeliveryAddress != nil {
		legacy := *doc.DeliveryAddress
		raw.DeliveryAddress = &domain.LegacyDeliveryAddress{
			Address: legacy.Address,
			City:    legacy.City,
			State:   legacy.State,
			ZipCode: legacy.ZipCode,
			Country: legacy.Country,
		}
	}

	return raw, nil
}

func parseMoney(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return parsed, nil
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	seen := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		value := strings.TrimSpace(string(status))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	rawTime, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	tokenTime, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || strings.TrimSpace(docID) == "" {
		return time.Time{}, "", pagination.ErrInvalidPageToken
	}
	return tokenTime, docID, nil
}

func stringFromPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func ptrFromString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	copied := value
	return &copied
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
