package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Role enumerates the actor roles the order subsystem distinguishes.
type Role string

const (
	// RoleConsumer identifies a buyer acting on their own orders.
	RoleConsumer Role = "consumer"
	// RoleFarmer identifies a seller owning products inside orders.
	RoleFarmer Role = "farmer"
	// RoleAdmin identifies marketplace staff with full transition authority.
	RoleAdmin Role = "admin"
)

// Actor is the authenticated principal attempting an order operation.
type Actor struct {
	ID   string
	Role Role
}

// PaymentMethod enumerates the supported checkout payment methods.
type PaymentMethod string

const (
	// PaymentMethodCard is a simulated card payment.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodUPI is a simulated UPI payment.
	PaymentMethodUPI PaymentMethod = "upi"
	// PaymentMethodWallet is a simulated wallet payment.
	PaymentMethodWallet PaymentMethod = "wallet"
	// PaymentMethodCash is cash on delivery; it never touches the gateway.
	PaymentMethodCash PaymentMethod = "cash"
)

// ValidPaymentMethod reports whether the given method is part of the enum.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentMethods lists every supported method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet, PaymentMethodCash}
}

// OrderStatus enumerates valid fulfillment states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was created and awaits farmer confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates a farmer accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has left the farm.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the consumer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipping. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus tracks whether funds have been captured for an order,
// independently of the fulfillment status.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no successful capture has happened yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates funds were captured (or, for cash, collected).
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the most recent capture attempt failed.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Address is the canonical shipping address shape. Legacy records using the
// flat delivery-address shape are converted to this one during normalization.
type Address struct {
	FirstName string
	LastName  string
	Line1     string
	Line2     *string
	City      string
	State     string
	ZipCode   string
	Country   string
	Phone     *string
}

// Complete reports whether every field required for delivery is present.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.ZipCode) != ""
}

// LegacyDeliveryAddress is the flat address shape found on historical order
// records. Only normalization may read it.
type LegacyDeliveryAddress struct {
	Address string
	City    string
	State   string
	ZipCode string
	Country string
}

// ProductRef is the product snapshot embedded in an order line item.
type ProductRef struct {
	ID       string
	Name     string
	Unit     string
	ImageURL string
}

// FarmerRef is the seller snapshot embedded in an order line item.
type FarmerRef struct {
	ID       string
	Name     string
	FarmName string
}

// OrderLineItem captures one product at the unit price in effect when the
// order was created. Prices are never re-derived from the catalog afterwards.
type OrderLineItem struct {
	Product   ProductRef
	Farmer    FarmerRef
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity × unit price.
func (i OrderLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the central aggregate of the checkout subsystem. Instances are
// produced by Normalize and are always in the canonical shape.
type Order struct {
	ID                   string
	OrderNumber          string
	ConsumerID           string
	ConsumerName         string
	Items                []OrderLineItem
	Subtotal             decimal.Decimal
	TaxAmount            decimal.Decimal
	TotalAmount          decimal.Decimal
	ShippingAddress      *Address
	PaymentMethod        PaymentMethod
	Status               OrderStatus
	PaymentStatus        PaymentStatus
	TransactionID        *string
	DeliveryInstructions string
	ConsumerNotes        string
	CancelReason         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PaidAt               *time.Time
	DeliveredAt          *time.Time
	CancelledAt          *time.Time
}

// FarmerIDs returns the distinct seller ids owning line items, in item order.
func (o Order) FarmerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		id := strings.TrimSpace(item.Farmer.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// OwnedByFarmer reports whether the farmer owns at least one line item.
func (o Order) OwnedByFarmer(farmerID string) bool {
	farmerID = strings.TrimSpace(farmerID)
	if farmerID == "" {
		return false
	}
	for _, item := range o.Items {
		if strings.EqualFold(strings.TrimSpace(item.Farmer.ID), farmerID) {
			return true
		}
	}
	return false
}

// RawLineItem is a line item as read from storage or the wire, where the
// nested references may be missing entirely.
type RawLineItem struct {
	Product   *ProductRef
	Farmer    *FarmerRef
	Quantity  int
	UnitPrice decimal.Decimal
}

// RawOrder is an order record before normalization. Exactly one of
// ShippingAddress and DeliveryAddress is authoritative per record; Status and
// PaymentStatus may be absent on very old records.
type RawOrder struct {
	ID                   string
	OrderNumber          string
	ConsumerID           string
	ConsumerName         string
	Items                []RawLineItem
	Subtotal             decimal.Decimal
	TaxAmount            decimal.Decimal
	TotalAmount          decimal.Decimal
	ShippingAddress      *Address
	DeliveryAddress      *LegacyDeliveryAddress
	PaymentMethod        PaymentMethod
	Status               OrderStatus
	PaymentStatus        PaymentStatus
	TransactionID        *string
	DeliveryInstructions string
	ConsumerNotes        string
	CancelReason         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PaidAt               *time.Time
	DeliveredAt          *time.Time
	CancelledAt          *time.Time
}

// AsRaw converts a canonical order back into the raw representation, used
// when a canonical order re-enters a normalization boundary.
func (o Order) AsRaw() RawOrder {
	items := make([]RawLineItem, len(o.Items))
	for i, item := range o.Items {
		product := item.Product
		farmer := item.Farmer
		items[i] = RawLineItem{
			Product:   &product,
			Farmer:    &farmer,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return RawOrder{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		ConsumerID:           o.ConsumerID,
		ConsumerName:         o.ConsumerName,
		Items:                items,
		Subtotal:             o.Subtotal,
		TaxAmount:            o.TaxAmount,
		TotalAmount:          o.TotalAmount,
		ShippingAddress:      cloneAddress(o.ShippingAddress),
		PaymentMethod:        o.PaymentMethod,
		Status:               o.Status,
		PaymentStatus:        o.PaymentStatus,
		TransactionID:        cloneStringPtr(o.TransactionID),
		DeliveryInstructions: o.DeliveryInstructions,
		ConsumerNotes:        o.ConsumerNotes,
		CancelReason:         cloneStringPtr(o.CancelReason),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		PaidAt:               cloneTimePtr(o.PaidAt),
		DeliveredAt:          cloneTimePtr(o.DeliveredAt),
		CancelledAt:          cloneTimePtr(o.CancelledAt),
	}
}

// Cart aggregates the mutable pre-order state for a consumer. It is owned by
// the session that initiates checkout and cleared only after a fully
// successful checkout or an explicit user action.
type Cart struct {
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart.
type CartItem struct {
	ProductID   string
	ProductName string
	Unit        string
	ImageURL    string
	FarmerID    string
	FarmerName  string
	FarmName    string
	Quantity    int
	UnitPrice   decimal.Decimal
	AddedAt     time.Time
}

// PaymentAttempt is the outcome of one simulated gateway interaction. It is
// consumed immediately by the checkout flow and never persisted on its own.
type PaymentAttempt struct {
	OrderID       string
	Method        PaymentMethod
	Success       bool
	TransactionID string
	ErrorMessage  string
}

// PaymentRecord stores a settled gateway attempt underneath an order document.
type PaymentRecord struct {
	ID            string
	OrderID       string
	Method        PaymentMethod
	Status        PaymentStatus
	Amount        decimal.Decimal
	TransactionID string
	Message       string
	CreatedAt     time.Time
}

// PaymentMethodInfo carries the display metadata served by the
// payment-methods endpoint.
type PaymentMethodInfo struct {
	Method      PaymentMethod
	Label       string
	Description string
	Enabled     bool
}

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	cloned := *addr
	return &cloned
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}
