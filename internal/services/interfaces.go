package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/repositories"
)

// OrderService encapsulates order read/write flows including status
// transitions and cancellation.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[domain.Order], error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (domain.Order, error)
}

// PaymentService runs simulated gateway charges against pending orders and
// serves payment metadata.
type PaymentService interface {
	Simulate(ctx context.Context, cmd SimulatePaymentCommand) (PaymentOutcome, error)
	ListMethods(ctx context.Context) []domain.PaymentMethodInfo
	ListPayments(ctx context.Context, actor domain.Actor, orderID string) ([]domain.PaymentRecord, error)
}

// CartService manages mutable cart state per user.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (domain.Cart, error)
	AddOrUpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (domain.Cart, error)
	Estimate(ctx context.Context, userID string) (domain.Totals, error)
	ClearCart(ctx context.Context, userID string) error
}

// SystemService aggregates utility endpoints (health checks, build metadata).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SystemHealthReport aliases the domain health report for handler consumption.
type SystemHealthReport = domain.SystemHealthReport

// OrderListFilter narrows repository listings; re-exported for handlers.
type OrderListFilter = repositories.OrderListFilter

// CreateOrderCommand captures a checkout submission.
type CreateOrderCommand struct {
	Actor                domain.Actor
	ConsumerName         string
	Items                []domain.CartItem
	Address              domain.Address
	PaymentMethod        domain.PaymentMethod
	DeliveryInstructions string
	ConsumerNotes        string
	// ClientOrderNumber is the fallback number generated client-side. It is
	// only used when the counter backend cannot issue an authoritative one.
	ClientOrderNumber string
}

// ListOrdersCommand scopes a listing to what the actor may see.
type ListOrdersCommand struct {
	Actor      domain.Actor
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// OrderStatusTransitionCommand advances an order along the fulfillment chain.
type OrderStatusTransitionCommand struct {
	OrderID        string
	Actor          domain.Actor
	TargetStatus   domain.OrderStatus
	Reason         string
	ExpectedStatus *domain.OrderStatus
}

// CancelOrderCommand cancels an order with an optional reason.
type CancelOrderCommand struct {
	OrderID        string
	Actor          domain.Actor
	Reason         string
	ExpectedStatus *domain.OrderStatus
}

// MarkOrderPaidCommand settles an order after a successful gateway charge.
type MarkOrderPaidCommand struct {
	OrderID       string
	TransactionID string
	ActorID       string
}

// SimulatePaymentCommand submits a charge attempt for a pending order.
type SimulatePaymentCommand struct {
	Actor         domain.Actor
	OrderID       string
	PaymentMethod domain.PaymentMethod
	CardNumber    string
	CardExpiry    string
	CardCVV       string
	CardHolder    string
	UPIID         string
	WalletID      string
}

// PaymentOutcome is the checkout-facing verdict of a simulated charge.
type PaymentOutcome struct {
	Success       bool
	Order         domain.Order
	TransactionID string
	Message       string
}

// UpsertCartItemCommand adds a product to the cart or updates its quantity.
type UpsertCartItemCommand struct {
	UserID      string
	ProductID   string
	ProductName string
	Unit        string
	ImageURL    string
	FarmerID    string
	FarmerName  string
	FarmName    string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// RemoveCartItemCommand removes a product from the cart.
type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}
