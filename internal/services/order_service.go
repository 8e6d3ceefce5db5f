package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/platform/pagination"
	"github.com/harvestfield/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventPaid          = "order.paid"

	orderIDPrefix       = "ord_"
	orderNumberSequence = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrEmptyCart indicates a checkout was submitted with no items.
	ErrEmptyCart = fmt.Errorf("%w: cart must contain at least one item", ErrOrderInvalidInput)
	// ErrInvalidAddress indicates the delivery address is missing required fields.
	ErrInvalidAddress = fmt.Errorf("%w: address is missing required fields", ErrOrderInvalidInput)
	// ErrUnsupportedPaymentMethod indicates the payment method is outside the enum.
	ErrUnsupportedPaymentMethod = fmt.Errorf("%w: unsupported payment method", ErrOrderInvalidInput)
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor may not act on this order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// Free-text fields from checkout forms are stored verbatim apart from markup.
var notesPolicy = bluemonday.StrictPolicy()

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	if len(cmd.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	consumerID := strings.TrimSpace(cmd.Actor.ID)
	if consumerID == "" {
		return domain.Order{}, fmt.Errorf("%w: consumer id is required", ErrOrderInvalidInput)
	}
	if !cmd.Address.Complete() {
		return domain.Order{}, ErrInvalidAddress
	}
	if !domain.ValidPaymentMethod(cmd.PaymentMethod) {
		return domain.Order{}, ErrUnsupportedPaymentMethod
	}
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: item %q quantity must be positive", ErrOrderInvalidInput, item.ProductID)
		}
		if item.UnitPrice.Sign() < 0 {
			return domain.Order{}, fmt.Errorf("%w: item %q unit price cannot be negative", ErrOrderInvalidInput, item.ProductID)
		}
	}

	now := s.now()
	items := buildOrderLineItems(cmd.Items)
	totals := domain.PriceOrderItems(items)
	address := cmd.Address

	order := domain.Order{
		ID:                   orderIDPrefix + s.newID(),
		ConsumerID:           consumerID,
		ConsumerName:         strings.TrimSpace(cmd.ConsumerName),
		Items:                items,
		Subtotal:             totals.Subtotal,
		TaxAmount:            totals.Tax,
		TotalAmount:          totals.Total,
		ShippingAddress:      &address,
		PaymentMethod:        cmd.PaymentMethod,
		Status:               domain.OrderStatusPending,
		PaymentStatus:        domain.PaymentStatusPending,
		DeliveryInstructions: sanitizeFreeText(cmd.DeliveryInstructions),
		ConsumerNotes:        sanitizeFreeText(cmd.ConsumerNotes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		fallback := strings.TrimSpace(cmd.ClientOrderNumber)
		if fallback == "" {
			return domain.Order{}, err
		}
		s.logger(ctx, "order.number.fallback", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		number = fallback
	}
	order.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		ActorID:       consumerID,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[domain.Order], error) {
	filter := repositories.OrderListFilter{
		Status:     cmd.Status,
		DateRange:  cmd.DateRange,
		Pagination: cmd.Pagination,
	}
	filter.Pagination.PageSize = pagination.Normalize(cmd.Pagination.PageSize)
	switch cmd.Actor.Role {
	case domain.RoleConsumer:
		if strings.TrimSpace(cmd.Actor.ID) == "" {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		filter.ConsumerID = cmd.Actor.ID
	case domain.RoleFarmer:
		if strings.TrimSpace(cmd.Actor.ID) == "" {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		filter.FarmerID = cmd.Actor.ID
	case domain.RoleAdmin:
		// unscoped
	default:
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: unknown role %q", ErrOrderInvalidInput, cmd.Actor.Role)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}

	orders := make([]domain.Order, 0, len(page.Items))
	for _, raw := range page.Items {
		orders = append(orders, domain.Normalize(raw))
	}
	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: page.NextPageToken,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	raw, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	order := domain.Normalize(raw)

	if !actorMayRead(actor, order) {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !domain.ValidOrderStatus(target) {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}
	if target == domain.OrderStatusCancelled {
		return s.Cancel(ctx, CancelOrderCommand{
			OrderID:        orderID,
			Actor:          cmd.Actor,
			Reason:         cmd.Reason,
			ExpectedStatus: cmd.ExpectedStatus,
		})
	}

	var (
		updated    domain.Order
		prevStatus domain.OrderStatus
	)
	now := s.now()

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		raw, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order := domain.Normalize(raw)
		prevStatus = order.Status

		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
		}
		if !domain.CanTransition(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
		}
		if !domain.AuthorizeTransition(cmd.Actor, order, target) {
			return fmt.Errorf("%w: role %s may not move order %s to %s", ErrOrderForbidden, cmd.Actor.Role, orderID, target)
		}

		order.Status = target
		order.UpdatedAt = now
		applyStatusTimestamps(&order, target, now)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	metadata := map[string]any{}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(updated.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return updated, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		updated    domain.Order
		prevStatus domain.OrderStatus
	)
	now := s.now()
	reason := strings.TrimSpace(cmd.Reason)

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		raw, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order := domain.Normalize(raw)
		prevStatus = order.Status

		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
		}
		if !domain.Cancellable(order.Status) {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
		}
		if !domain.AuthorizeTransition(cmd.Actor, order, domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: role %s may not cancel order %s", ErrOrderForbidden, cmd.Actor.Role, orderID)
		}

		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = now
		order.CancelledAt = &now
		if reason != "" {
			order.CancelReason = &reason
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(updated.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return updated, nil
}

// MarkPaid settles the order exactly once. A second call for an already-paid
// order returns the stored order unchanged so gateway retries stay idempotent.
func (s *orderService) MarkPaid(ctx context.Context, cmd MarkOrderPaidCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	transactionID := strings.TrimSpace(cmd.TransactionID)
	if transactionID == "" {
		return domain.Order{}, fmt.Errorf("%w: transaction id is required", ErrOrderInvalidInput)
	}

	var updated domain.Order
	now := s.now()
	alreadyPaid := false

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		raw, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order := domain.Normalize(raw)

		if order.PaymentStatus == domain.PaymentStatusPaid {
			alreadyPaid = true
			updated = order
			return nil
		}

		order.PaymentStatus = domain.PaymentStatusPaid
		order.TransactionID = &transactionID
		order.UpdatedAt = now
		if order.PaidAt == nil {
			order.PaidAt = &now
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if !alreadyPaid {
		s.publishEvent(ctx, OrderEvent{
			Type:          orderEventPaid,
			OrderID:       updated.ID,
			OrderNumber:   updated.OrderNumber,
			CurrentStatus: string(updated.Status),
			ActorID:       cmd.ActorID,
			OccurredAt:    now,
			Metadata:      map[string]any{"transactionId": transactionID},
		})
	}

	return updated, nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	if s.counters == nil {
		return "", errors.New("order service: counter repository not configured")
	}
	seq, err := s.counters.Next(ctx, orderNumberSequence, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func actorMayRead(actor domain.Actor, order domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleConsumer:
		return actor.ID != "" && actor.ID == order.ConsumerID
	case domain.RoleFarmer:
		return order.OwnedByFarmer(actor.ID)
	}
	return false
}

func applyStatusTimestamps(order *domain.Order, status domain.OrderStatus, now time.Time) {
	switch status {
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

func buildOrderLineItems(items []domain.CartItem) []domain.OrderLineItem {
	lines := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderLineItem{
			Product: domain.ProductRef{
				ID:       item.ProductID,
				Name:     item.ProductName,
				Unit:     item.Unit,
				ImageURL: item.ImageURL,
			},
			Farmer: domain.FarmerRef{
				ID:       item.FarmerID,
				Name:     item.FarmerName,
				FarmName: item.FarmName,
			},
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines
}

func sanitizeFreeText(value string) string {
	return strings.TrimSpace(notesPolicy.Sanitize(value))
}
