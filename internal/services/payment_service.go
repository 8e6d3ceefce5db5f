package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/payments"
	"github.com/harvestfield/api/internal/repositories"
)

const paymentRecordIDPrefix = "pay_"

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentOrderNotPayable indicates the order is not in a chargeable state.
	ErrPaymentOrderNotPayable = errors.New("payment: order is not payable")
	// ErrPaymentCashNotSimulated indicates a charge was requested for cash on delivery.
	ErrPaymentCashNotSimulated = fmt.Errorf("%w: cash on delivery is settled at delivery", ErrPaymentInvalidInput)
)

// Gateway abstracts the charge backend so tests can stub verdicts.
type Gateway interface {
	Charge(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResult, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      OrderService
	Records     repositories.OrderPaymentRepository
	Gateway     Gateway
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders  OrderService
	records repositories.OrderPaymentRepository
	gateway Gateway
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
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

	return &paymentService{
		orders:  deps.Orders,
		records: deps.Records,
		gateway: deps.Gateway,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Simulate charges a pending order through the simulated gateway. A declined
// charge is a business outcome: the order stays pending and the caller may
// retry with another method.
func (s *paymentService) Simulate(ctx context.Context, cmd SimulatePaymentCommand) (PaymentOutcome, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentOutcome{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	method := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(string(cmd.PaymentMethod))))
	if !domain.ValidPaymentMethod(method) {
		return PaymentOutcome{}, fmt.Errorf("%w: unsupported payment method %q", ErrPaymentInvalidInput, cmd.PaymentMethod)
	}
	if method == domain.PaymentMethodCash {
		return PaymentOutcome{}, ErrPaymentCashNotSimulated
	}

	order, err := s.orders.GetOrder(ctx, cmd.Actor, orderID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return PaymentOutcome{}, fmt.Errorf("%w: order %s is already paid", ErrPaymentOrderNotPayable, orderID)
	}
	if order.Status != domain.OrderStatusPending {
		return PaymentOutcome{}, fmt.Errorf("%w: order %s is %s", ErrPaymentOrderNotPayable, orderID, order.Status)
	}

	result, err := s.gateway.Charge(ctx, payments.ChargeRequest{
		OrderID: order.ID,
		Method:  method,
		Amount:  order.TotalAmount,
		Details: payments.Details{
			CardNumber: cmd.CardNumber,
			CardExpiry: cmd.CardExpiry,
			CardCVV:    cmd.CardCVV,
			CardHolder: cmd.CardHolder,
			UPIID:      cmd.UPIID,
			WalletID:   cmd.WalletID,
		},
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidDetails) || errors.Is(err, payments.ErrUnsupportedMethod) {
			return PaymentOutcome{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
		}
		return PaymentOutcome{}, err
	}

	now := s.clock()

	if !result.Succeeded() {
		s.storeRecord(ctx, domain.PaymentRecord{
			ID:        paymentRecordIDPrefix + s.newID(),
			OrderID:   order.ID,
			Method:    method,
			Status:    domain.PaymentStatusFailed,
			Amount:    order.TotalAmount,
			Message:   result.Message,
			CreatedAt: now,
		})
		s.logger(ctx, "payment.declined", map[string]any{
			"orderId": order.ID,
			"method":  string(method),
			"message": result.Message,
		})
		return PaymentOutcome{
			Success: false,
			Order:   order,
			Message: result.Message,
		}, nil
	}

	paid, err := s.orders.MarkPaid(ctx, MarkOrderPaidCommand{
		OrderID:       order.ID,
		TransactionID: result.TransactionID,
		ActorID:       cmd.Actor.ID,
	})
	if err != nil {
		return PaymentOutcome{}, err
	}

	s.storeRecord(ctx, domain.PaymentRecord{
		ID:            paymentRecordIDPrefix + s.newID(),
		OrderID:       order.ID,
		Method:        method,
		Status:        domain.PaymentStatusPaid,
		Amount:        order.TotalAmount,
		TransactionID: result.TransactionID,
		CreatedAt:     now,
	})

	return PaymentOutcome{
		Success:       true,
		Order:         paid,
		TransactionID: result.TransactionID,
	}, nil
}

// ListMethods returns the supported payment methods with display metadata.
func (s *paymentService) ListMethods(ctx context.Context) []domain.PaymentMethodInfo {
	return []domain.PaymentMethodInfo{
		{Method: domain.PaymentMethodCard, Label: "Credit / Debit Card", Description: "Visa, Mastercard and RuPay cards", Enabled: true},
		{Method: domain.PaymentMethodUPI, Label: "UPI", Description: "Pay with any UPI app", Enabled: true},
		{Method: domain.PaymentMethodWallet, Label: "Wallet", Description: "Pay from your wallet balance", Enabled: true},
		{Method: domain.PaymentMethodCash, Label: "Cash on Delivery", Description: "Pay in cash when your order arrives", Enabled: true},
	}
}

// ListPayments returns the settled attempt records for an order the actor may read.
func (s *paymentService) ListPayments(ctx context.Context, actor domain.Actor, orderID string) ([]domain.PaymentRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	if _, err := s.orders.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	if s.records == nil {
		return nil, nil
	}
	return s.records.List(ctx, orderID)
}

// Record persistence is best effort; the authoritative payment state lives on
// the order document.
func (s *paymentService) storeRecord(ctx context.Context, record domain.PaymentRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.Insert(ctx, record); err != nil {
		s.logger(ctx, "payment.record.store.failed", map[string]any{
			"orderId": record.OrderID,
			"error":   err.Error(),
		})
	}
}
