package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/platform/auth"
	"github.com/harvestfield/api/internal/services"
)

func testPrice(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse price %q: %v", raw, err)
	}
	return value
}

func testOrder() domain.Order {
	created := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:           "ord_0001",
		OrderNumber:  "FM-2025-000001",
		ConsumerID:   "consumer-1",
		ConsumerName: "Asha Rao",
		Items: []domain.OrderLineItem{
			{
				Product:   domain.ProductRef{ID: "prod-1", Name: "Tomatoes", Unit: "kg"},
				Farmer:    domain.FarmerRef{ID: "farmer-1", Name: "Dev Patel", FarmName: "Green Acres"},
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("10.00"),
			},
		},
		Subtotal:      decimal.RequireFromString("20.00"),
		TaxAmount:     decimal.RequireFromString("2.00"),
		TotalAmount:   decimal.RequireFromString("22.00"),
		PaymentMethod: domain.PaymentMethodCard,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

type stubOrderService struct {
	createResult domain.Order
	createErr    error
	createCmd    *services.CreateOrderCommand

	listResult domain.CursorPage[domain.Order]
	listErr    error
	listCmd    *services.ListOrdersCommand

	getResult domain.Order
	getErr    error

	transitionResult domain.Order
	transitionErr    error
	transitionCmd    *services.OrderStatusTransitionCommand

	cancelResult domain.Order
	cancelErr    error
	cancelCmd    *services.CancelOrderCommand
}

func (s *stubOrderService) Create(_ context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	s.createCmd = &cmd
	return s.createResult, s.createErr
}

func (s *stubOrderService) ListOrders(_ context.Context, cmd services.ListOrdersCommand) (domain.CursorPage[domain.Order], error) {
	s.listCmd = &cmd
	return s.listResult, s.listErr
}

func (s *stubOrderService) GetOrder(_ context.Context, _ domain.Actor, _ string) (domain.Order, error) {
	return s.getResult, s.getErr
}

func (s *stubOrderService) TransitionStatus(_ context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
	s.transitionCmd = &cmd
	return s.transitionResult, s.transitionErr
}

func (s *stubOrderService) Cancel(_ context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	s.cancelCmd = &cmd
	return s.cancelResult, s.cancelErr
}

func (s *stubOrderService) MarkPaid(_ context.Context, _ services.MarkOrderPaidCommand) (domain.Order, error) {
	return domain.Order{}, nil
}

type stubPaymentService struct {
	outcome     services.PaymentOutcome
	simulateErr error
	simulateCmd *services.SimulatePaymentCommand

	methods []domain.PaymentMethodInfo

	records  []domain.PaymentRecord
	listErr  error
	listedID string
}

func (s *stubPaymentService) Simulate(_ context.Context, cmd services.SimulatePaymentCommand) (services.PaymentOutcome, error) {
	s.simulateCmd = &cmd
	return s.outcome, s.simulateErr
}

func (s *stubPaymentService) ListMethods(context.Context) []domain.PaymentMethodInfo {
	return s.methods
}

func (s *stubPaymentService) ListPayments(_ context.Context, _ domain.Actor, orderID string) ([]domain.PaymentRecord, error) {
	s.listedID = orderID
	return s.records, s.listErr
}

type stubCartService struct {
	cart       domain.Cart
	err        error
	totals     domain.Totals
	upsertCmd  *services.UpsertCartItemCommand
	removeCmd  *services.RemoveCartItemCommand
	replaced   []domain.CartItem
	cleared    bool
	clearedFor string
}

func (s *stubCartService) GetOrCreateCart(_ context.Context, _ string) (domain.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddOrUpdateItem(_ context.Context, cmd services.UpsertCartItemCommand) (domain.Cart, error) {
	s.upsertCmd = &cmd
	return s.cart, s.err
}

func (s *stubCartService) ReplaceItems(_ context.Context, _ string, items []domain.CartItem) (domain.Cart, error) {
	s.replaced = items
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, cmd services.RemoveCartItemCommand) (domain.Cart, error) {
	s.removeCmd = &cmd
	return s.cart, s.err
}

func (s *stubCartService) Estimate(_ context.Context, _ string) (domain.Totals, error) {
	return s.totals, s.err
}

func (s *stubCartService) ClearCart(_ context.Context, userID string) error {
	s.cleared = true
	s.clearedFor = userID
	return s.err
}

func consumerIdentity() *auth.Identity {
	return &auth.Identity{UserID: "consumer-1", Role: auth.RoleConsumer, Name: "Asha Rao"}
}

func authedRequest(t *testing.T, method, target, body string, identity *auth.Identity) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}
