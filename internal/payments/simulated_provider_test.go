package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
)

func newTestProvider(t *testing.T, cfg SimulatedProviderConfig) *SimulatedProvider {
	t.Helper()
	if cfg.Sleep == nil {
		cfg.Sleep = func(context.Context, time.Duration) error { return nil }
	}
	provider, err := NewSimulatedProvider(cfg)
	if err != nil {
		t.Fatalf("new simulated provider: %v", err)
	}
	return provider
}

func validCardRequest() ChargeRequest {
	return ChargeRequest{
		OrderID: "order-1",
		Method:  domain.PaymentMethodCard,
		Amount:  decimal.NewFromInt(100),
		Details: Details{
			CardNumber: "4111111111111111",
			CardExpiry: "12/30",
			CardCVV:    "123",
			CardHolder: "Jane Doe",
		},
	}
}

func TestSimulatedProviderChargeSucceeds(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.0 },
	})

	result, err := provider.Charge(context.Background(), validCardRequest())
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got status %q message %q", result.Status, result.Message)
	}
	if !strings.HasPrefix(result.TransactionID, "txn_") {
		t.Fatalf("expected txn_ prefixed transaction id, got %q", result.TransactionID)
	}
}

func TestSimulatedProviderChargeDeclines(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.99 },
	})

	result, err := provider.Charge(context.Background(), validCardRequest())
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Succeeded() {
		t.Fatal("expected decline")
	}
	if result.Message != "card declined" {
		t.Fatalf("unexpected decline message %q", result.Message)
	}
	if result.TransactionID != "" {
		t.Fatalf("declined charge must not carry a transaction id, got %q", result.TransactionID)
	}
}

func TestSimulatedProviderDeclineCardAlwaysDeclines(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.0 },
	})

	req := validCardRequest()
	req.Details.CardNumber = declineCardNumber

	result, err := provider.Charge(context.Background(), req)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Succeeded() {
		t.Fatal("decline test card must never succeed")
	}
}

func TestSimulatedProviderDeclineCardMatchesSpacedInput(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.0 },
	})

	req := validCardRequest()
	req.Details.CardNumber = "4000 0000 0000 0002"

	result, err := provider.Charge(context.Background(), req)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Succeeded() {
		t.Fatal("spaced decline test card must never succeed")
	}
	if result.Message != "card declined" {
		t.Fatalf("unexpected decline message %q", result.Message)
	}
}

func TestSimulatedProviderValidatesDetails(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.0 },
	})

	cases := []struct {
		name   string
		mutate func(*ChargeRequest)
	}{
		{"short card number", func(r *ChargeRequest) { r.Details.CardNumber = "4111" }},
		{"bad expiry", func(r *ChargeRequest) { r.Details.CardExpiry = "13/30" }},
		{"bad cvv", func(r *ChargeRequest) { r.Details.CardCVV = "12" }},
		{"missing holder", func(r *ChargeRequest) { r.Details.CardHolder = "  " }},
		{"zero amount", func(r *ChargeRequest) { r.Amount = decimal.Zero }},
		{"missing order id", func(r *ChargeRequest) { r.OrderID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCardRequest()
			tc.mutate(&req)
			if _, err := provider.Charge(context.Background(), req); !errors.Is(err, ErrInvalidDetails) {
				t.Fatalf("expected ErrInvalidDetails, got %v", err)
			}
		})
	}
}

func TestSimulatedProviderUPIAndWallet(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{
		Rand: func() float64 { return 0.0 },
	})

	upiReq := ChargeRequest{
		OrderID: "order-2",
		Method:  domain.PaymentMethodUPI,
		Amount:  decimal.NewFromInt(50),
		Details: Details{UPIID: "jane@upi"},
	}
	if result, err := provider.Charge(context.Background(), upiReq); err != nil || !result.Succeeded() {
		t.Fatalf("upi charge: result=%+v err=%v", result, err)
	}

	upiReq.Details.UPIID = "not-a-vpa"
	if _, err := provider.Charge(context.Background(), upiReq); !errors.Is(err, ErrInvalidDetails) {
		t.Fatalf("expected ErrInvalidDetails for malformed upi id, got %v", err)
	}

	walletReq := ChargeRequest{
		OrderID: "order-3",
		Method:  domain.PaymentMethodWallet,
		Amount:  decimal.NewFromInt(50),
		Details: Details{WalletID: "wallet-789"},
	}
	if result, err := provider.Charge(context.Background(), walletReq); err != nil || !result.Succeeded() {
		t.Fatalf("wallet charge: result=%+v err=%v", result, err)
	}
}

func TestSimulatedProviderRejectsCash(t *testing.T) {
	provider := newTestProvider(t, SimulatedProviderConfig{})

	req := ChargeRequest{
		OrderID: "order-4",
		Method:  domain.PaymentMethodCash,
		Amount:  decimal.NewFromInt(10),
	}
	if _, err := provider.Charge(context.Background(), req); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod for cash, got %v", err)
	}
}

func TestSimulatedProviderSleepReceivesDelay(t *testing.T) {
	var slept time.Duration
	provider := newTestProvider(t, SimulatedProviderConfig{
		ProcessingDelay: 5 * time.Second,
		Rand:            func() float64 { return 0.0 },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		},
	})

	if _, err := provider.Charge(context.Background(), validCardRequest()); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if slept != 5*time.Second {
		t.Fatalf("expected 5s delay handed to sleeper, got %v", slept)
	}
}

func TestManagerRoutesByMethod(t *testing.T) {
	card := &stubChargeProvider{result: ChargeResult{Status: StatusSucceeded, TransactionID: "txn_card"}}
	upi := &stubChargeProvider{result: ChargeResult{Status: StatusDeclined, Message: "upi payment failed"}}

	mgr, err := NewManager(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodCard: card,
		domain.PaymentMethodUPI:  upi,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	result, err := mgr.Charge(context.Background(), ChargeRequest{OrderID: "o", Method: domain.PaymentMethodCard, Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.TransactionID != "txn_card" {
		t.Fatalf("expected card provider result, got %+v", result)
	}
	if !card.called {
		t.Fatal("card provider was not invoked")
	}

	if _, err := mgr.Charge(context.Background(), ChargeRequest{OrderID: "o", Method: domain.PaymentMethodWallet}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod for unrouted method, got %v", err)
	}
	if _, err := mgr.Charge(context.Background(), ChargeRequest{OrderID: "o", Method: domain.PaymentMethodCash}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod for cash, got %v", err)
	}
}

func TestManagerRejectsCashRegistration(t *testing.T) {
	_, err := NewManager(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodCash: &stubChargeProvider{},
	})
	if err == nil {
		t.Fatal("expected error registering cash provider")
	}
}

type stubChargeProvider struct {
	called bool
	result ChargeResult
	err    error
}

func (s *stubChargeProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	s.called = true
	return s.result, s.err
}
