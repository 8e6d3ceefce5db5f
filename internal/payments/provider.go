package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
)

// Status enumerates the normalised outcomes shared across gateway providers.
type Status string

const (
	// StatusSucceeded indicates the gateway reports the charge as captured.
	StatusSucceeded Status = "succeeded"
	// StatusDeclined indicates the gateway rejected the charge; retrying with
	// another method is allowed.
	StatusDeclined Status = "declined"
)

// ErrUnsupportedMethod is returned when no provider handles the payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported payment method")

// ErrInvalidDetails is wrapped by providers when method-specific details fail
// validation before any charge is attempted.
var ErrInvalidDetails = errors.New("payments: invalid payment details")

// Details carries the method-specific fields submitted at checkout. Only the
// fields relevant to the selected method are populated.
type Details struct {
	CardNumber string
	CardExpiry string
	CardCVV    string
	CardHolder string
	UPIID      string
	WalletID   string
}

// ChargeRequest captures a single gateway charge attempt.
type ChargeRequest struct {
	OrderID string
	Method  domain.PaymentMethod
	Amount  decimal.Decimal
	Details Details
}

// ChargeResult is the normalised gateway verdict.
type ChargeResult struct {
	Status        Status
	TransactionID string
	Message       string
	ProcessedAt   time.Time
}

// Succeeded reports whether the charge settled.
func (r ChargeResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Provider defines the contract gateway adapters implement.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Manager routes charge requests to the provider registered for the payment
// method. Cash never routes anywhere; it is collected at delivery, not charged.
type Manager struct {
	providers map[domain.PaymentMethod]Provider
}

// NewManager constructs a Manager over the supplied per-method providers.
func NewManager(providers map[domain.PaymentMethod]Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[domain.PaymentMethod]Provider, len(providers))
	for method, provider := range providers {
		key := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(string(method))))
		if key == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for method %q", method)
		}
		if key == domain.PaymentMethodCash {
			return nil, errors.New("payments: cash cannot be routed to a gateway")
		}
		copyMap[key] = provider
	}
	return &Manager{providers: copyMap}, nil
}

// Charge delegates to the provider registered for the request method.
func (m *Manager) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if m == nil || len(m.providers) == 0 {
		return ChargeResult{}, errors.New("payments: manager is not initialised")
	}
	method := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(string(req.Method))))
	if method == domain.PaymentMethodCash {
		return ChargeResult{}, fmt.Errorf("%w: cash is collected at delivery", ErrUnsupportedMethod)
	}
	provider, ok := m.providers[method]
	if !ok {
		return ChargeResult{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	req.Method = method
	return provider.Charge(ctx, req)
}
