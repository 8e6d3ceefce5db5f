package payments

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/harvestfield/api/internal/domain"
)

const (
	defaultSuccessRate     = 0.9
	defaultProcessingDelay = 2 * time.Second

	// declineCardNumber always produces a declined verdict so tests and demo
	// environments can force the failure path.
	declineCardNumber = "4000000000000002"
)

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{13,19}$`)
	cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cardCVVPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
	upiIDPattern      = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,}@[a-zA-Z]{2,}$`)
)

// SimulatedLogger defines the logging contract for simulated gateway operations.
type SimulatedLogger func(ctx context.Context, event string, fields map[string]any)

// SimulatedProviderConfig configures the simulated gateway.
type SimulatedProviderConfig struct {
	// SuccessRate is the probability a valid charge succeeds, in [0, 1].
	// Zero means "use the default" of 0.9.
	SuccessRate float64
	// ProcessingDelay is held before the verdict is produced, imitating a
	// real gateway round trip. Zero means "use the default" of 2s.
	ProcessingDelay time.Duration
	// Rand returns a uniform float in [0, 1). Injectable for tests.
	Rand func() float64
	// Sleep waits for the given duration or until the context is done.
	// Injectable so tests skip the delay entirely.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger SimulatedLogger
	Clock  func() time.Time
}

// SimulatedProvider is a gateway adapter that produces probabilistic verdicts
// without contacting a real payment processor.
type SimulatedProvider struct {
	successRate float64
	delay       time.Duration
	random      func() float64
	sleep       func(ctx context.Context, d time.Duration) error
	logger      SimulatedLogger
	clock       func() time.Time
}

// NewSimulatedProvider constructs the simulated gateway.
func NewSimulatedProvider(cfg SimulatedProviderConfig) (*SimulatedProvider, error) {
	rate := cfg.SuccessRate
	if rate == 0 {
		rate = defaultSuccessRate
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("payments: success rate must be within [0, 1], got %v", rate)
	}

	delay := cfg.ProcessingDelay
	if delay == 0 {
		delay = defaultProcessingDelay
	}
	if delay < 0 {
		delay = 0
	}

	random := cfg.Rand
	if random == nil {
		source := rand.New(rand.NewSource(time.Now().UnixNano()))
		random = source.Float64
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &SimulatedProvider{
		successRate: rate,
		delay:       delay,
		random:      random,
		sleep:       sleep,
		logger:      logger,
		clock:       clock,
	}, nil
}

var _ Provider = (*SimulatedProvider)(nil)

// Charge validates the method details, holds the configured processing delay
// and returns a probabilistic verdict. A declined charge is a normal result,
// not an error.
func (p *SimulatedProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if p == nil {
		return ChargeResult{}, errors.New("payments: provider is nil")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return ChargeResult{}, fmt.Errorf("%w: order id is required", ErrInvalidDetails)
	}
	if req.Amount.Sign() <= 0 {
		return ChargeResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidDetails)
	}
	if err := validateDetails(req.Method, req.Details); err != nil {
		return ChargeResult{}, err
	}

	if err := p.sleep(ctx, p.delay); err != nil {
		return ChargeResult{}, err
	}

	now := p.clock()

	if req.Method == domain.PaymentMethodCard && normalizeCardNumber(req.Details.CardNumber) == declineCardNumber {
		p.logger(ctx, "charge.declined", map[string]any{"orderId": orderID, "method": string(req.Method), "reason": "test decline card"})
		return ChargeResult{
			Status:      StatusDeclined,
			Message:     "card declined",
			ProcessedAt: now,
		}, nil
	}

	if p.random() >= p.successRate {
		p.logger(ctx, "charge.declined", map[string]any{"orderId": orderID, "method": string(req.Method)})
		return ChargeResult{
			Status:      StatusDeclined,
			Message:     declineMessage(req.Method),
			ProcessedAt: now,
		}, nil
	}

	transactionID := "txn_" + ulid.Make().String()
	p.logger(ctx, "charge.succeeded", map[string]any{"orderId": orderID, "method": string(req.Method), "transactionId": transactionID})
	return ChargeResult{
		Status:        StatusSucceeded,
		TransactionID: transactionID,
		ProcessedAt:   now,
	}, nil
}

// normalizeCardNumber strips the grouping spaces shoppers type into card
// fields so validation and the decline match see the same digits.
func normalizeCardNumber(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), " ", "")
}

func validateDetails(method domain.PaymentMethod, details Details) error {
	switch method {
	case domain.PaymentMethodCard:
		number := normalizeCardNumber(details.CardNumber)
		if !cardNumberPattern.MatchString(number) {
			return fmt.Errorf("%w: card number must be 13-19 digits", ErrInvalidDetails)
		}
		if !cardExpiryPattern.MatchString(strings.TrimSpace(details.CardExpiry)) {
			return fmt.Errorf("%w: card expiry must be MM/YY", ErrInvalidDetails)
		}
		if !cardCVVPattern.MatchString(strings.TrimSpace(details.CardCVV)) {
			return fmt.Errorf("%w: card cvv must be 3-4 digits", ErrInvalidDetails)
		}
		if strings.TrimSpace(details.CardHolder) == "" {
			return fmt.Errorf("%w: card holder name is required", ErrInvalidDetails)
		}
		return nil
	case domain.PaymentMethodUPI:
		if !upiIDPattern.MatchString(strings.TrimSpace(details.UPIID)) {
			return fmt.Errorf("%w: upi id must look like name@bank", ErrInvalidDetails)
		}
		return nil
	case domain.PaymentMethodWallet:
		if strings.TrimSpace(details.WalletID) == "" {
			return fmt.Errorf("%w: wallet id is required", ErrInvalidDetails)
		}
		return nil
	case domain.PaymentMethodCash:
		return fmt.Errorf("%w: cash is collected at delivery", ErrUnsupportedMethod)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

func declineMessage(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodCard:
		return "card declined"
	case domain.PaymentMethodUPI:
		return "upi payment failed"
	case domain.PaymentMethodWallet:
		return "wallet payment failed"
	default:
		return "payment failed"
	}
}
