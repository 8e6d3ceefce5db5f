package storefront

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	domain "github.com/harvestfield/api/internal/domain"
)

// Pacing guarantees for the checkout UI. Each phase stays on screen for at
// least its minimum regardless of how quickly the gateway answered; a
// declined charge is held a second longer than a success so the shopper
// reads the reason.
const (
	processingDisplayMinimum = 2 * time.Second
	successDisplayMinimum    = 2 * time.Second
	failureDisplayMinimum    = 3 * time.Second
)

// Phase identifies a checkout presentation stage reported to the observer.
type Phase string

const (
	PhaseProcessing Phase = "processing"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// defaultPaymentMethods is the catalog shown when the methods endpoint is
// unreachable. Checkout still works against it.
var defaultPaymentMethods = []PaymentMethod{
	{Method: MethodCard, Label: "Credit / Debit Card", Enabled: true},
	{Method: MethodUPI, Label: "UPI", Enabled: true},
	{Method: MethodWallet, Label: "Wallet", Enabled: true},
	{Method: MethodCash, Label: "Cash on Delivery", Enabled: true},
}

// Checkout drives the storefront purchase pipeline against a Client. The
// pipeline is strictly sequential: validate, create the order, charge it,
// then clear the cart. The cart survives any failure so the shopper can
// retry without rebuilding it.
type Checkout struct {
	client *Client

	now     func() time.Time
	randInt func(n int) int
	pace    func(ctx context.Context, d time.Duration) error
	observe func(orderID string, phase Phase)

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// CheckoutOption adjusts optional checkout behaviour.
type CheckoutOption func(*Checkout)

// WithClock overrides the time source used for pacing and fallback numbers.
func WithClock(now func() time.Time) CheckoutOption {
	return func(c *Checkout) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRand overrides the random source for fallback order numbers.
func WithRand(randInt func(n int) int) CheckoutOption {
	return func(c *Checkout) {
		if randInt != nil {
			c.randInt = randInt
		}
	}
}

// WithPacer replaces the sleep used to hold presentation phases on screen.
// Tests inject a no-op pacer to run the pipeline at full speed.
func WithPacer(pace func(ctx context.Context, d time.Duration) error) CheckoutOption {
	return func(c *Checkout) {
		if pace != nil {
			c.pace = pace
		}
	}
}

// WithPhaseObserver registers a callback invoked as the pipeline moves
// between presentation phases.
func WithPhaseObserver(observe func(orderID string, phase Phase)) CheckoutOption {
	return func(c *Checkout) {
		if observe != nil {
			c.observe = observe
		}
	}
}

// NewCheckout builds a checkout pipeline over client.
func NewCheckout(client *Client, opts ...CheckoutOption) (*Checkout, error) {
	if client == nil {
		return nil, &Error{Kind: KindValidation, Message: "client is required"}
	}
	c := &Checkout{
		client:   client,
		now:      time.Now,
		randInt:  rand.Intn,
		observe:  func(string, Phase) {},
		inFlight: make(map[string]struct{}),
	}
	c.pace = func(ctx context.Context, d time.Duration) error {
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
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CheckoutInput describes one purchase attempt.
type CheckoutInput struct {
	ConsumerName         string
	Items                []CartItem
	ShippingAddress      Address
	PaymentMethod        string
	PaymentDetails       PaymentDetails
	DeliveryInstructions string
	ConsumerNotes        string
}

// CheckoutResult reports how the pipeline ended. A declined charge is a
// completed checkout with Paid false; the order stays pending for retry.
type CheckoutResult struct {
	Order          Order
	Paid           bool
	CashOnDelivery bool
	TransactionID  string
	DeclineMessage string
	CartCleared    bool
}

// Run executes the full checkout pipeline. Steps are never reordered or
// retried: any error aborts the remaining steps and the cart is cleared
// only after the order exists and, for online methods, the charge settled.
func (c *Checkout) Run(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	if err := c.validate(input); err != nil {
		return CheckoutResult{}, err
	}

	order, err := c.client.CreateOrder(ctx, CreateOrderInput{
		ConsumerName:         input.ConsumerName,
		Items:                input.Items,
		ShippingAddress:      input.ShippingAddress,
		PaymentMethod:        input.PaymentMethod,
		DeliveryInstructions: input.DeliveryInstructions,
		ConsumerNotes:        input.ConsumerNotes,
		OrderNumber:          c.fallbackOrderNumber(),
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	if strings.EqualFold(strings.TrimSpace(input.PaymentMethod), MethodCash) {
		result := CheckoutResult{Order: order, CashOnDelivery: true}
		if err := c.client.ClearCart(ctx); err == nil {
			result.CartCleared = true
		}
		return result, nil
	}

	c.observe(order.ID, PhaseProcessing)
	started := c.now()
	sim, err := c.client.SimulatePayment(ctx, order.ID, input.PaymentMethod, input.PaymentDetails)
	if err != nil {
		return CheckoutResult{Order: order}, err
	}
	if holdErr := c.holdPhase(ctx, started, processingDisplayMinimum); holdErr != nil {
		return CheckoutResult{Order: order}, holdErr
	}

	result := CheckoutResult{Order: order}
	if sim.Order != nil {
		result.Order = *sim.Order
	}
	outcomeMinimum := failureDisplayMinimum
	if sim.Success {
		c.observe(order.ID, PhaseSuccess)
		outcomeMinimum = successDisplayMinimum
		result.Paid = true
		result.TransactionID = sim.TransactionID
		if err := c.client.ClearCart(ctx); err == nil {
			result.CartCleared = true
		}
	} else {
		c.observe(order.ID, PhaseFailed)
		result.DeclineMessage = sim.Message
	}
	if holdErr := c.pace(ctx, outcomeMinimum); holdErr != nil {
		return result, holdErr
	}
	return result, nil
}

func (c *Checkout) validate(input CheckoutInput) error {
	if len(input.Items) == 0 {
		return &Error{Kind: KindValidation, Message: "cart is empty"}
	}
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return &Error{Kind: KindValidation, Message: "cart contains an invalid line"}
		}
	}
	if !input.ShippingAddress.complete() {
		return &Error{Kind: KindValidation, Message: "shipping address is incomplete"}
	}
	if !validMethod(input.PaymentMethod) {
		return &Error{Kind: KindValidation, Message: "unsupported payment method: " + input.PaymentMethod}
	}
	return nil
}

// fallbackOrderNumber generates a display-only number used until the server
// assigns the authoritative sequence.
func (c *Checkout) fallbackOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%d", c.now().UnixMilli(), c.randInt(1000))
}

// holdPhase keeps the current phase on screen until minimum has elapsed
// since started, counting time already spent waiting on the network.
func (c *Checkout) holdPhase(ctx context.Context, started time.Time, minimum time.Duration) error {
	remaining := minimum - c.now().Sub(started)
	if remaining <= 0 {
		return nil
	}
	return c.pace(ctx, remaining)
}

// RetryPayment re-runs the simulated charge for an order whose first charge
// was declined, with the same pacing as the original attempt.
func (c *Checkout) RetryPayment(ctx context.Context, orderID, method string, details PaymentDetails) (CheckoutResult, error) {
	if !validMethod(method) || strings.EqualFold(method, MethodCash) {
		return CheckoutResult{}, &Error{Kind: KindValidation, Message: "unsupported payment method: " + method}
	}
	c.observe(orderID, PhaseProcessing)
	started := c.now()
	sim, err := c.client.SimulatePayment(ctx, orderID, method, details)
	if err != nil {
		return CheckoutResult{}, err
	}
	if holdErr := c.holdPhase(ctx, started, processingDisplayMinimum); holdErr != nil {
		return CheckoutResult{}, holdErr
	}
	result := CheckoutResult{}
	if sim.Order != nil {
		result.Order = *sim.Order
	}
	outcomeMinimum := failureDisplayMinimum
	if sim.Success {
		c.observe(orderID, PhaseSuccess)
		outcomeMinimum = successDisplayMinimum
		result.Paid = true
		result.TransactionID = sim.TransactionID
		if err := c.client.ClearCart(ctx); err == nil {
			result.CartCleared = true
		}
	} else {
		c.observe(orderID, PhaseFailed)
		result.DeclineMessage = sim.Message
	}
	if holdErr := c.pace(ctx, outcomeMinimum); holdErr != nil {
		return result, holdErr
	}
	return result, nil
}

// UpdateStatus transitions an order after refreshing its current state, so
// the server can reject the move if someone else got there first. Only one
// mutation per order may be in flight at a time.
func (c *Checkout) UpdateStatus(ctx context.Context, orderID, target string) (Order, error) {
	release, err := c.acquire(orderID)
	if err != nil {
		return Order{}, err
	}
	defer release()

	current, err := c.client.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	from := domain.OrderStatus(current.Status)
	to := domain.OrderStatus(strings.TrimSpace(strings.ToLower(target)))
	if !domain.CanTransition(from, to) {
		return Order{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("order cannot move from %s to %s", current.Status, target)}
	}
	return c.client.UpdateOrderStatus(ctx, orderID, target, current.Status)
}

// Cancel cancels an order under the same in-flight guard as UpdateStatus.
func (c *Checkout) Cancel(ctx context.Context, orderID, reason string) (Order, error) {
	release, err := c.acquire(orderID)
	if err != nil {
		return Order{}, err
	}
	defer release()

	current, err := c.client.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !domain.Cancellable(domain.OrderStatus(current.Status)) {
		return Order{}, &Error{Kind: KindValidation, Message: "order can no longer be cancelled"}
	}
	return c.client.CancelOrder(ctx, orderID, reason, current.Status)
}

func (c *Checkout) acquire(orderID string) (func(), error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, &Error{Kind: KindValidation, Message: "order id is required"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[orderID]; busy {
		return nil, &Error{Kind: KindValidation, Message: "another update for this order is in flight"}
	}
	c.inFlight[orderID] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inFlight, orderID)
		c.mu.Unlock()
	}, nil
}

// PaymentMethods returns the server's method catalog, falling back to the
// built-in list when the endpoint is unavailable.
func (c *Checkout) PaymentMethods(ctx context.Context) []PaymentMethod {
	methods, err := c.client.PaymentMethods(ctx)
	if err != nil || len(methods) == 0 {
		fallback := make([]PaymentMethod, len(defaultPaymentMethods))
		copy(fallback, defaultPaymentMethods)
		return fallback
	}
	return methods
}
