package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// checkoutServer is a scripted stand-in for the order API that records the
// sequence of calls a pipeline makes.
type checkoutServer struct {
	mu            sync.Mutex
	calls         []string
	declineCharge bool
	failMethods   bool
	blockGet      chan struct{}
}

func (s *checkoutServer) record(entry string) {
	s.mu.Lock()
	s.calls = append(s.calls, entry)
	s.mu.Unlock()
}

func (s *checkoutServer) sequence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *checkoutServer) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.record(r.Method + " " + r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode order body: %v", err)
			}
			number, _ := body["orderNumber"].(string)
			if !strings.HasPrefix(number, "ORD-") {
				t.Errorf("fallback number = %q", number)
			}
			method, _ := body["paymentMethod"].(string)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": "ord_0001", "orderNumber": "FM-2026-000001", "consumerId": "consumer-1",
				"items": [], "subtotal": "20.00", "taxAmount": "2.00", "totalAmount": "22.00",
				"paymentMethod": "` + method + `", "status": "pending", "paymentStatus": "pending",
				"createdAt": "2026-08-28T10:00:00Z"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/payments/simulate":
			if s.declineCharge {
				_, _ = w.Write([]byte(`{"success": false, "message": "card declined"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success": true, "transactionId": "TXN-0001",
				"order": {"id": "ord_0001", "orderNumber": "FM-2026-000001", "consumerId": "consumer-1",
				"items": [], "subtotal": "20.00", "taxAmount": "2.00", "totalAmount": "22.00",
				"paymentMethod": "card", "status": "confirmed", "paymentStatus": "paid",
				"transactionId": "TXN-0001", "createdAt": "2026-08-28T10:00:00Z"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/cart":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/payments/methods":
			if s.failMethods {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "internal_error", "message": "catalog unavailable"}`))
				return
			}
			_, _ = w.Write([]byte(`{"methods": [{"method": "card", "label": "Card", "enabled": true}]}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/orders/"):
			if s.blockGet != nil {
				<-s.blockGet
			}
			_, _ = w.Write([]byte(`{"id": "ord_0001", "orderNumber": "FM-2026-000001", "consumerId": "consumer-1",
				"items": [], "subtotal": "20.00", "taxAmount": "2.00", "totalAmount": "22.00",
				"paymentMethod": "card", "status": "confirmed", "paymentStatus": "paid",
				"createdAt": "2026-08-28T10:00:00Z"}`))
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/status"):
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode status body: %v", err)
			}
			if expected, _ := body["expectedStatus"].(string); expected != "confirmed" {
				t.Errorf("expectedStatus = %q", expected)
			}
			_, _ = w.Write([]byte(`{"id": "ord_0001", "orderNumber": "FM-2026-000001", "consumerId": "consumer-1",
				"items": [], "subtotal": "20.00", "taxAmount": "2.00", "totalAmount": "22.00",
				"paymentMethod": "card", "status": "processing", "paymentStatus": "paid",
				"createdAt": "2026-08-28T10:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not_found", "message": "resource not found"}`))
		}
	})
}

func newTestCheckout(t *testing.T, server *checkoutServer, opts ...CheckoutOption) (*Checkout, func()) {
	t.Helper()
	ts := httptest.NewServer(server.handler(t))
	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base := []CheckoutOption{WithPacer(func(context.Context, time.Duration) error { return nil })}
	checkout, err := NewCheckout(client, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewCheckout: %v", err)
	}
	return checkout, ts.Close
}

func checkoutInput(t *testing.T, method string) CheckoutInput {
	t.Helper()
	return CheckoutInput{
		ConsumerName:    "Asha Rao",
		Items:           testItems(t),
		ShippingAddress: testAddress(),
		PaymentMethod:   method,
		PaymentDetails:  PaymentDetails{CardNumber: "4242424242424242", CardExpiry: "12/27", CardCVV: "123"},
	}
}

func TestCheckoutSuccessClearsCartAfterPayment(t *testing.T) {
	server := &checkoutServer{}
	var phases []Phase
	checkout, done := newTestCheckout(t, server, WithPhaseObserver(func(_ string, phase Phase) {
		phases = append(phases, phase)
	}))
	defer done()

	result, err := checkout.Run(context.Background(), checkoutInput(t, "card"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Paid || !result.CartCleared {
		t.Errorf("paid = %v cleared = %v", result.Paid, result.CartCleared)
	}
	if result.TransactionID != "TXN-0001" {
		t.Errorf("transaction = %q", result.TransactionID)
	}
	if result.Order.PaymentStatus != "paid" {
		t.Errorf("payment status = %q", result.Order.PaymentStatus)
	}
	want := []string{"POST /orders", "POST /payments/simulate", "DELETE /cart"}
	if got := server.sequence(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("call sequence = %v", got)
	}
	if len(phases) != 2 || phases[0] != PhaseProcessing || phases[1] != PhaseSuccess {
		t.Errorf("phases = %v", phases)
	}
}

func TestCheckoutDeclineKeepsCart(t *testing.T) {
	server := &checkoutServer{declineCharge: true}
	var phases []Phase
	checkout, done := newTestCheckout(t, server, WithPhaseObserver(func(_ string, phase Phase) {
		phases = append(phases, phase)
	}))
	defer done()

	result, err := checkout.Run(context.Background(), checkoutInput(t, "card"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Paid || result.CartCleared {
		t.Errorf("paid = %v cleared = %v, want neither", result.Paid, result.CartCleared)
	}
	if result.DeclineMessage != "card declined" {
		t.Errorf("decline message = %q", result.DeclineMessage)
	}
	for _, call := range server.sequence() {
		if call == "DELETE /cart" {
			t.Error("cart cleared after a declined charge")
		}
	}
	if len(phases) != 2 || phases[1] != PhaseFailed {
		t.Errorf("phases = %v", phases)
	}
}

func TestCheckoutCashSkipsPayment(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	result, err := checkout.Run(context.Background(), checkoutInput(t, "cash"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.CashOnDelivery || result.Paid {
		t.Errorf("cash = %v paid = %v", result.CashOnDelivery, result.Paid)
	}
	if !result.CartCleared {
		t.Error("cart not cleared for cash order")
	}
	for _, call := range server.sequence() {
		if call == "POST /payments/simulate" {
			t.Error("cash checkout called the gateway")
		}
	}
}

func TestCheckoutValidatesBeforeCreating(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	input := checkoutInput(t, "card")
	input.Items = nil
	if _, err := checkout.Run(context.Background(), input); err == nil {
		t.Fatal("expected validation error")
	}
	if calls := server.sequence(); len(calls) != 0 {
		t.Errorf("server called during failed validation: %v", calls)
	}
}

func TestCheckoutPacingHoldsPhases(t *testing.T) {
	server := &checkoutServer{}
	var paced []time.Duration
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	now := base
	checkout, done := newTestCheckout(t, server,
		WithClock(func() time.Time { return now }),
		WithPacer(func(_ context.Context, d time.Duration) error {
			paced = append(paced, d)
			return nil
		}),
	)
	defer done()

	if _, err := checkout.Run(context.Background(), checkoutInput(t, "card")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The clock never advances, so the full processing minimum remains.
	if len(paced) != 2 {
		t.Fatalf("paced = %v", paced)
	}
	if paced[0] != processingDisplayMinimum {
		t.Errorf("processing hold = %v", paced[0])
	}
	if paced[1] != successDisplayMinimum {
		t.Errorf("outcome hold = %v", paced[1])
	}
}

func TestCheckoutHoldsDeclinedOutcomeLonger(t *testing.T) {
	server := &checkoutServer{declineCharge: true}
	var paced []time.Duration
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	checkout, done := newTestCheckout(t, server,
		WithClock(func() time.Time { return base }),
		WithPacer(func(_ context.Context, d time.Duration) error {
			paced = append(paced, d)
			return nil
		}),
	)
	defer done()

	if _, err := checkout.Run(context.Background(), checkoutInput(t, "card")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(paced) != 2 {
		t.Fatalf("paced = %v", paced)
	}
	if paced[1] != failureDisplayMinimum {
		t.Errorf("declined outcome hold = %v", paced[1])
	}
}

func TestCheckoutSkipsProcessingHoldWhenGatewayWasSlow(t *testing.T) {
	server := &checkoutServer{}
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	elapsed := time.Duration(0)
	var paced []time.Duration
	checkout, done := newTestCheckout(t, server,
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			at := base.Add(elapsed)
			elapsed += 5 * time.Second
			return at
		}),
		WithPacer(func(_ context.Context, d time.Duration) error {
			paced = append(paced, d)
			return nil
		}),
	)
	defer done()

	if _, err := checkout.Run(context.Background(), checkoutInput(t, "card")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Five simulated seconds passed during the charge, so only the outcome
	// hold fires.
	if len(paced) != 1 || paced[0] != successDisplayMinimum {
		t.Errorf("paced = %v", paced)
	}
}

func TestUpdateStatusRefreshesAndSendsExpected(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	order, err := checkout.UpdateStatus(context.Background(), "ord_0001", "processing")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if order.Status != "processing" {
		t.Errorf("status = %q", order.Status)
	}
	calls := server.sequence()
	if len(calls) != 2 || calls[0] != "GET /orders/ord_0001" || calls[1] != "PUT /orders/ord_0001/status" {
		t.Errorf("call sequence = %v", calls)
	}
}

func TestUpdateStatusRejectsConcurrentMutation(t *testing.T) {
	server := &checkoutServer{blockGet: make(chan struct{})}
	checkout, done := newTestCheckout(t, server)
	defer done()

	firstDone := make(chan error, 1)
	go func() {
		_, err := checkout.UpdateStatus(context.Background(), "ord_0001", "processing")
		firstDone <- err
	}()

	// Wait for the first mutation to take the guard.
	deadline := time.Now().Add(2 * time.Second)
	for {
		checkout.mu.Lock()
		_, busy := checkout.inFlight["ord_0001"]
		checkout.mu.Unlock()
		if busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first mutation never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := checkout.UpdateStatus(context.Background(), "ord_0001", "shipped"); err == nil {
		t.Error("second concurrent mutation was allowed")
	}

	close(server.blockGet)
	if err := <-firstDone; err != nil {
		t.Fatalf("first mutation: %v", err)
	}

	// The guard releases once the first mutation finishes.
	if _, err := checkout.UpdateStatus(context.Background(), "ord_0001", "processing"); err != nil {
		t.Fatalf("sequential mutation after release: %v", err)
	}
}

func TestRetryPaymentSettlesDeclinedOrder(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	result, err := checkout.RetryPayment(context.Background(), "ord_0001", "card", PaymentDetails{CardNumber: "4242424242424242"})
	if err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	if !result.Paid || !result.CartCleared {
		t.Errorf("paid = %v cleared = %v", result.Paid, result.CartCleared)
	}
	if result.Order.Status != "confirmed" {
		t.Errorf("status = %q", result.Order.Status)
	}

	if _, err := checkout.RetryPayment(context.Background(), "ord_0001", "cash", PaymentDetails{}); err == nil {
		t.Error("cash accepted for a payment retry")
	}
}

func TestUpdateStatusRejectsIllegalTransitionLocally(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	// The stub serves the order as confirmed; jumping straight to delivered
	// must be rejected before any mutation request.
	if _, err := checkout.UpdateStatus(context.Background(), "ord_0001", "delivered"); err == nil {
		t.Fatal("expected local rejection of skipped transition")
	}
	for _, call := range server.sequence() {
		if strings.HasPrefix(call, "PUT ") {
			t.Errorf("mutation reached the server: %s", call)
		}
	}
}

func TestPaymentMethodsFallsBackWhenEndpointFails(t *testing.T) {
	server := &checkoutServer{failMethods: true}
	checkout, done := newTestCheckout(t, server)
	defer done()

	methods := checkout.PaymentMethods(context.Background())
	if len(methods) != len(defaultPaymentMethods) {
		t.Fatalf("methods = %v", methods)
	}
	if methods[0].Method != MethodCard || methods[len(methods)-1].Method != MethodCash {
		t.Errorf("fallback order = %v", methods)
	}
}

func TestPaymentMethodsUsesServerCatalog(t *testing.T) {
	server := &checkoutServer{}
	checkout, done := newTestCheckout(t, server)
	defer done()

	methods := checkout.PaymentMethods(context.Background())
	if len(methods) != 1 || methods[0].Method != "card" {
		t.Errorf("methods = %v", methods)
	}
}
