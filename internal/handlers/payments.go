package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/platform/httpx"
	"github.com/harvestfield/api/internal/services"
)

const maxPaymentBodyBytes = 32 * 1024

// PaymentHandlers exposes the simulated payment endpoints.
type PaymentHandlers struct {
	payments services.PaymentService
	limiter  RateLimiter
}

// PaymentHandlersOption customises payment handler construction.
type PaymentHandlersOption func(*PaymentHandlers)

// WithPaymentRateLimiter attaches a request limiter keyed by user.
func WithPaymentRateLimiter(limiter RateLimiter) PaymentHandlersOption {
	return func(h *PaymentHandlers) {
		h.limiter = limiter
	}
}

// NewPaymentHandlers wires the payment endpoints to the payment service.
func NewPaymentHandlers(payments services.PaymentService, opts ...PaymentHandlersOption) *PaymentHandlers {
	handlers := &PaymentHandlers{payments: payments}
	for _, opt := range opts {
		opt(handlers)
	}
	return handlers
}

type paymentDetailsPayload struct {
	CardNumber string `json:"cardNumber"`
	CardExpiry string `json:"cardExpiry"`
	CardCVV    string `json:"cardCvv"`
	CardHolder string `json:"cardHolder"`
	UPIID      string `json:"upiId"`
	WalletID   string `json:"walletId"`
}

type simulatePaymentRequest struct {
	OrderID        string                 `json:"orderId"`
	PaymentMethod  string                 `json:"paymentMethod"`
	PaymentDetails *paymentDetailsPayload `json:"paymentDetails"`
}

type simulatePaymentResponse struct {
	Success       bool          `json:"success"`
	Order         *orderPayload `json:"order,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
	Message       string        `json:"message,omitempty"`
}

type paymentMethodPayload struct {
	Method      string `json:"method"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Simulate handles POST /payments/simulate.
//
// A gateway decline is a successful simulation with success=false; only
// validation, authorisation, and infrastructure problems surface as
// error statuses.
func (h *PaymentHandlers) Simulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(identity.UserID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxPaymentBodyBytes)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req simulatePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	cmd := services.SimulatePaymentCommand{
		Actor:         identityActor(identity),
		OrderID:       strings.TrimSpace(req.OrderID),
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
	}
	if req.PaymentDetails != nil {
		cmd.CardNumber = strings.TrimSpace(req.PaymentDetails.CardNumber)
		cmd.CardExpiry = strings.TrimSpace(req.PaymentDetails.CardExpiry)
		cmd.CardCVV = strings.TrimSpace(req.PaymentDetails.CardCVV)
		cmd.CardHolder = strings.TrimSpace(req.PaymentDetails.CardHolder)
		cmd.UPIID = strings.TrimSpace(req.PaymentDetails.UPIID)
		cmd.WalletID = strings.TrimSpace(req.PaymentDetails.WalletID)
	}

	outcome, err := h.payments.Simulate(ctx, cmd)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	response := simulatePaymentResponse{
		Success:       outcome.Success,
		TransactionID: outcome.TransactionID,
		Message:       outcome.Message,
	}
	if outcome.Order.ID != "" {
		order := buildOrderPayload(outcome.Order)
		response.Order = &order
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// ListMethods handles GET /payments/methods.
func (h *PaymentHandlers) ListMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	methods := h.payments.ListMethods(ctx)
	payloads := make([]paymentMethodPayload, 0, len(methods))
	for _, method := range methods {
		payloads = append(payloads, paymentMethodPayload{
			Method:      string(method.Method),
			Label:       method.Label,
			Description: method.Description,
			Enabled:     method.Enabled,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"methods": payloads})
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentOrderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_payable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		writeOrderError(ctx, w, err)
	}
}
