package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/platform/httpx"
	"github.com/harvestfield/api/internal/services"
)

const maxCartBodyBytes = 64 * 1024

// CartHandlers exposes the per-user cart endpoints.
type CartHandlers struct {
	cart services.CartService
}

// NewCartHandlers wires the cart endpoints to the cart service.
func NewCartHandlers(cart services.CartService) *CartHandlers {
	return &CartHandlers{cart: cart}
}

type replaceCartRequest struct {
	Items []cartItemPayload `json:"items"`
}

type addCartItemRequest struct {
	cartItemPayload
}

// Get handles GET /cart.
func (h *CartHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.cart.GetOrCreateCart(ctx, identity.UserID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

// Replace handles PUT /cart, swapping the full item list in one write.
func (h *CartHandlers) Replace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodyBytes)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req replaceCartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, payload := range req.Items {
		item, err := payload.toDomain()
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		items = append(items, item)
	}

	cart, err := h.cart.ReplaceItems(ctx, identity.UserID, items)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

// AddItem handles POST /cart/items.
func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodyBytes)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req addCartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	price, err := parseAmount(req.UnitPrice)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unitPrice is not a valid amount", http.StatusBadRequest))
		return
	}

	cart, err := h.cart.AddOrUpdateItem(ctx, services.UpsertCartItemCommand{
		UserID:      identity.UserID,
		ProductID:   strings.TrimSpace(req.ProductID),
		ProductName: strings.TrimSpace(req.ProductName),
		Unit:        strings.TrimSpace(req.Unit),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		FarmerID:    strings.TrimSpace(req.FarmerID),
		FarmerName:  strings.TrimSpace(req.FarmerName),
		FarmName:    strings.TrimSpace(req.FarmName),
		Quantity:    req.Quantity,
		UnitPrice:   price,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

// RemoveItem handles DELETE /cart/items/{productID}.
func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.cart.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID:    identity.UserID,
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

// Estimate handles GET /cart/estimate.
func (h *CartHandlers) Estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	totals, err := h.cart.Estimate(ctx, identity.UserID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"subtotal": formatAmount(totals.Subtotal),
		"tax":      formatAmount(totals.Tax),
		"total":    formatAmount(totals.Total),
	})
}

// Clear handles DELETE /cart.
func (h *CartHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.cart.ClearCart(ctx, identity.UserID); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
