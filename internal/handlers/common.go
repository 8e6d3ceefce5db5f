package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
	"github.com/harvestfield/api/internal/platform/auth"
)

var errBodyTooLarge = errors.New("request body too large")

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// Money crosses the wire as a fixed two-decimal string.
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

func parseFilterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

// identityActor translates the authenticated identity into the domain actor
// consumed by service-level policy checks.
func identityActor(identity *auth.Identity) domain.Actor {
	if identity == nil {
		return domain.Actor{}
	}
	return domain.Actor{
		ID:   strings.TrimSpace(identity.UserID),
		Role: domain.Role(strings.TrimSpace(identity.Role)),
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UserID) == "" {
		writeJSONResponse(w, http.StatusUnauthorized, map[string]any{
			"error":   "unauthenticated",
			"message": "authentication required",
			"status":  http.StatusUnauthorized,
		})
		return nil, false
	}
	return identity, true
}

type addressPayload struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Line1     string  `json:"addressLine1"`
	Line2     *string `json:"addressLine2,omitempty"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	ZipCode   string  `json:"zipCode"`
	Country   string  `json:"country,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Line1:     addr.Line1,
		Line2:     cloneStringPointer(addr.Line2),
		City:      addr.City,
		State:     addr.State,
		ZipCode:   addr.ZipCode,
		Country:   addr.Country,
		Phone:     cloneStringPointer(addr.Phone),
	}
}

func (p addressPayload) toDomain() domain.Address {
	return domain.Address{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Line1:     strings.TrimSpace(p.Line1),
		Line2:     cloneStringPointer(p.Line2),
		City:      strings.TrimSpace(p.City),
		State:     strings.TrimSpace(p.State),
		ZipCode:   strings.TrimSpace(p.ZipCode),
		Country:   strings.TrimSpace(p.Country),
		Phone:     cloneStringPointer(p.Phone),
	}
}

type orderItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Unit        string `json:"unit,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	FarmerID    string `json:"farmerId,omitempty"`
	FarmerName  string `json:"farmerName,omitempty"`
	FarmName    string `json:"farmName,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

type orderPayload struct {
	ID                   string             `json:"id"`
	OrderNumber          string             `json:"orderNumber"`
	ConsumerID           string             `json:"consumerId"`
	ConsumerName         string             `json:"consumerName,omitempty"`
	Items                []orderItemPayload `json:"items"`
	Subtotal             string             `json:"subtotal"`
	TaxAmount            string             `json:"taxAmount"`
	TotalAmount          string             `json:"totalAmount"`
	ShippingAddress      *addressPayload    `json:"shippingAddress,omitempty"`
	PaymentMethod        string             `json:"paymentMethod"`
	Status               string             `json:"status"`
	PaymentStatus        string             `json:"paymentStatus"`
	TransactionID        *string            `json:"transactionId,omitempty"`
	DeliveryInstructions string             `json:"deliveryInstructions,omitempty"`
	ConsumerNotes        string             `json:"consumerNotes,omitempty"`
	CancelReason         *string            `json:"cancelReason,omitempty"`
	CreatedAt            string             `json:"createdAt"`
	UpdatedAt            string             `json:"updatedAt,omitempty"`
	PaidAt               string             `json:"paidAt,omitempty"`
	DeliveredAt          string             `json:"deliveredAt,omitempty"`
	CancelledAt          string             `json:"cancelledAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
			Unit:        item.Product.Unit,
			ImageURL:    item.Product.ImageURL,
			FarmerID:    item.Farmer.ID,
			FarmerName:  item.Farmer.Name,
			FarmName:    item.Farmer.FarmName,
			Quantity:    item.Quantity,
			UnitPrice:   formatAmount(item.UnitPrice),
			LineTotal:   formatAmount(item.LineTotal()),
		})
	}

	payload := orderPayload{
		ID:                   order.ID,
		OrderNumber:          order.OrderNumber,
		ConsumerID:           order.ConsumerID,
		ConsumerName:         order.ConsumerName,
		Items:                items,
		Subtotal:             formatAmount(order.Subtotal),
		TaxAmount:            formatAmount(order.TaxAmount),
		TotalAmount:          formatAmount(order.TotalAmount),
		PaymentMethod:        string(order.PaymentMethod),
		Status:               string(order.Status),
		PaymentStatus:        string(order.PaymentStatus),
		TransactionID:        cloneStringPointer(order.TransactionID),
		DeliveryInstructions: order.DeliveryInstructions,
		ConsumerNotes:        order.ConsumerNotes,
		CancelReason:         cloneStringPointer(order.CancelReason),
		CreatedAt:            formatTime(order.CreatedAt),
		UpdatedAt:            formatTime(order.UpdatedAt),
		PaidAt:               formatTimePtr(order.PaidAt),
		DeliveredAt:          formatTimePtr(order.DeliveredAt),
		CancelledAt:          formatTimePtr(order.CancelledAt),
	}

	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}

	return payload
}

type cartItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Unit        string `json:"unit,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	FarmerID    string `json:"farmerId,omitempty"`
	FarmerName  string `json:"farmerName,omitempty"`
	FarmName    string `json:"farmName,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	AddedAt     string `json:"addedAt,omitempty"`
}

type cartPayload struct {
	UserID    string            `json:"userId"`
	Items     []cartItemPayload `json:"items"`
	Subtotal  string            `json:"subtotal"`
	Tax       string            `json:"tax"`
	Total     string            `json:"total"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			ImageURL:    item.ImageURL,
			FarmerID:    item.FarmerID,
			FarmerName:  item.FarmerName,
			FarmName:    item.FarmName,
			Quantity:    item.Quantity,
			UnitPrice:   formatAmount(item.UnitPrice),
			AddedAt:     formatTime(item.AddedAt),
		})
	}

	totals := domain.PriceCart(cart)
	return cartPayload{
		UserID:    cart.UserID,
		Items:     items,
		Subtotal:  formatAmount(totals.Subtotal),
		Tax:       formatAmount(totals.Tax),
		Total:     formatAmount(totals.Total),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func (p cartItemPayload) toDomain() (domain.CartItem, error) {
	price, err := parseAmount(p.UnitPrice)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("unitPrice for product %q is not a valid amount", p.ProductID)
	}
	return domain.CartItem{
		ProductID:   strings.TrimSpace(p.ProductID),
		ProductName: strings.TrimSpace(p.ProductName),
		Unit:        strings.TrimSpace(p.Unit),
		ImageURL:    strings.TrimSpace(p.ImageURL),
		FarmerID:    strings.TrimSpace(p.FarmerID),
		FarmerName:  strings.TrimSpace(p.FarmerName),
		FarmName:    strings.TrimSpace(p.FarmName),
		Quantity:    p.Quantity,
		UnitPrice:   price,
	}, nil
}

type paymentRecordPayload struct {
	ID            string `json:"id"`
	OrderID       string `json:"orderId"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func buildPaymentRecordPayload(record domain.PaymentRecord) paymentRecordPayload {
	return paymentRecordPayload{
		ID:            record.ID,
		OrderID:       record.OrderID,
		Method:        string(record.Method),
		Status:        string(record.Status),
		Amount:        formatAmount(record.Amount),
		TransactionID: record.TransactionID,
		Message:       record.Message,
		CreatedAt:     formatTime(record.CreatedAt),
	}
}
