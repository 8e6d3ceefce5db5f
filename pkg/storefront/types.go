// Package storefront is the client SDK for the harvestfield order API. It
// implements the consumer checkout pipeline: cart pricing, order assembly,
// simulated payment, and the paced status presentation the storefront shows
// while a charge settles.
package storefront

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Payment methods accepted by the checkout flow.
const (
	MethodCard   = "card"
	MethodUPI    = "upi"
	MethodWallet = "wallet"
	MethodCash   = "cash"
)

func validMethod(method string) bool {
	switch strings.TrimSpace(strings.ToLower(method)) {
	case MethodCard, MethodUPI, MethodWallet, MethodCash:
		return true
	}
	return false
}

// Address is the delivery address submitted with an order.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Line1     string `json:"addressLine1"`
	Line2     string `json:"addressLine2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (a Address) complete() bool {
	// Names are optional on the wire; the server only requires the
	// location fields.
	for _, field := range []string{a.Line1, a.City, a.State, a.ZipCode} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// CartItem is one product line in the cart being checked out.
type CartItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	FarmerID    string          `json:"farmerId,omitempty"`
	FarmerName  string          `json:"farmerName,omitempty"`
	FarmName    string          `json:"farmName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// OrderItem is a captured order line as returned by the API.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	FarmerID    string          `json:"farmerId,omitempty"`
	FarmerName  string          `json:"farmerName,omitempty"`
	FarmName    string          `json:"farmName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Order mirrors the wire shape served by the order endpoints. Monetary
// amounts arrive as fixed two-decimal strings and decode losslessly.
type Order struct {
	ID                   string          `json:"id"`
	OrderNumber          string          `json:"orderNumber"`
	ConsumerID           string          `json:"consumerId"`
	ConsumerName         string          `json:"consumerName,omitempty"`
	Items                []OrderItem     `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxAmount            decimal.Decimal `json:"taxAmount"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	ShippingAddress      *Address        `json:"shippingAddress,omitempty"`
	PaymentMethod        string          `json:"paymentMethod"`
	Status               string          `json:"status"`
	PaymentStatus        string          `json:"paymentStatus"`
	TransactionID        string          `json:"transactionId,omitempty"`
	DeliveryInstructions string          `json:"deliveryInstructions,omitempty"`
	ConsumerNotes        string          `json:"consumerNotes,omitempty"`
	CancelReason         string          `json:"cancelReason,omitempty"`
	CreatedAt            string          `json:"createdAt"`
	UpdatedAt            string          `json:"updatedAt,omitempty"`
	PaidAt               string          `json:"paidAt,omitempty"`
	CancelledAt          string          `json:"cancelledAt,omitempty"`
}

// PaymentDetails carries method-specific fields for a simulated charge.
type PaymentDetails struct {
	CardNumber string `json:"cardNumber,omitempty"`
	CardExpiry string `json:"cardExpiry,omitempty"`
	CardCVV    string `json:"cardCvv,omitempty"`
	CardHolder string `json:"cardHolder,omitempty"`
	UPIID      string `json:"upiId,omitempty"`
	WalletID   string `json:"walletId,omitempty"`
}

// PaymentMethod is the display metadata for one checkout payment option.
type PaymentMethod struct {
	Method      string `json:"method"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// SimulationResult is the verdict of a simulated charge. A decline is a
// normal result with Success false, not an error.
type SimulationResult struct {
	Success       bool   `json:"success"`
	Order         *Order `json:"order,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}
