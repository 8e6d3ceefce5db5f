package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/harvestfield/api/internal/domain"
)

func TestDecodeLegacyDeliveryAddressNormalizes(t *testing.T) {
	created := time.Date(2024, 11, 3, 9, 30, 0, 0, time.UTC)
	doc := orderDocument{
		OrderNumber:  "FM-2024-000187",
		ConsumerID:   "consumer-7",
		ConsumerName: "Asha Rao",
		Items: []orderItemDocument{{
			ProductID: "prod-1",
			Quantity:  2,
			UnitPrice: "10.00",
		}},
		Subtotal:    "20.00",
		TaxAmount:   "2.00",
		TotalAmount: "22.00",
		DeliveryAddress: &legacyAddressDocument{
			Address: "12 Market Lane",
			City:    "Pune",
			State:   "MH",
			ZipCode: "411001",
		},
		PaymentMethod: "card",
		Status:        "confirmed",
		PaymentStatus: "paid",
		CreatedAt:     created,
		UpdatedAt:     created,
	}

	raw, err := decodeOrderDocument("ord_legacy", doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.DeliveryAddress == nil {
		t.Fatal("legacy delivery address dropped during decode")
	}
	if raw.DeliveryAddress.Address != "12 Market Lane" {
		t.Fatalf("legacy address line = %q", raw.DeliveryAddress.Address)
	}

	order := domain.Normalize(raw)
	if order.ShippingAddress == nil {
		t.Fatal("normalization produced no shipping address")
	}
	addr := order.ShippingAddress
	if addr.Line1 != "12 Market Lane" {
		t.Fatalf("line1 = %q", addr.Line1)
	}
	if addr.City != "Pune" || addr.State != "MH" || addr.ZipCode != "411001" {
		t.Fatalf("unexpected address: %+v", addr)
	}
	if addr.Country != domain.DefaultCountry {
		t.Fatalf("country = %q", addr.Country)
	}
	if addr.FirstName != "Asha" || addr.LastName != "Rao" {
		t.Fatalf("name split = %q %q", addr.FirstName, addr.LastName)
	}
}

func TestOrderDocumentRoundTripsOptionalAddressFields(t *testing.T) {
	line2 := "Flat 4B"
	phone := "+91-9000000000"
	created := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:           "ord_0002",
		OrderNumber:  "FM-2025-000002",
		ConsumerID:   "consumer-1",
		ConsumerName: "Asha Rao",
		Items: []domain.OrderLineItem{{
			Product:   domain.ProductRef{ID: "prod-1", Name: "Tomatoes"},
			Farmer:    domain.FarmerRef{ID: "farmer-1"},
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("10.00"),
		}},
		Subtotal:    decimal.RequireFromString("10.00"),
		TaxAmount:   decimal.RequireFromString("1.00"),
		TotalAmount: decimal.RequireFromString("11.00"),
		ShippingAddress: &domain.Address{
			FirstName: "Asha",
			LastName:  "Rao",
			Line1:     "12 Market Lane",
			Line2:     &line2,
			City:      "Pune",
			State:     "MH",
			ZipCode:   "411001",
			Country:   "India",
			Phone:     &phone,
		},
		PaymentMethod: domain.PaymentMethodCard,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}

	doc := encodeOrderDocument(order)
	if doc.ShippingAddress == nil {
		t.Fatal("shipping address dropped during encode")
	}
	if doc.ShippingAddress.Line2 != "Flat 4B" || doc.ShippingAddress.Phone != "+91-9000000000" {
		t.Fatalf("optional fields encoded as %q %q", doc.ShippingAddress.Line2, doc.ShippingAddress.Phone)
	}

	raw, err := decodeOrderDocument(order.ID, doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	addr := raw.ShippingAddress
	if addr == nil {
		t.Fatal("shipping address dropped during decode")
	}
	if addr.Line2 == nil || *addr.Line2 != "Flat 4B" {
		t.Fatalf("line2 = %v", addr.Line2)
	}
	if addr.Phone == nil || *addr.Phone != "+91-9000000000" {
		t.Fatalf("phone = %v", addr.Phone)
	}

	// Empty optional fields come back as nil, not pointers to "".
	order.ShippingAddress.Line2 = nil
	order.ShippingAddress.Phone = nil
	raw, err = decodeOrderDocument(order.ID, encodeOrderDocument(order))
	if err != nil {
		t.Fatalf("decode without optionals: %v", err)
	}
	if raw.ShippingAddress.Line2 != nil || raw.ShippingAddress.Phone != nil {
		t.Fatalf("expected nil optionals, got %v %v", raw.ShippingAddress.Line2, raw.ShippingAddress.Phone)
	}
}
