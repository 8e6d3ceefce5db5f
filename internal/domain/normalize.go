package domain

import "strings"

// DefaultCountry is assumed when a legacy delivery address omits the country.
const DefaultCountry = "India"

// Normalize converts a raw order record into the canonical representation.
// It is the single place where the legacy delivery-address shape, missing
// nested references, absent statuses, and the cash-on-delivery payment
// override are resolved; no other code branches on record shape.
//
// Normalize is pure and idempotent: normalizing an already-canonical order
// yields the same order.
func Normalize(raw RawOrder) Order {
	order := Order{
		ID:                   raw.ID,
		OrderNumber:          raw.OrderNumber,
		ConsumerID:           raw.ConsumerID,
		ConsumerName:         raw.ConsumerName,
		Subtotal:             raw.Subtotal,
		TaxAmount:            raw.TaxAmount,
		TotalAmount:          raw.TotalAmount,
		PaymentMethod:        raw.PaymentMethod,
		TransactionID:        cloneStringPtr(raw.TransactionID),
		DeliveryInstructions: raw.DeliveryInstructions,
		ConsumerNotes:        raw.ConsumerNotes,
		CancelReason:         cloneStringPtr(raw.CancelReason),
		CreatedAt:            raw.CreatedAt,
		UpdatedAt:            raw.UpdatedAt,
		PaidAt:               cloneTimePtr(raw.PaidAt),
		DeliveredAt:          cloneTimePtr(raw.DeliveredAt),
		CancelledAt:          cloneTimePtr(raw.CancelledAt),
	}

	order.ShippingAddress = resolveAddress(raw)
	order.Items = resolveItems(raw.Items)

	order.Status = raw.Status
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	order.PaymentStatus = raw.PaymentStatus
	if order.PaymentStatus == "" {
		order.PaymentStatus = PaymentStatusPending
	}

	// Cash is collected at or after confirmation, so once a cash order has
	// moved past pending the effective payment status is paid regardless of
	// the stored value.
	if order.PaymentMethod == PaymentMethodCash &&
		order.Status != OrderStatusPending &&
		order.Status != OrderStatusCancelled {
		order.PaymentStatus = PaymentStatusPaid
	}

	return order
}

// resolveAddress prefers the canonical shape; a legacy delivery address is
// mapped field by field, defaulting the country and splitting the consumer's
// display name into recipient first/last names on the first space.
func resolveAddress(raw RawOrder) *Address {
	if raw.ShippingAddress != nil {
		return cloneAddress(raw.ShippingAddress)
	}
	if raw.DeliveryAddress == nil {
		return nil
	}

	legacy := raw.DeliveryAddress
	addr := &Address{
		Line1:   legacy.Address,
		City:    legacy.City,
		State:   legacy.State,
		ZipCode: legacy.ZipCode,
		Country: legacy.Country,
	}
	if strings.TrimSpace(addr.Country) == "" {
		addr.Country = DefaultCountry
	}
	addr.FirstName, addr.LastName = SplitDisplayName(raw.ConsumerName)
	return addr
}

func resolveItems(items []RawLineItem) []OrderLineItem {
	resolved := make([]OrderLineItem, len(items))
	for i, item := range items {
		line := OrderLineItem{
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if item.Product != nil {
			line.Product = *item.Product
		}
		if item.Farmer != nil {
			line.Farmer = *item.Farmer
		}
		resolved[i] = line
	}
	return resolved
}

// SplitDisplayName splits a display name on the first space. A name without
// a space yields an empty last name.
func SplitDisplayName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	if idx := strings.Index(name, " "); idx >= 0 {
		return name[:idx], strings.TrimSpace(name[idx+1:])
	}
	return name, ""
}
