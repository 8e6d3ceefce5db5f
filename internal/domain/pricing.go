package domain

import "github.com/shopspring/decimal"

// TaxRate is the flat marketplace tax applied to every order subtotal.
var TaxRate = decimal.New(1, -1) // 0.1

// PricedLine is the minimal input the calculator needs per cart entry.
type PricedLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals carries the monetary roll-up computed once at order creation.
// Values retain full precision; Round2 is applied only at presentation and
// serialization boundaries.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PriceLines computes subtotal, tax, and grand total for the given lines.
// The result is independent of line ordering and free of side effects, so it
// can back a live order summary before submission as well as order creation.
func PriceLines(lines []PricedLine) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	tax := subtotal.Mul(TaxRate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// PriceCart prices the current cart contents.
func PriceCart(cart Cart) Totals {
	lines := make([]PricedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, PricedLine{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return PriceLines(lines)
}

// PriceOrderItems prices captured order line items.
func PriceOrderItems(items []OrderLineItem) Totals {
	lines := make([]PricedLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, PricedLine{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return PriceLines(lines)
}

// Round2 rounds a monetary value to two decimal places for presentation.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
