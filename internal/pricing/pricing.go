// Package pricing computes order totals. All arithmetic uses decimal values;
// rounding happens once, on the presented VAT and tip amounts.
package pricing

import "github.com/shopspring/decimal"

// DefaultVATRate applies when a tenant has no settings row.
var DefaultVATRate = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Totals are the frozen monetary fields of an order.
type Totals struct {
	Subtotal  decimal.Decimal
	VATAmount decimal.Decimal
	TipAmount decimal.Decimal
	Total     decimal.Decimal
}

// Calculate prices lines at vatRate percent plus an optional tip percentage.
// total always equals subtotal + vat + tip exactly.
func Calculate(lines []Line, vatRate decimal.Decimal, tipPercentage *decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}

	vat := subtotal.Mul(vatRate).Div(hundred)

	tip := decimal.Zero
	if tipPercentage != nil {
		tip = subtotal.Mul(*tipPercentage).Div(hundred)
	}

	subtotal = roundHalfUp(subtotal)
	vat = roundHalfUp(vat)
	tip = roundHalfUp(tip)

	return Totals{
		Subtotal:  subtotal,
		VATAmount: vat,
		TipAmount: tip,
		Total:     subtotal.Add(vat).Add(tip),
	}
}

// roundHalfUp rounds to cents. decimal.Round rounds half away from zero,
// which is half-up for the non-negative amounts handled here.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
