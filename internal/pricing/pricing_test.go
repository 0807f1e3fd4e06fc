package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_ReferenceOrder(t *testing.T) {
	tip := dec("10")
	got := Calculate([]Line{
		{UnitPrice: dec("15.00"), Quantity: 2},
		{UnitPrice: dec("10.00"), Quantity: 1},
	}, dec("10"), &tip)

	assert.True(t, got.Subtotal.Equal(dec("40.00")), "subtotal %s", got.Subtotal)
	assert.True(t, got.VATAmount.Equal(dec("4.00")), "vat %s", got.VATAmount)
	assert.True(t, got.TipAmount.Equal(dec("4.00")), "tip %s", got.TipAmount)
	assert.True(t, got.Total.Equal(dec("48.00")), "total %s", got.Total)
}

func TestCalculate_NoTip(t *testing.T) {
	got := Calculate([]Line{{UnitPrice: dec("12.50"), Quantity: 3}}, DefaultVATRate, nil)

	assert.True(t, got.Subtotal.Equal(dec("37.50")))
	assert.True(t, got.VATAmount.Equal(dec("3.75")))
	assert.True(t, got.TipAmount.IsZero())
	assert.True(t, got.Total.Equal(dec("41.25")))
}

func TestCalculate_RoundsHalfUpOnPresentedValues(t *testing.T) {
	// 0.05 * 21% = 0.0105 -> 0.01; 0.25 * 21% = 0.0525 -> 0.05
	got := Calculate([]Line{{UnitPrice: dec("0.25"), Quantity: 1}}, dec("21"), nil)
	assert.Equal(t, "0.05", got.VATAmount.StringFixed(2))

	// 1.50 * 5% tip = 0.075 -> 0.08
	tip := dec("5")
	got = Calculate([]Line{{UnitPrice: dec("1.50"), Quantity: 1}}, decimal.Zero, &tip)
	assert.Equal(t, "0.08", got.TipAmount.StringFixed(2))
}

func TestCalculate_TotalInvariantHolds(t *testing.T) {
	tip := dec("12.5")
	lines := []Line{
		{UnitPrice: dec("3.33"), Quantity: 7},
		{UnitPrice: dec("0.99"), Quantity: 13},
		{UnitPrice: dec("18.45"), Quantity: 1},
	}
	for _, rate := range []string{"0", "4", "10", "21", "7.5"} {
		got := Calculate(lines, dec(rate), &tip)
		sum := got.Subtotal.Add(got.VATAmount).Add(got.TipAmount)
		assert.True(t, got.Total.Equal(sum), "rate %s: total %s != %s", rate, got.Total, sum)
	}
}

func TestCalculate_EmptyLines(t *testing.T) {
	got := Calculate(nil, DefaultVATRate, nil)
	assert.True(t, got.Total.IsZero())
}
