package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/ledger"
)

func TestComputeTotals_LinesAndPercentageDiscount(t *testing.T) {
	// One line: unit 1500, qty 2, one modifier worth 500.
	lines := []domain.OrderLine{
		{
			UnitPrice: 1500,
			Quantity:  2,
			Modifiers: []domain.LineModifier{{Name: "extra cheese", ExtraPrice: 500}},
		},
	}
	totals := ledger.ComputeTotals(lines, nil)
	assert.Equal(t, 4000.0, totals.Subtotal)
	assert.Equal(t, 4000.0, totals.Total)

	discounts := []domain.Discount{
		{Kind: domain.DiscountPercentage, Value: 10, Reason: "regular"},
	}
	totals = ledger.ComputeTotals(lines, discounts)
	assert.Equal(t, 4000.0, totals.Subtotal)
	assert.Equal(t, 400.0, totals.DiscountTotal)
	assert.Equal(t, 3600.0, totals.Total)
}

func TestComputeTotals_ClampsAtZero(t *testing.T) {
	lines := []domain.OrderLine{{UnitPrice: 1000, Quantity: 1}}
	discounts := []domain.Discount{
		{Kind: domain.DiscountFixed, Value: 5000, Reason: "comp"},
	}
	totals := ledger.ComputeTotals(lines, discounts)
	assert.Equal(t, 1000.0, totals.Subtotal)
	assert.Equal(t, 5000.0, totals.DiscountTotal)
	assert.Equal(t, 0.0, totals.Total, "discounts zero out but never invert")
}

func TestComputeTotals_DiscountsSumIndependently(t *testing.T) {
	lines := []domain.OrderLine{{UnitPrice: 5000, Quantity: 1}}
	pct := domain.Discount{Kind: domain.DiscountPercentage, Value: 10, Reason: "a"}
	fixed := domain.Discount{Kind: domain.DiscountFixed, Value: 500, Reason: "b"}

	forward := ledger.ComputeTotals(lines, []domain.Discount{pct, fixed})
	backward := ledger.ComputeTotals(lines, []domain.Discount{fixed, pct})

	// 10% of 5000 = 500, plus 500 fixed; never 10% of the shrunk base.
	assert.Equal(t, 1000.0, forward.DiscountTotal)
	assert.Equal(t, forward, backward, "application order must not matter")
	assert.Equal(t, 4000.0, forward.Total)
}

func TestComputeTotals_Idempotent(t *testing.T) {
	lines := []domain.OrderLine{
		{UnitPrice: 1234.56, Quantity: 3, Modifiers: []domain.LineModifier{{ExtraPrice: 78.9}}},
		{UnitPrice: 99.99, Quantity: 1},
	}
	discounts := []domain.Discount{
		{Kind: domain.DiscountPercentage, Value: 12.5, Reason: "x"},
		{Kind: domain.DiscountFixed, Value: 300, Reason: "y"},
	}
	first := ledger.ComputeTotals(lines, discounts)
	second := ledger.ComputeTotals(lines, discounts)
	require.Equal(t, first, second)
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := ledger.ComputeTotals(nil, nil)
	assert.Zero(t, totals.Subtotal)
	assert.Zero(t, totals.DiscountTotal)
	assert.Zero(t, totals.Total)
}

func TestComputeTotals_TotalNeverNegative(t *testing.T) {
	cases := []struct {
		name      string
		lines     []domain.OrderLine
		discounts []domain.Discount
	}{
		{"no discounts", []domain.OrderLine{{UnitPrice: 10, Quantity: 2}}, nil},
		{"full percentage", []domain.OrderLine{{UnitPrice: 10, Quantity: 2}},
			[]domain.Discount{{Kind: domain.DiscountPercentage, Value: 100}}},
		{"over 100 percent", []domain.OrderLine{{UnitPrice: 10, Quantity: 2}},
			[]domain.Discount{{Kind: domain.DiscountPercentage, Value: 150}}},
		{"stacked fixed", []domain.OrderLine{{UnitPrice: 10, Quantity: 1}},
			[]domain.Discount{{Kind: domain.DiscountFixed, Value: 7}, {Kind: domain.DiscountFixed, Value: 7}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := ledger.ComputeTotals(tc.lines, tc.discounts)
			assert.GreaterOrEqual(t, totals.Total, 0.0)
			if totals.Total > 0 {
				assert.Equal(t, totals.Subtotal-totals.DiscountTotal, totals.Total)
			}
		})
	}
}
