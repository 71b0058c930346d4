package ledger

import "mozo-cocina/internal/domain"

// Totals is the financial summary of an order.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	DiscountTotal float64 `json:"discount_total"`
	Total         float64 `json:"total"`
}

// ComputeTotals derives an order's totals from its lines and discounts.
// It is pure: same inputs, same output, no hidden state.
//
// Each percentage discount contributes subtotal*value/100 and each fixed
// discount contributes its value; contributions are summed independently,
// never compounded on a shrinking base, so the order of application does not
// matter. The total is clamped at zero: discounts can zero an order out but
// never invert it.
func ComputeTotals(lines []domain.OrderLine, discounts []domain.Discount) Totals {
	var t Totals
	for i := range lines {
		t.Subtotal += lines[i].Total()
	}
	for _, d := range discounts {
		switch d.Kind {
		case domain.DiscountPercentage:
			t.DiscountTotal += t.Subtotal * d.Value / 100
		case domain.DiscountFixed:
			t.DiscountTotal += d.Value
		}
	}
	t.Total = t.Subtotal - t.DiscountTotal
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}
