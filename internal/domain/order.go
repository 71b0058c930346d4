package domain

import "time"

type OrderState string

const (
	StatePending OrderState = "pending"
	StateReady   OrderState = "ready"
	StateCharged OrderState = "charged"
)

func (s OrderState) Valid() bool {
	switch s {
	case StatePending, StateReady, StateCharged:
		return true
	}
	return false
}

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

func (k DiscountKind) Valid() bool {
	return k == DiscountPercentage || k == DiscountFixed
}

type PaymentMethod string

const (
	PayCash     PaymentMethod = "cash"
	PayDebit    PaymentMethod = "debit"
	PayCredit   PaymentMethod = "credit"
	PayQR       PaymentMethod = "qr"
	PayTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayDebit, PayCredit, PayQR, PayTransfer:
		return true
	}
	return false
}

// Order is the aggregate root. Lines, discounts and payments belong to it
// and are only ever written through the ledger.
type Order struct {
	ID            int64       `json:"id"`
	Number        string      `json:"order_number"`
	TableID       *int64      `json:"table_id,omitempty"`
	TableName     string      `json:"table_name,omitempty"`
	ServerID      *int64      `json:"server_id,omitempty"`
	ServerName    string      `json:"server_name,omitempty"`
	State         OrderState  `json:"state"`
	Cancelled     bool        `json:"cancelled"`
	Subtotal      float64     `json:"subtotal"`
	DiscountTotal float64     `json:"discount_total"`
	Total         float64     `json:"total"`
	Paid          bool        `json:"paid"`
	Lines         []OrderLine `json:"lines"`
	Discounts     []Discount  `json:"discounts,omitempty"`
	Payments      []Payment   `json:"payments,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PaymentsTotal sums every payment recorded against the order.
func (o *Order) PaymentsTotal() float64 {
	var sum float64
	for _, p := range o.Payments {
		sum += p.Amount
	}
	return sum
}

// OrderLine snapshots name and price at order time. ProductID is nil for
// free-text lines.
type OrderLine struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	ProductID *int64         `json:"product_id,omitempty"`
	Name      string         `json:"name"`
	UnitPrice float64        `json:"unit_price"`
	Quantity  int            `json:"quantity"`
	Note      string         `json:"note,omitempty"`
	Modifiers []LineModifier `json:"modifiers,omitempty"`
}

// Total is (unit price + modifier extras) x quantity.
func (l *OrderLine) Total() float64 {
	unit := l.UnitPrice
	for _, m := range l.Modifiers {
		unit += m.ExtraPrice
	}
	return unit * float64(l.Quantity)
}

// LineModifier is a frozen copy of a catalog modifier; later catalog edits
// never change it.
type LineModifier struct {
	ID         int64   `json:"id"`
	LineID     int64   `json:"line_id"`
	ModifierID *int64  `json:"modifier_id,omitempty"`
	Name       string  `json:"name"`
	ExtraPrice float64 `json:"extra_price"`
}

type Discount struct {
	ID        int64        `json:"id"`
	OrderID   int64        `json:"order_id"`
	Kind      DiscountKind `json:"kind"`
	Value     float64      `json:"value"`
	Reason    string       `json:"reason"`
	AppliedBy string       `json:"applied_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type Payment struct {
	ID         int64         `json:"id"`
	OrderID    int64         `json:"order_id"`
	Method     PaymentMethod `json:"method"`
	Amount     float64       `json:"amount"`
	ReceivedBy string        `json:"received_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
