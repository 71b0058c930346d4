// Package ledger owns the order lifecycle: creation, discounts, payments,
// state changes and cancellation. Every mutation is one storage transaction,
// followed by a best-effort audit write and a fire-and-forget broadcast.
package ledger

import (
	"context"

	"github.com/go-playground/validator/v10"

	"mozo-cocina/internal/audit"
	"mozo-cocina/internal/catalog"
	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/logger"
)

// Actor identifies who performed an operation, for the audit trail. All
// fields may be empty; the mutation still goes through.
type Actor struct {
	ID     *int64
	Name   string
	Origin string
}

// Catalog resolves product and modifier snapshots at order-creation time.
type Catalog interface {
	LookupProduct(ctx context.Context, id int64) (catalog.ProductSnapshot, error)
	LookupModifier(ctx context.Context, id int64) (catalog.ModifierSnapshot, error)
}

// Auditor appends one immutable entry per mutation.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Publisher hands events to the broadcast hub. It never returns an error:
// delivery problems are the hub's to handle and can never reach back into a
// ledger transaction.
type Publisher interface {
	Publish(channel string, ev domain.Event)
}

// ListFilter narrows ListOrders. A nil State means all states.
type ListFilter struct {
	State            *domain.OrderState
	IncludeCancelled bool
}

// Repository executes each mutation as a single atomic transaction, with the
// order row locked so concurrent totals recomputation serializes per order.
// State conflicts (cancelled order, double cancel) are detected under that
// lock and reported as domain errors.
type Repository interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error)
	AddDiscount(ctx context.Context, orderID int64, d *domain.Discount) (domain.Order, error)
	AddPayment(ctx context.Context, orderID int64, p *domain.Payment) (domain.Order, error)
	SetState(ctx context.Context, orderID int64, s domain.OrderState) (domain.Order, error)
	Cancel(ctx context.Context, orderID int64) (domain.Order, error)
}

type Service struct {
	repo     Repository
	catalog  Catalog
	auditor  Auditor
	hub      Publisher
	lg       *logger.Logger
	validate *validator.Validate
}

func NewService(repo Repository, cat Catalog, auditor Auditor, hub Publisher, lg *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  cat,
		auditor:  auditor,
		hub:      hub,
		lg:       lg,
		validate: validator.New(),
	}
}

type CreateOrderInput struct {
	TableID    *int64      `json:"table_id"`
	ServerID   *int64      `json:"server_id"`
	ServerName string      `json:"server_name"`
	Lines      []LineInput `json:"lines" validate:"required,min=1,dive"`
}

type LineInput struct {
	ProductID *int64          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice float64         `json:"unit_price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Note      string          `json:"note"`
	Modifiers []ModifierInput `json:"modifiers" validate:"dive"`
}

type ModifierInput struct {
	ModifierID *int64  `json:"modifier_id"`
	Name       string  `json:"name"`
	ExtraPrice float64 `json:"extra_price" validate:"gte=0"`
}

type DiscountInput struct {
	Kind   domain.DiscountKind `json:"kind"`
	Value  float64             `json:"value"`
	Reason string              `json:"reason"`
}

type PaymentInput struct {
	Method domain.PaymentMethod `json:"method"`
	Amount float64              `json:"amount"`
}

// CreateOrder validates the whole request, freezes catalog snapshots onto the
// lines, persists order and children atomically and returns the stored order.
// Any unresolved product or modifier rejects the creation as a whole.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (domain.Order, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Order{}, domain.Validationf("invalid order: %v", err)
	}
	if len(in.Lines) == 0 {
		return domain.Order{}, domain.Validationf("order needs at least one line")
	}

	order := domain.Order{
		TableID:    in.TableID,
		ServerID:   in.ServerID,
		ServerName: in.ServerName,
		State:      domain.StatePending,
	}
	for i, li := range in.Lines {
		if li.Quantity <= 0 {
			return domain.Order{}, domain.Validationf("line %d: quantity must be positive", i+1)
		}
		line := domain.OrderLine{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
			Note:      li.Note,
		}
		if li.ProductID != nil {
			snap, err := s.catalog.LookupProduct(ctx, *li.ProductID)
			if err != nil {
				return domain.Order{}, err
			}
			line.Name = snap.Name
			line.UnitPrice = snap.UnitPrice
		} else {
			if li.Name == "" {
				return domain.Order{}, domain.Validationf("line %d: free-text line needs a name", i+1)
			}
			if li.UnitPrice < 0 {
				return domain.Order{}, domain.Validationf("line %d: unit price must not be negative", i+1)
			}
		}
		for j, mi := range li.Modifiers {
			mod := domain.LineModifier{
				ModifierID: mi.ModifierID,
				Name:       mi.Name,
				ExtraPrice: mi.ExtraPrice,
			}
			if mi.ModifierID != nil {
				snap, err := s.catalog.LookupModifier(ctx, *mi.ModifierID)
				if err != nil {
					return domain.Order{}, err
				}
				mod.Name = snap.Name
				mod.ExtraPrice = snap.ExtraPrice
			} else if mi.Name == "" {
				return domain.Order{}, domain.Validationf("line %d modifier %d: name is required", i+1, j+1)
			}
			line.Modifiers = append(line.Modifiers, mod)
		}
		order.Lines = append(order.Lines, line)
	}

	totals := ComputeTotals(order.Lines, nil)
	order.Subtotal = totals.Subtotal
	order.DiscountTotal = totals.DiscountTotal
	order.Total = totals.Total
	order.Paid = order.PaymentsTotal() >= order.Total

	if err := s.repo.InsertOrder(ctx, &order); err != nil {
		return domain.Order{}, err
	}

	s.recordAudit(ctx, actor, audit.ActionCreate, "orders", order.ID, map[string]any{
		"order_number": order.Number,
		"table_id":     order.TableID,
		"total":        order.Total,
		"lines":        len(order.Lines),
	})
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventNewOrder, OrderID: order.ID})
	s.lg.Info("order_created", map[string]any{"order_id": order.ID, "order_number": order.Number, "total": order.Total})
	return order, nil
}

// AddDiscount stacks one more discount onto the order; totals are recomputed
// inside the same transaction that stores it.
func (s *Service) AddDiscount(ctx context.Context, actor Actor, orderID int64, in DiscountInput) (domain.Order, error) {
	if !in.Kind.Valid() {
		return domain.Order{}, domain.Validationf("unknown discount kind %q", in.Kind)
	}
	if in.Value < 0 {
		return domain.Order{}, domain.Validationf("discount value must not be negative")
	}
	if in.Reason == "" {
		return domain.Order{}, domain.Validationf("discount reason is required")
	}

	d := domain.Discount{Kind: in.Kind, Value: in.Value, Reason: in.Reason, AppliedBy: actor.Name}
	order, err := s.repo.AddDiscount(ctx, orderID, &d)
	if err != nil {
		return domain.Order{}, err
	}

	s.recordAudit(ctx, actor, audit.ActionCreate, "discounts", d.ID, map[string]any{
		"order_id": orderID,
		"kind":     string(d.Kind),
		"value":    d.Value,
		"reason":   d.Reason,
	})
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventDiscountApplied, OrderID: orderID})
	s.lg.Info("discount_applied", map[string]any{"order_id": orderID, "discount_total": order.DiscountTotal})
	return order, nil
}

// AddPayment records a partial or full payment. Overpayment is allowed and
// simply leaves the order marked paid.
func (s *Service) AddPayment(ctx context.Context, actor Actor, orderID int64, in PaymentInput) (domain.Order, error) {
	if !in.Method.Valid() {
		return domain.Order{}, domain.Validationf("unknown payment method %q", in.Method)
	}
	if in.Amount < 0 {
		return domain.Order{}, domain.Validationf("payment amount must not be negative")
	}

	p := domain.Payment{Method: in.Method, Amount: in.Amount, ReceivedBy: actor.Name}
	order, err := s.repo.AddPayment(ctx, orderID, &p)
	if err != nil {
		return domain.Order{}, err
	}

	s.recordAudit(ctx, actor, audit.ActionCreate, "payments", p.ID, map[string]any{
		"order_id": orderID,
		"method":   string(p.Method),
		"amount":   p.Amount,
		"paid":     order.Paid,
	})
	paid := order.Paid
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventPaymentAdded, OrderID: orderID, Paid: &paid})
	s.lg.Info("payment_added", map[string]any{"order_id": orderID, "amount": p.Amount, "paid": order.Paid})
	return order, nil
}

// SetState moves the order between pending, ready and charged. Any of the
// three may be reached from any other so staff can correct mistakes; only the
// literal itself and the cancelled flag are checked.
func (s *Service) SetState(ctx context.Context, actor Actor, orderID int64, state string) (domain.Order, error) {
	next := domain.OrderState(state)
	if !next.Valid() {
		return domain.Order{}, domain.Validationf("unknown order state %q", state)
	}

	order, err := s.repo.SetState(ctx, orderID, next)
	if err != nil {
		return domain.Order{}, err
	}

	s.recordAudit(ctx, actor, audit.ActionUpdateState, "orders", orderID, map[string]any{
		"state": string(next),
	})
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventOrderUpdated, OrderID: orderID, State: next})
	s.lg.Info("order_state_changed", map[string]any{"order_id": orderID, "state": string(next)})
	return order, nil
}

// CancelOrder flags the order cancelled. Totals and payments stay untouched
// for the audit trail; charged orders cannot be cancelled and cancellation is
// irreversible.
func (s *Service) CancelOrder(ctx context.Context, actor Actor, orderID int64) (domain.Order, error) {
	order, err := s.repo.Cancel(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	s.recordAudit(ctx, actor, audit.ActionCancel, "orders", orderID, nil)
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventOrderCancelled, OrderID: orderID})
	s.lg.Info("order_cancelled", map[string]any{"order_id": orderID})
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	if f.State != nil && !f.State.Valid() {
		return nil, domain.Validationf("unknown order state %q", *f.State)
	}
	return s.repo.ListOrders(ctx, f)
}

// recordAudit is best-effort: a failed audit write is logged and swallowed so
// auditing can never block order-taking. The write uses a detached context so
// a caller hanging up after commit does not lose the entry.
func (s *Service) recordAudit(ctx context.Context, actor Actor, action, entity string, entityID int64, payload map[string]any) {
	e := audit.Entry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Payload:   payload,
		Origin:    actor.Origin,
	}
	if err := s.auditor.Record(context.WithoutCancel(ctx), e); err != nil {
		s.lg.Warn("audit_write_failed", err, map[string]any{
			"action": action, "entity": entity, "entity_id": entityID,
		})
	}
}
