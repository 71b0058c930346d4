package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mozo-cocina/internal/audit"
	"mozo-cocina/internal/catalog"
	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/ledger"
	"mozo-cocina/internal/logger"
)

// fakeRepo keeps orders in memory and mirrors the repository's locking
// semantics: cancelled-order conflicts and per-mutation totals recompute.
type fakeRepo struct {
	orders    map[int64]*domain.Order
	nextID    int64
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[int64]*domain.Order)}
}

func (f *fakeRepo) id() int64 { f.nextID++; return f.nextID }

func (f *fakeRepo) InsertOrder(_ context.Context, o *domain.Order) error {
	if f.insertErr != nil {
		return domain.PersistenceErr("insert order", f.insertErr)
	}
	o.ID = f.id()
	o.Number = "ORD_TEST_001"
	for i := range o.Lines {
		o.Lines[i].ID = f.id()
		o.Lines[i].OrderID = o.ID
	}
	stored := *o
	f.orders[o.ID] = &stored
	return nil
}

func (f *fakeRepo) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFoundf("order %d not found", id)
	}
	return *o, nil
}

func (f *fakeRepo) ListOrders(_ context.Context, filter ledger.ListFilter) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range f.orders {
		if o.Cancelled && !filter.IncludeCancelled {
			continue
		}
		if filter.State != nil && o.State != *filter.State {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeRepo) locked(id int64) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.NotFoundf("order %d not found", id)
	}
	if o.Cancelled {
		return nil, domain.Conflictf("order %d is cancelled", id)
	}
	return o, nil
}

func (f *fakeRepo) recompute(o *domain.Order) {
	totals := ledger.ComputeTotals(o.Lines, o.Discounts)
	o.Subtotal = totals.Subtotal
	o.DiscountTotal = totals.DiscountTotal
	o.Total = totals.Total
	o.Paid = o.PaymentsTotal() >= o.Total
}

func (f *fakeRepo) AddDiscount(_ context.Context, orderID int64, d *domain.Discount) (domain.Order, error) {
	o, err := f.locked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	d.ID = f.id()
	d.OrderID = orderID
	o.Discounts = append(o.Discounts, *d)
	f.recompute(o)
	return *o, nil
}

func (f *fakeRepo) AddPayment(_ context.Context, orderID int64, p *domain.Payment) (domain.Order, error) {
	o, err := f.locked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	p.ID = f.id()
	p.OrderID = orderID
	o.Payments = append(o.Payments, *p)
	f.recompute(o)
	return *o, nil
}

func (f *fakeRepo) SetState(_ context.Context, orderID int64, s domain.OrderState) (domain.Order, error) {
	o, err := f.locked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	o.State = s
	return *o, nil
}

func (f *fakeRepo) Cancel(_ context.Context, orderID int64) (domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.NotFoundf("order %d not found", orderID)
	}
	if o.Cancelled {
		return domain.Order{}, domain.Conflictf("order %d is already cancelled", orderID)
	}
	if o.State == domain.StateCharged {
		return domain.Order{}, domain.Conflictf("order %d is charged and cannot be cancelled", orderID)
	}
	o.Cancelled = true
	return *o, nil
}

type fakeCatalog struct {
	products  map[int64]catalog.ProductSnapshot
	modifiers map[int64]catalog.ModifierSnapshot
}

func (f *fakeCatalog) LookupProduct(_ context.Context, id int64) (catalog.ProductSnapshot, error) {
	snap, ok := f.products[id]
	if !ok {
		return catalog.ProductSnapshot{}, domain.NotFoundf("product %d not found", id)
	}
	return snap, nil
}

func (f *fakeCatalog) LookupModifier(_ context.Context, id int64) (catalog.ModifierSnapshot, error) {
	snap, ok := f.modifiers[id]
	if !ok {
		return catalog.ModifierSnapshot{}, domain.NotFoundf("modifier %d not found", id)
	}
	return snap, nil
}

type fakeAuditor struct {
	entries []audit.Entry
	err     error
}

func (f *fakeAuditor) Record(_ context.Context, e audit.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeHub struct {
	events []domain.Event
}

func (f *fakeHub) Publish(_ string, ev domain.Event) { f.events = append(f.events, ev) }

type fixture struct {
	svc  *ledger.Service
	repo *fakeRepo
	aud  *fakeAuditor
	hub  *fakeHub
}

func newFixture() *fixture {
	repo := newFakeRepo()
	aud := &fakeAuditor{}
	h := &fakeHub{}
	cat := &fakeCatalog{
		products: map[int64]catalog.ProductSnapshot{
			1: {Name: "Milanesa", UnitPrice: 1500},
			2: {Name: "Empanada", UnitPrice: 300},
		},
		modifiers: map[int64]catalog.ModifierSnapshot{
			10: {Name: "Huevo frito", ExtraPrice: 500},
		},
	}
	svc := ledger.NewService(repo, cat, aud, h, logger.New("ledger-test"))
	return &fixture{svc: svc, repo: repo, aud: aud, hub: h}
}

func ptr[T any](v T) *T { return &v }

func (fx *fixture) createWorkedOrder(t *testing.T) domain.Order {
	t.Helper()
	order, err := fx.svc.CreateOrder(context.Background(), ledger.Actor{Name: "ana"}, ledger.CreateOrderInput{
		TableID: ptr[int64](4),
		Lines: []ledger.LineInput{
			{ProductID: ptr[int64](1), Quantity: 2, Modifiers: []ledger.ModifierInput{{ModifierID: ptr[int64](10)}}},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder_NoLines(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.CreateOrder(context.Background(), ledger.Actor{}, ledger.CreateOrderInput{})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Empty(t, fx.repo.orders, "nothing must be persisted")
	assert.Empty(t, fx.hub.events)
	assert.Empty(t, fx.aud.entries)
}

func TestCreateOrder_NonPositiveQuantity(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.CreateOrder(context.Background(), ledger.Actor{}, ledger.CreateOrderInput{
		Lines: []ledger.LineInput{{ProductID: ptr[int64](1), Quantity: 0}},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Empty(t, fx.repo.orders)
}

func TestCreateOrder_UnknownProductRejectsWholeOrder(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.CreateOrder(context.Background(), ledger.Actor{}, ledger.CreateOrderInput{
		Lines: []ledger.LineInput{
			{ProductID: ptr[int64](1), Quantity: 1},
			{ProductID: ptr[int64](999), Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Empty(t, fx.repo.orders, "creation is all-or-nothing")
}

func TestCreateOrder_SnapshotsCatalogPrices(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Milanesa", order.Lines[0].Name)
	assert.Equal(t, 1500.0, order.Lines[0].UnitPrice)
	require.Len(t, order.Lines[0].Modifiers, 1)
	assert.Equal(t, "Huevo frito", order.Lines[0].Modifiers[0].Name)
	assert.Equal(t, 500.0, order.Lines[0].Modifiers[0].ExtraPrice)

	assert.Equal(t, 4000.0, order.Subtotal)
	assert.Equal(t, 4000.0, order.Total)
	assert.Equal(t, domain.StatePending, order.State)
	assert.False(t, order.Paid)

	require.Len(t, fx.aud.entries, 1)
	assert.Equal(t, audit.ActionCreate, fx.aud.entries[0].Action)
	assert.Equal(t, "orders", fx.aud.entries[0].Entity)
	assert.Equal(t, "ana", fx.aud.entries[0].ActorName)

	require.Len(t, fx.hub.events, 1)
	assert.Equal(t, domain.EventNewOrder, fx.hub.events[0].Type)
	assert.Equal(t, order.ID, fx.hub.events[0].OrderID)
}

func TestCreateOrder_FreeTextLine(t *testing.T) {
	fx := newFixture()
	order, err := fx.svc.CreateOrder(context.Background(), ledger.Actor{}, ledger.CreateOrderInput{
		Lines: []ledger.LineInput{{Name: "Pedido libre", UnitPrice: 800, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 800.0, order.Subtotal)

	_, err = fx.svc.CreateOrder(context.Background(), ledger.Actor{}, ledger.CreateOrderInput{
		Lines: []ledger.LineInput{{UnitPrice: 800, Quantity: 1}},
	})
	require.Error(t, err, "free-text line without a name is rejected")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestAddDiscount_Validation(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	cases := []struct {
		name string
		in   ledger.DiscountInput
	}{
		{"unknown kind", ledger.DiscountInput{Kind: "bogof", Value: 10, Reason: "r"}},
		{"negative value", ledger.DiscountInput{Kind: domain.DiscountFixed, Value: -5, Reason: "r"}},
		{"empty reason", ledger.DiscountInput{Kind: domain.DiscountFixed, Value: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID, tc.in)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
	stored, _ := fx.repo.GetOrder(context.Background(), order.ID)
	assert.Empty(t, stored.Discounts)
}

func TestAddDiscount_UnknownOrder(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, 42,
		ledger.DiscountInput{Kind: domain.DiscountFixed, Value: 100, Reason: "r"})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAddDiscount_CancelledOrder(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)
	_, err := fx.svc.CancelOrder(context.Background(), ledger.Actor{}, order.ID)
	require.NoError(t, err)

	_, err = fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID,
		ledger.DiscountInput{Kind: domain.DiscountFixed, Value: 100, Reason: "r"})
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestDiscountsStack(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t) // subtotal 4000

	_, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID,
		ledger.DiscountInput{Kind: domain.DiscountPercentage, Value: 10, Reason: "regular"})
	require.NoError(t, err)
	updated, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID,
		ledger.DiscountInput{Kind: domain.DiscountFixed, Value: 500, Reason: "voucher"})
	require.NoError(t, err)

	// 10% of 4000 plus 500, summed not compounded.
	assert.Equal(t, 900.0, updated.DiscountTotal)
	assert.Equal(t, 3100.0, updated.Total)
}

func TestPaymentFlow_WorkedScenario(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t) // subtotal 4000

	updated, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID,
		ledger.DiscountInput{Kind: domain.DiscountPercentage, Value: 10, Reason: "regular"})
	require.NoError(t, err)
	require.Equal(t, 3600.0, updated.Total)

	updated, err = fx.svc.AddPayment(context.Background(), ledger.Actor{Name: "caja"}, order.ID,
		ledger.PaymentInput{Method: domain.PayCash, Amount: 2000})
	require.NoError(t, err)
	assert.False(t, updated.Paid, "2000 < 3600")

	updated, err = fx.svc.AddPayment(context.Background(), ledger.Actor{Name: "caja"}, order.ID,
		ledger.PaymentInput{Method: domain.PayQR, Amount: 1600})
	require.NoError(t, err)
	assert.True(t, updated.Paid)

	// The payment_added events carry the resulting paid flag.
	var paidFlags []bool
	for _, ev := range fx.hub.events {
		if ev.Type == domain.EventPaymentAdded {
			require.NotNil(t, ev.Paid)
			paidFlags = append(paidFlags, *ev.Paid)
		}
	}
	assert.Equal(t, []bool{false, true}, paidFlags)
}

func TestAddPayment_Validation(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	_, err := fx.svc.AddPayment(context.Background(), ledger.Actor{}, order.ID,
		ledger.PaymentInput{Method: "cheque", Amount: 100})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = fx.svc.AddPayment(context.Background(), ledger.Actor{}, order.ID,
		ledger.PaymentInput{Method: domain.PayCash, Amount: -1})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestOverpaymentAllowed(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	updated, err := fx.svc.AddPayment(context.Background(), ledger.Actor{}, order.ID,
		ledger.PaymentInput{Method: domain.PayCash, Amount: 99999})
	require.NoError(t, err)
	assert.True(t, updated.Paid)
	assert.Equal(t, 4000.0, updated.Total, "overpayment never rewrites the total")
}

func TestSetState_InvalidLiteral(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	_, err := fx.svc.SetState(context.Background(), ledger.Actor{}, order.ID, "served")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	stored, _ := fx.repo.GetOrder(context.Background(), order.ID)
	assert.Equal(t, domain.StatePending, stored.State, "state must be unchanged")
}

func TestSetState_PermissiveBetweenKnownStates(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)

	for _, s := range []string{"ready", "charged", "pending", "charged"} {
		updated, err := fx.svc.SetState(context.Background(), ledger.Actor{}, order.ID, s)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderState(s), updated.State)
	}

	var states []domain.OrderState
	for _, ev := range fx.hub.events {
		if ev.Type == domain.EventOrderUpdated {
			states = append(states, ev.State)
		}
	}
	assert.Equal(t, []domain.OrderState{
		domain.StateReady, domain.StateCharged, domain.StatePending, domain.StateCharged,
	}, states)
}

func TestCancel_PreservesFinancialRecord(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)
	_, err := fx.svc.AddPayment(context.Background(), ledger.Actor{}, order.ID,
		ledger.PaymentInput{Method: domain.PayCash, Amount: 1000})
	require.NoError(t, err)

	cancelled, err := fx.svc.CancelOrder(context.Background(), ledger.Actor{Name: "ana"}, order.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	assert.Equal(t, 4000.0, cancelled.Subtotal)
	assert.Equal(t, 4000.0, cancelled.Total)
	require.Len(t, cancelled.Payments, 1)

	_, err = fx.svc.CancelOrder(context.Background(), ledger.Actor{}, order.ID)
	require.Error(t, err, "cancelling twice conflicts")
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestCancel_ChargedOrderRefused(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)
	_, err := fx.svc.SetState(context.Background(), ledger.Actor{}, order.ID, "charged")
	require.NoError(t, err)

	_, err = fx.svc.CancelOrder(context.Background(), ledger.Actor{}, order.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestAuditFailure_NeverBlocksOperation(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)
	fx.aud.err = errors.New("audit store down")

	updated, err := fx.svc.AddPayment(context.Background(), ledger.Actor{}, order.ID,
		ledger.PaymentInput{Method: domain.PayCash, Amount: 100})
	require.NoError(t, err, "audit failure is logged, not surfaced")
	require.Len(t, updated.Payments, 1)

	// The broadcast still goes out.
	last := fx.hub.events[len(fx.hub.events)-1]
	assert.Equal(t, domain.EventPaymentAdded, last.Type)
}

func TestEventsFollowOperationOrder(t *testing.T) {
	fx := newFixture()
	order := fx.createWorkedOrder(t)
	_, err := fx.svc.AddDiscount(context.Background(), ledger.Actor{}, order.ID,
		ledger.DiscountInput{Kind: domain.DiscountFixed, Value: 100, Reason: "r"})
	require.NoError(t, err)
	_, err = fx.svc.SetState(context.Background(), ledger.Actor{}, order.ID, "ready")
	require.NoError(t, err)
	_, err = fx.svc.CancelOrder(context.Background(), ledger.Actor{}, order.ID)
	require.NoError(t, err)

	var types []domain.EventType
	for _, ev := range fx.hub.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventNewOrder,
		domain.EventDiscountApplied,
		domain.EventOrderUpdated,
		domain.EventOrderCancelled,
	}, types)
}

func TestListOrders_InvalidStateFilter(t *testing.T) {
	fx := newFixture()
	bogus := domain.OrderState("delivered")
	_, err := fx.svc.ListOrders(context.Background(), ledger.ListFilter{State: &bogus})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
