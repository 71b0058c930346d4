package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/logger"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so order loading
// works inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository runs every mutation as one transaction. The order row is
// locked with FOR UPDATE first, so two terminals hitting the same order
// serialize and each recomputes totals from the other's committed state.
// Operations on different orders share nothing and run fully in parallel.
type PGRepository struct {
	pool *pgxpool.Pool
	lg   *logger.Logger
}

func NewPGRepository(pool *pgxpool.Pool, lg *logger.Logger) *PGRepository {
	return &PGRepository{pool: pool, lg: lg}
}

func (r *PGRepository) InsertOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.PersistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var seq int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*)+1 FROM orders WHERE created_at::date = CURRENT_DATE`,
	).Scan(&seq); err != nil {
		return domain.PersistenceErr("order sequence", err)
	}
	o.Number = fmt.Sprintf("ORD_%s_%03d", time.Now().UTC().Format("20060102"), seq)

	err = tx.QueryRow(ctx, `
INSERT INTO orders (order_number, table_id, server_id, server_name, state, cancelled,
                    subtotal, discount_total, total, paid, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,false,$6,$7,$8,$9,NOW(),NOW())
RETURNING id, created_at, updated_at
`, o.Number, o.TableID, o.ServerID, o.ServerName, string(o.State),
		o.Subtotal, o.DiscountTotal, o.Total, o.Paid,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.PersistenceErr("insert order", err)
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err = tx.QueryRow(ctx, `
INSERT INTO order_lines (order_id, product_id, name, unit_price, quantity, note)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, o.ID, line.ProductID, line.Name, line.UnitPrice, line.Quantity, line.Note).Scan(&line.ID)
		if err != nil {
			return domain.PersistenceErr("insert order line", err)
		}
		for j := range line.Modifiers {
			mod := &line.Modifiers[j]
			mod.LineID = line.ID
			err = tx.QueryRow(ctx, `
INSERT INTO line_modifiers (line_id, modifier_id, name, extra_price)
VALUES ($1,$2,$3,$4)
RETURNING id
`, line.ID, mod.ModifierID, mod.Name, mod.ExtraPrice).Scan(&mod.ID)
			if err != nil {
				return domain.PersistenceErr("insert line modifier", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PersistenceErr("commit order", err)
	}
	return nil
}

func (r *PGRepository) AddDiscount(ctx context.Context, orderID int64, d *domain.Discount) (domain.Order, error) {
	return r.mutate(ctx, orderID, func(tx pgx.Tx) error {
		d.OrderID = orderID
		err := tx.QueryRow(ctx, `
INSERT INTO discounts (order_id, kind, value, reason, applied_by, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id, created_at
`, orderID, string(d.Kind), d.Value, d.Reason, d.AppliedBy).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			return domain.PersistenceErr("insert discount", err)
		}
		return r.recomputeLocked(ctx, tx, orderID)
	})
}

func (r *PGRepository) AddPayment(ctx context.Context, orderID int64, p *domain.Payment) (domain.Order, error) {
	return r.mutate(ctx, orderID, func(tx pgx.Tx) error {
		p.OrderID = orderID
		err := tx.QueryRow(ctx, `
INSERT INTO payments (order_id, method, amount, received_by, created_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, created_at
`, orderID, string(p.Method), p.Amount, p.ReceivedBy).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return domain.PersistenceErr("insert payment", err)
		}
		return r.recomputeLocked(ctx, tx, orderID)
	})
}

func (r *PGRepository) SetState(ctx context.Context, orderID int64, s domain.OrderState) (domain.Order, error) {
	return r.mutate(ctx, orderID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE orders SET state=$1, updated_at=NOW() WHERE id=$2`, string(s), orderID)
		if err != nil {
			return domain.PersistenceErr("update state", err)
		}
		return nil
	})
}

// Cancel flags the order; totals and payments are deliberately left alone so
// the financial record survives for auditing.
func (r *PGRepository) Cancel(ctx context.Context, orderID int64) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, domain.PersistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	state, cancelled, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if cancelled {
		return domain.Order{}, domain.Conflictf("order %d is already cancelled", orderID)
	}
	if state == domain.StateCharged {
		return domain.Order{}, domain.Conflictf("order %d is charged and cannot be cancelled", orderID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET cancelled=true, updated_at=NOW() WHERE id=$1`, orderID); err != nil {
		return domain.Order{}, domain.PersistenceErr("cancel order", err)
	}

	order, err := loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, domain.PersistenceErr("commit cancel", err)
	}
	return order, nil
}

func (r *PGRepository) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return loadOrder(ctx, r.pool, id)
}

func (r *PGRepository) ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	q := `
SELECT o.id, o.order_number, o.table_id, COALESCE(t.name,''), o.server_id, o.server_name,
       o.state, o.cancelled, o.subtotal, o.discount_total, o.total, o.paid,
       o.created_at, o.updated_at
FROM orders o
LEFT JOIN tables t ON t.id = o.table_id
WHERE 1=1`
	args := []any{}
	if !f.IncludeCancelled {
		q += ` AND NOT o.cancelled`
	}
	if f.State != nil {
		args = append(args, string(*f.State))
		q += fmt.Sprintf(` AND o.state=$%d`, len(args))
	}
	q += ` ORDER BY o.id DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.PersistenceErr("list orders", err)
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []int64
	for rows.Next() {
		var o domain.Order
		var state string
		if err := rows.Scan(&o.ID, &o.Number, &o.TableID, &o.TableName, &o.ServerID, &o.ServerName,
			&state, &o.Cancelled, &o.Subtotal, &o.DiscountTotal, &o.Total, &o.Paid,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, domain.PersistenceErr("scan order", err)
		}
		o.State = domain.OrderState(state)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceErr("list orders", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}
	if err := attachChildren(ctx, r.pool, orders, ids); err != nil {
		return nil, err
	}
	return orders, nil
}

// mutate wraps the lock / mutate / reload / commit dance shared by the
// single-order operations. fn runs with the order row locked.
func (r *PGRepository) mutate(ctx context.Context, orderID int64, fn func(tx pgx.Tx) error) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, domain.PersistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	_, cancelled, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if cancelled {
		return domain.Order{}, domain.Conflictf("order %d is cancelled", orderID)
	}

	if err := fn(tx); err != nil {
		return domain.Order{}, err
	}

	order, err := loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, domain.PersistenceErr("commit", err)
	}
	return order, nil
}

// recomputeLocked rereads lines, discounts and payments inside the
// transaction and writes fresh totals, so the stored totals can never go
// stale relative to the children committed with them.
func (r *PGRepository) recomputeLocked(ctx context.Context, tx pgx.Tx, orderID int64) error {
	lines, err := loadLines(ctx, tx, []int64{orderID})
	if err != nil {
		return err
	}
	discounts, err := loadDiscounts(ctx, tx, []int64{orderID})
	if err != nil {
		return err
	}
	totals := ComputeTotals(lines[orderID], discounts[orderID])

	var paymentsSum float64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM payments WHERE order_id=$1`, orderID,
	).Scan(&paymentsSum); err != nil {
		return domain.PersistenceErr("sum payments", err)
	}

	_, err = tx.Exec(ctx, `
UPDATE orders SET subtotal=$1, discount_total=$2, total=$3, paid=$4, updated_at=NOW()
WHERE id=$5
`, totals.Subtotal, totals.DiscountTotal, totals.Total, paymentsSum >= totals.Total, orderID)
	if err != nil {
		return domain.PersistenceErr("update totals", err)
	}
	return nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID int64) (domain.OrderState, bool, error) {
	var state string
	var cancelled bool
	err := tx.QueryRow(ctx,
		`SELECT state, cancelled FROM orders WHERE id=$1 FOR UPDATE`, orderID,
	).Scan(&state, &cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, domain.NotFoundf("order %d not found", orderID)
	}
	if err != nil {
		return "", false, domain.PersistenceErr("lock order", err)
	}
	return domain.OrderState(state), cancelled, nil
}

func loadOrder(ctx context.Context, q querier, id int64) (domain.Order, error) {
	var o domain.Order
	var state string
	err := q.QueryRow(ctx, `
SELECT o.id, o.order_number, o.table_id, COALESCE(t.name,''), o.server_id, o.server_name,
       o.state, o.cancelled, o.subtotal, o.discount_total, o.total, o.paid,
       o.created_at, o.updated_at
FROM orders o
LEFT JOIN tables t ON t.id = o.table_id
WHERE o.id=$1
`, id).Scan(&o.ID, &o.Number, &o.TableID, &o.TableName, &o.ServerID, &o.ServerName,
		&state, &o.Cancelled, &o.Subtotal, &o.DiscountTotal, &o.Total, &o.Paid,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NotFoundf("order %d not found", id)
	}
	if err != nil {
		return domain.Order{}, domain.PersistenceErr("load order", err)
	}
	o.State = domain.OrderState(state)

	orders := []domain.Order{o}
	if err := attachChildren(ctx, q, orders, []int64{id}); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func attachChildren(ctx context.Context, q querier, orders []domain.Order, ids []int64) error {
	lines, err := loadLines(ctx, q, ids)
	if err != nil {
		return err
	}
	discounts, err := loadDiscounts(ctx, q, ids)
	if err != nil {
		return err
	}
	payments, err := loadPayments(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		orders[i].Discounts = discounts[orders[i].ID]
		orders[i].Payments = payments[orders[i].ID]
	}
	return nil
}

func loadLines(ctx context.Context, q querier, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `
SELECT id, order_id, product_id, name, unit_price, quantity, note
FROM order_lines WHERE order_id = ANY($1) ORDER BY id
`, orderIDs)
	if err != nil {
		return nil, domain.PersistenceErr("load lines", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]domain.OrderLine)
	byLine := make(map[int64]*domain.OrderLine)
	var lineIDs []int64
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.Note); err != nil {
			return nil, domain.PersistenceErr("scan line", err)
		}
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
		lineIDs = append(lineIDs, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceErr("load lines", err)
	}
	rows.Close()
	if len(lineIDs) == 0 {
		return byOrder, nil
	}
	for oid := range byOrder {
		ls := byOrder[oid]
		for i := range ls {
			byLine[ls[i].ID] = &ls[i]
		}
	}

	mrows, err := q.Query(ctx, `
SELECT id, line_id, modifier_id, name, extra_price
FROM line_modifiers WHERE line_id = ANY($1) ORDER BY id
`, lineIDs)
	if err != nil {
		return nil, domain.PersistenceErr("load modifiers", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m domain.LineModifier
		if err := mrows.Scan(&m.ID, &m.LineID, &m.ModifierID, &m.Name, &m.ExtraPrice); err != nil {
			return nil, domain.PersistenceErr("scan modifier", err)
		}
		if line := byLine[m.LineID]; line != nil {
			line.Modifiers = append(line.Modifiers, m)
		}
	}
	return byOrder, mrows.Err()
}

func loadDiscounts(ctx context.Context, q querier, orderIDs []int64) (map[int64][]domain.Discount, error) {
	rows, err := q.Query(ctx, `
SELECT id, order_id, kind, value, reason, applied_by, created_at
FROM discounts WHERE order_id = ANY($1) ORDER BY id
`, orderIDs)
	if err != nil {
		return nil, domain.PersistenceErr("load discounts", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.Discount)
	for rows.Next() {
		var d domain.Discount
		var kind string
		if err := rows.Scan(&d.ID, &d.OrderID, &kind, &d.Value, &d.Reason, &d.AppliedBy, &d.CreatedAt); err != nil {
			return nil, domain.PersistenceErr("scan discount", err)
		}
		d.Kind = domain.DiscountKind(kind)
		out[d.OrderID] = append(out[d.OrderID], d)
	}
	return out, rows.Err()
}

func loadPayments(ctx context.Context, q querier, orderIDs []int64) (map[int64][]domain.Payment, error) {
	rows, err := q.Query(ctx, `
SELECT id, order_id, method, amount, received_by, created_at
FROM payments WHERE order_id = ANY($1) ORDER BY id
`, orderIDs)
	if err != nil {
		return nil, domain.PersistenceErr("load payments", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.Payment)
	for rows.Next() {
		var p domain.Payment
		var method string
		if err := rows.Scan(&p.ID, &p.OrderID, &method, &p.Amount, &p.ReceivedBy, &p.CreatedAt); err != nil {
			return nil, domain.PersistenceErr("scan payment", err)
		}
		p.Method = domain.PaymentMethod(method)
		out[p.OrderID] = append(out[p.OrderID], p)
	}
	return out, rows.Err()
}
