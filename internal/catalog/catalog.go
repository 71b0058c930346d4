// Package catalog holds the read-mostly reference data: products, categories,
// modifiers, plus table and staff listings. Orders copy name and price out of
// the catalog at creation time; edits here never touch historical orders.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
)

type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	CategoryID   *int64  `json:"category_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
	Active       bool    `json:"active"`
}

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type Modifier struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	ExtraPrice float64 `json:"extra_price"`
	Active     bool    `json:"active"`
}

type Table struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Staff struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ProductSnapshot is the frozen view the ledger copies onto an order line.
type ProductSnapshot struct {
	Name      string
	UnitPrice float64
}

// ModifierSnapshot is the frozen view copied onto a line modifier.
type ModifierSnapshot struct {
	Name       string
	ExtraPrice float64
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// LookupProduct resolves an active product for snapshotting. Soft-deleted
// products are reported as not found.
func (s *Store) LookupProduct(ctx context.Context, id int64) (ProductSnapshot, error) {
	var snap ProductSnapshot
	err := s.pool.QueryRow(ctx,
		`SELECT name, price FROM products WHERE id=$1 AND active`, id,
	).Scan(&snap.Name, &snap.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductSnapshot{}, domain.NotFoundf("product %d not found", id)
	}
	if err != nil {
		return ProductSnapshot{}, domain.PersistenceErr("lookup product", err)
	}
	return snap, nil
}

// LookupModifier resolves an active modifier for snapshotting.
func (s *Store) LookupModifier(ctx context.Context, id int64) (ModifierSnapshot, error) {
	var snap ModifierSnapshot
	err := s.pool.QueryRow(ctx,
		`SELECT name, extra_price FROM modifiers WHERE id=$1 AND active`, id,
	).Scan(&snap.Name, &snap.ExtraPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return ModifierSnapshot{}, domain.NotFoundf("modifier %d not found", id)
	}
	if err != nil {
		return ModifierSnapshot{}, domain.PersistenceErr("lookup modifier", err)
	}
	return snap, nil
}

func (s *Store) ListProducts(ctx context.Context, categoryID *int64) ([]Product, error) {
	q := `SELECT p.id, p.name, p.price, p.category_id, COALESCE(c.name,''), p.active
	        FROM products p
	        LEFT JOIN categories c ON c.id = p.category_id
	       WHERE p.active`
	args := []any{}
	if categoryID != nil {
		q += ` AND p.category_id=$1`
		args = append(args, *categoryID)
	}
	q += ` ORDER BY p.name`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.PersistenceErr("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CategoryID, &p.CategoryName, &p.Active); err != nil {
			return nil, domain.PersistenceErr("scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, name string, price float64, categoryID *int64) (int64, error) {
	if name == "" {
		return 0, domain.Validationf("product name is required")
	}
	if price < 0 {
		return 0, domain.Validationf("product price must not be negative")
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (name, price, category_id, active) VALUES ($1,$2,$3,true) RETURNING id`,
		name, price, categoryID,
	).Scan(&id)
	if err != nil {
		return 0, domain.PersistenceErr("insert product", err)
	}
	return id, nil
}

// DeactivateProduct soft-deletes: the row stays so old order lines keep a
// valid reference.
func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products SET active=false WHERE id=$1`, id)
	if err != nil {
		return domain.PersistenceErr("deactivate product", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("product %d not found", id)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, domain.PersistenceErr("list categories", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, domain.PersistenceErr("scan category", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, name string, sortOrder int) (int64, error) {
	if name == "" {
		return 0, domain.Validationf("category name is required")
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (name, sort_order) VALUES ($1,$2) RETURNING id`,
		name, sortOrder,
	).Scan(&id)
	if err != nil {
		return 0, domain.PersistenceErr("insert category", err)
	}
	return id, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return domain.PersistenceErr("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("category %d not found", id)
	}
	return nil
}

func (s *Store) ListModifiers(ctx context.Context) ([]Modifier, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, extra_price, active FROM modifiers WHERE active ORDER BY name`)
	if err != nil {
		return nil, domain.PersistenceErr("list modifiers", err)
	}
	defer rows.Close()

	var out []Modifier
	for rows.Next() {
		var m Modifier
		if err := rows.Scan(&m.ID, &m.Name, &m.ExtraPrice, &m.Active); err != nil {
			return nil, domain.PersistenceErr("scan modifier", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateModifier(ctx context.Context, name string, extraPrice float64) (int64, error) {
	if name == "" {
		return 0, domain.Validationf("modifier name is required")
	}
	if extraPrice < 0 {
		return 0, domain.Validationf("modifier extra price must not be negative")
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO modifiers (name, extra_price, active) VALUES ($1,$2,true) RETURNING id`,
		name, extraPrice,
	).Scan(&id)
	if err != nil {
		return 0, domain.PersistenceErr("insert modifier", err)
	}
	return id, nil
}

func (s *Store) DeactivateModifier(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE modifiers SET active=false WHERE id=$1`, id)
	if err != nil {
		return domain.PersistenceErr("deactivate modifier", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("modifier %d not found", id)
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM tables ORDER BY id`)
	if err != nil {
		return nil, domain.PersistenceErr("list tables", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, domain.PersistenceErr("scan table", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListStaff(ctx context.Context, role string) ([]Staff, error) {
	q := `SELECT id, name, role FROM staff`
	args := []any{}
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, role)
	}
	q += ` ORDER BY name`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.PersistenceErr("list staff", err)
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.ID, &st.Name, &st.Role); err != nil {
			return nil, domain.PersistenceErr("scan staff", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
