package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
)

// schemaDDL mirrors every CHECK as an explicit validation in the service
// layer, so the invariants hold even against a store without CHECK support.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS categories (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    sort_order INT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    price       DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
    active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS modifiers (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    extra_price DOUBLE PRECISION NOT NULL CHECK (extra_price >= 0),
    active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS tables (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staff (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    pin  TEXT
);

CREATE TABLE IF NOT EXISTS orders (
    id             BIGSERIAL PRIMARY KEY,
    order_number   TEXT NOT NULL,
    table_id       BIGINT REFERENCES tables(id),
    server_id      BIGINT REFERENCES staff(id),
    server_name    TEXT NOT NULL DEFAULT '',
    state          TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending','ready','charged')),
    cancelled      BOOLEAN NOT NULL DEFAULT false,
    subtotal       DOUBLE PRECISION NOT NULL DEFAULT 0,
    discount_total DOUBLE PRECISION NOT NULL DEFAULT 0,
    total          DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (total >= 0),
    paid           BOOLEAN NOT NULL DEFAULT false,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_lines (
    id         BIGSERIAL PRIMARY KEY,
    order_id   BIGINT NOT NULL REFERENCES orders(id),
    product_id BIGINT REFERENCES products(id),
    name       TEXT NOT NULL,
    unit_price DOUBLE PRECISION NOT NULL CHECK (unit_price >= 0),
    quantity   INT NOT NULL CHECK (quantity > 0),
    note       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS line_modifiers (
    id          BIGSERIAL PRIMARY KEY,
    line_id     BIGINT NOT NULL REFERENCES order_lines(id),
    modifier_id BIGINT REFERENCES modifiers(id),
    name        TEXT NOT NULL,
    extra_price DOUBLE PRECISION NOT NULL CHECK (extra_price >= 0)
);

CREATE TABLE IF NOT EXISTS discounts (
    id         BIGSERIAL PRIMARY KEY,
    order_id   BIGINT NOT NULL REFERENCES orders(id),
    kind       TEXT NOT NULL CHECK (kind IN ('percentage','fixed')),
    value      DOUBLE PRECISION NOT NULL CHECK (value >= 0),
    reason     TEXT NOT NULL,
    applied_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payments (
    id          BIGSERIAL PRIMARY KEY,
    order_id    BIGINT NOT NULL REFERENCES orders(id),
    method      TEXT NOT NULL CHECK (method IN ('cash','debit','credit','qr','transfer')),
    amount      DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
    received_by TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
    id         BIGSERIAL PRIMARY KEY,
    actor_id   BIGINT,
    actor_name TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    entity     TEXT NOT NULL,
    entity_id  BIGINT NOT NULL,
    payload    JSONB,
    origin     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notes (
    id         BIGSERIAL PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_line_modifiers_line ON line_modifiers(line_id);
CREATE INDEX IF NOT EXISTS idx_discounts_order ON discounts(order_id);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity, entity_id);
`

// InitSchema applies the DDL on startup; every statement is idempotent.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return domain.PersistenceErr("init schema", err)
	}
	return nil
}
