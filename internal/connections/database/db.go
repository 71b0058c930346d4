package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/config"
)

type Conn struct{ *pgxpool.Pool }

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Conn, error) {
	pool, err := pgxpool.New(ctx, cfg.URL())
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Conn{Pool: pool}, nil
}

func (c *Conn) Close() {
	if c != nil && c.Pool != nil {
		c.Pool.Close()
	}
}
