// Package reports holds the read-only end-of-day queries: daily stats and
// the rows behind the CSV export. Cancelled orders are excluded from revenue
// but kept in the export, flagged.
package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
)

type TableStat struct {
	Table   string  `json:"table"`
	Total   float64 `json:"total"`
	Orders  int     `json:"orders"`
}

type ServerStat struct {
	Server string  `json:"server"`
	Total  float64 `json:"total"`
	Orders int     `json:"orders"`
}

type DailyStats struct {
	Date       string       `json:"date"`
	Revenue    float64      `json:"revenue"`
	OrderCount int          `json:"order_count"`
	PerTable   []TableStat  `json:"per_table"`
	PerServer  []ServerStat `json:"per_server"`
}

type ExportRow struct {
	ID        int64
	Number    string
	CreatedAt time.Time
	Table     string
	Server    string
	Total     float64
	Paid      bool
	Cancelled bool
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Daily(ctx context.Context, day time.Time) (DailyStats, error) {
	day = day.UTC()
	stats := DailyStats{Date: day.Format("2006-01-02")}

	err := s.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(total),0), COUNT(*)
FROM orders
WHERE created_at::date = $1::date AND NOT cancelled
`, day).Scan(&stats.Revenue, &stats.OrderCount)
	if err != nil {
		return DailyStats{}, domain.PersistenceErr("daily totals", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT COALESCE(t.name,'-'), SUM(o.total), COUNT(*)
FROM orders o
LEFT JOIN tables t ON t.id = o.table_id
WHERE o.created_at::date = $1::date AND NOT o.cancelled
GROUP BY t.name
ORDER BY SUM(o.total) DESC
`, day)
	if err != nil {
		return DailyStats{}, domain.PersistenceErr("per-table stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ts TableStat
		if err := rows.Scan(&ts.Table, &ts.Total, &ts.Orders); err != nil {
			return DailyStats{}, domain.PersistenceErr("scan table stat", err)
		}
		stats.PerTable = append(stats.PerTable, ts)
	}
	if err := rows.Err(); err != nil {
		return DailyStats{}, domain.PersistenceErr("per-table stats", err)
	}

	srows, err := s.pool.Query(ctx, `
SELECT server_name, SUM(total), COUNT(*)
FROM orders
WHERE created_at::date = $1::date AND NOT cancelled AND server_name <> ''
GROUP BY server_name
ORDER BY SUM(total) DESC
`, day)
	if err != nil {
		return DailyStats{}, domain.PersistenceErr("per-server stats", err)
	}
	defer srows.Close()
	for srows.Next() {
		var ss ServerStat
		if err := srows.Scan(&ss.Server, &ss.Total, &ss.Orders); err != nil {
			return DailyStats{}, domain.PersistenceErr("scan server stat", err)
		}
		stats.PerServer = append(stats.PerServer, ss)
	}
	return stats, srows.Err()
}

func (s *Store) ExportRows(ctx context.Context, day time.Time) ([]ExportRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT o.id, o.order_number, o.created_at, COALESCE(t.name,''), o.server_name,
       o.total, o.paid, o.cancelled
FROM orders o
LEFT JOIN tables t ON t.id = o.table_id
WHERE o.created_at::date = $1::date
ORDER BY o.id
`, day.UTC())
	if err != nil {
		return nil, domain.PersistenceErr("export rows", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.ID, &r.Number, &r.CreatedAt, &r.Table, &r.Server,
			&r.Total, &r.Paid, &r.Cancelled); err != nil {
			return nil, domain.PersistenceErr("scan export row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
