// Package audit is the append-only who-did-what trail. Entries are written
// once and never updated or deleted; there is deliberately no API for either.
package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
)

// Action verbs recorded by the ledger.
const (
	ActionCreate      = "CREATE"
	ActionUpdateState = "UPDATE_ESTADO"
	ActionCancel      = "CANCEL"
	ActionDelete      = "DELETE"
)

type Entry struct {
	ID        int64          `json:"id"`
	ActorID   *int64         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entity_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder { return &Recorder{pool: pool} }

// Record appends one entry. Callers treat failure as best-effort: the ledger
// logs it and moves on, it never blocks order-taking.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return domain.PersistenceErr("marshal audit payload", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO audit_log (actor_id, actor_name, action, entity, entity_id, payload, origin, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
`, e.ActorID, e.ActorName, e.Action, e.Entity, e.EntityID, payload, e.Origin)
	if err != nil {
		return domain.PersistenceErr("insert audit entry", err)
	}
	return nil
}

// Recent returns the newest entries first, optionally filtered by entity type
// and id. Limit is clamped to a sane window.
func (r *Recorder) Recent(ctx context.Context, limit int, entity string, entityID int64) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `
SELECT id, actor_id, actor_name, action, entity, entity_id, payload, origin, created_at
FROM audit_log`
	args := []any{}
	if entity != "" {
		q += ` WHERE entity=$1 AND entity_id=$2`
		args = append(args, entity, entityID)
	}
	q += ` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.PersistenceErr("query audit log", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity,
			&e.EntityID, &payload, &e.Origin, &e.CreatedAt); err != nil {
			return nil, domain.PersistenceErr("scan audit entry", err)
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
