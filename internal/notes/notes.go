// Package notes is the shared message board between the floor and the
// kitchen ("out of salmon", "table 4 in a hurry").
package notes

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mozo-cocina/internal/domain"
)

type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(channel string, ev domain.Event)
}

type Store struct {
	pool *pgxpool.Pool
	hub  Publisher
}

func NewStore(pool *pgxpool.Pool, hub Publisher) *Store {
	return &Store{pool: pool, hub: hub}
}

func (s *Store) Create(ctx context.Context, content string) (Note, error) {
	if content == "" {
		return Note{}, domain.Validationf("note content is required")
	}
	var n Note
	n.Content = content
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notes (content, created_at) VALUES ($1,NOW()) RETURNING id, created_at`,
		content,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return Note{}, domain.PersistenceErr("insert note", err)
	}
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventNewNote, NoteID: n.ID})
	return n, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, created_at FROM notes ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, domain.PersistenceErr("list notes", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, domain.PersistenceErr("scan note", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return domain.PersistenceErr("delete note", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("note %d not found", id)
	}
	s.hub.Publish(domain.KitchenChannel, domain.Event{Type: domain.EventNoteDeleted, NoteID: id})
	return nil
}
