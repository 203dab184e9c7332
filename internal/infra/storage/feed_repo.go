package storage

import (
	"context"
	"database/sql"
)

// FeedRepo lee los records que deja cmd/webhook en feed_records.
type FeedRepo struct{ db *sql.DB }

func NewFeedRepo(db *sql.DB) *FeedRepo { return &FeedRepo{db: db} }

func (r *FeedRepo) Payload(ctx context.Context, id int64) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM feed_records WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return payload, err
}

type FeedRecord struct {
	ID      int64
	Payload []byte
}

// Since devuelve los records con id > afterID en orden (para ponerse al día tras reconectar).
func (r *FeedRepo) Since(ctx context.Context, afterID int64, limit int) ([]FeedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload FROM feed_records
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FeedRecord
	for rows.Next() {
		var fr FeedRecord
		if err := rows.Scan(&fr.ID, &fr.Payload); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// LastID es el id más alto guardado (0 si la tabla está vacía).
func (r *FeedRepo) LastID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM feed_records`).Scan(&id)
	return id, err
}
