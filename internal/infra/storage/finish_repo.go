package storage

import (
	"context"
	"database/sql"
)

type FinishRepo struct{ db *sql.DB }

func NewFinishRepo(db *sql.DB) *FinishRepo { return &FinishRepo{db: db} }

// RecordBest guarda el tiempo si es el mejor del runner en ese guild. true si cambió.
func (r *FinishRepo) RecordBest(ctx context.Context, f Finish) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO finishes (guild_id, runner, igt_seconds)
VALUES ($1,$2,$3)
ON CONFLICT (guild_id, runner) DO UPDATE SET
  igt_seconds = EXCLUDED.igt_seconds,
  updated_at  = now()
WHERE finishes.igt_seconds > EXCLUDED.igt_seconds
`, f.GuildID, f.Runner, f.IGTSeconds)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *FinishRepo) Top(ctx context.Context, guildID string, limit int) ([]Finish, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, runner, igt_seconds, updated_at
  FROM finishes
 WHERE guild_id = $1
 ORDER BY igt_seconds ASC, updated_at ASC
 LIMIT $2
`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Finish
	for rows.Next() {
		var f Finish
		if err := rows.Scan(&f.GuildID, &f.Runner, &f.IGTSeconds, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
