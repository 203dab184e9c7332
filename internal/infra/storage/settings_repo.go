package storage

import (
	"context"
	"database/sql"
)

type SettingsRepo struct{ db *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get devuelve los settings del guild; si no existen crea la fila con defaults.
func (r *SettingsRepo) Get(ctx context.Context, guildID string) (GuildSettings, error) {
	var s GuildSettings
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, finish_threshold_minutes, created_at, updated_at
  FROM guild_settings
 WHERE guild_id = $1
`, guildID).Scan(&s.GuildID, &s.FinishThresholdMinutes, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_settings (guild_id) VALUES ($1) ON CONFLICT (guild_id) DO NOTHING
`, guildID)
		if err != nil {
			return GuildSettings{}, err
		}
		return r.Get(ctx, guildID)
	}
	return s, err
}

func (r *SettingsRepo) Upsert(ctx context.Context, s GuildSettings) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_settings (guild_id, finish_threshold_minutes, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (guild_id) DO UPDATE SET
  finish_threshold_minutes = EXCLUDED.finish_threshold_minutes,
  updated_at               = NOW()
`, s.GuildID, s.FinishThresholdMinutes)
	return err
}
