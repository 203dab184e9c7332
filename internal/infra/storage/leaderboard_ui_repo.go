package storage

import (
	"context"
	"database/sql"
)

type LeaderboardUIRepo struct{ db *sql.DB }

func NewLeaderboardUIRepo(db *sql.DB) *LeaderboardUIRepo { return &LeaderboardUIRepo{db: db} }

func (r *LeaderboardUIRepo) Get(ctx context.Context, guildID string) (LeaderboardUI, error) {
	var u LeaderboardUI
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, channel_id, message_id, created_at, updated_at
  FROM leaderboard_ui
 WHERE guild_id = $1
`, guildID).Scan(&u.GuildID, &u.ChannelID, &u.MessageID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return LeaderboardUI{}, ErrNotFound
	}
	return u, err
}

func (r *LeaderboardUIRepo) Upsert(ctx context.Context, guildID, channelID, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO leaderboard_ui (guild_id, channel_id, message_id)
VALUES ($1,$2,$3)
ON CONFLICT (guild_id) DO UPDATE SET
  channel_id = EXCLUDED.channel_id,
  message_id = EXCLUDED.message_id,
  updated_at = now()
`, guildID, channelID, messageID)
	return err
}
