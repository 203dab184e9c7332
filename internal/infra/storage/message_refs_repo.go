package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pq "github.com/lib/pq"
)

// MessageRefRepo persiste el último pace-ping por (guild, player) para poder
// marcar el reset después de un reinicio.
type MessageRefRepo struct{ db *sql.DB }

func NewMessageRefRepo(db *sql.DB) *MessageRefRepo { return &MessageRefRepo{db: db} }

func (r *MessageRefRepo) Save(ctx context.Context, m PaceMessage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pace_messages (guild_id, player_key, channel_id, message_id, split, igt_ms, reset_applied, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,false,now())
ON CONFLICT (guild_id, player_key) DO UPDATE SET
  channel_id=$3, message_id=$4, split=$5, igt_ms=$6, reset_applied=false, updated_at=now()
`, m.GuildID, m.PlayerKey, m.ChannelID, m.MessageID, m.Split, m.IGTMillis)
	return err
}

// MarkReset solo toca la fila si sigue apuntando al mismo mensaje.
func (r *MessageRefRepo) MarkReset(ctx context.Context, guildID, playerKey, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE pace_messages SET reset_applied=true, updated_at=now()
 WHERE guild_id=$1 AND player_key=$2 AND message_id=$3
`, guildID, playerKey, messageID)
	return err
}

// LoadForGuilds: filas de los guilds dados (para rehidratar el store al boot).
func (r *MessageRefRepo) LoadForGuilds(ctx context.Context, guildIDs []string) ([]PaceMessage, error) {
	if len(guildIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, player_key, channel_id, message_id, split, igt_ms, reset_applied, updated_at
  FROM pace_messages
 WHERE guild_id = ANY($1)
`, pq.Array(guildIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaceMessage
	for rows.Next() {
		var m PaceMessage
		if err := rows.Scan(&m.GuildID, &m.PlayerKey, &m.ChannelID, &m.MessageID, &m.Split, &m.IGTMillis, &m.ResetApplied, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune borra refs más viejos que olderThan.
func (r *MessageRefRepo) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM pace_messages
 WHERE updated_at < now() - $1::interval
`, durToInterval(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func durToInterval(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs <= 0 {
		return "0 seconds"
	}
	return fmt.Sprintf("%d seconds", secs)
}
