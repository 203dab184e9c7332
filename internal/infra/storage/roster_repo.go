package storage

import (
	"context"
	"database/sql"
)

type RosterRepo struct{ db *sql.DB }

func NewRosterRepo(db *sql.DB) *RosterRepo { return &RosterRepo{db: db} }

func (r *RosterRepo) Upsert(ctx context.Context, ru Runner) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO runners
  (guild_id, player_key, nickname, first_structure, second_structure, blind, eye_spy, end_enter, finish)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (guild_id, player_key) DO UPDATE SET
  nickname         = EXCLUDED.nickname,
  first_structure  = EXCLUDED.first_structure,
  second_structure = EXCLUDED.second_structure,
  blind            = EXCLUDED.blind,
  eye_spy          = EXCLUDED.eye_spy,
  end_enter        = EXCLUDED.end_enter,
  finish           = EXCLUDED.finish,
  updated_at       = now()
`, ru.GuildID, ru.PlayerKey, ru.Nickname, ru.FirstStructure, ru.SecondStruct, ru.Blind, ru.EyeSpy, ru.EndEnter, ru.Finish)
	return err
}

func (r *RosterRepo) Get(ctx context.Context, guildID, playerKey string) (Runner, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT guild_id, player_key, nickname, first_structure, second_structure, blind, eye_spy, end_enter, finish, updated_at
  FROM runners
 WHERE guild_id = $1 AND player_key = $2
`, guildID, playerKey)
	ru, err := scanRunner(row)
	if err == sql.ErrNoRows {
		return Runner{}, ErrNotFound
	}
	return ru, err
}

func (r *RosterRepo) Delete(ctx context.Context, guildID, playerKey string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM runners WHERE guild_id = $1 AND player_key = $2
`, guildID, playerKey)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *RosterRepo) List(ctx context.Context, guildID string) ([]Runner, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, player_key, nickname, first_structure, second_structure, blind, eye_spy, end_enter, finish, updated_at
  FROM runners
 WHERE guild_id = $1
 ORDER BY player_key ASC
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Runner
	for rows.Next() {
		ru, err := scanRunner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ru)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunner(row rowScanner) (Runner, error) {
	var ru Runner
	err := row.Scan(&ru.GuildID, &ru.PlayerKey, &ru.Nickname, &ru.FirstStructure, &ru.SecondStruct,
		&ru.Blind, &ru.EyeSpy, &ru.EndEnter, &ru.Finish, &ru.UpdatedAt)
	return ru, err
}
